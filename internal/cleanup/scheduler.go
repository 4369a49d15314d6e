package cleanup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Intervals struct {
	Carts     time.Duration
	Webhooks  time.Duration
	Reconcile time.Duration
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

type Scheduler struct {
	cleanup *CleanupService
	jobs    []job
	log     *zap.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler собирает задачи; задача с нулевым интервалом не запускается.
func NewScheduler(cleanup *CleanupService, iv Intervals, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cleanup: cleanup,
		jobs: []job{
			{name: "abandoned_carts", interval: iv.Carts, run: cleanup.CleanupAbandonedCarts},
			{name: "webhook_events", interval: iv.Webhooks, run: cleanup.CleanupWebhookEvents},
			{name: "reconcile_stock", interval: iv.Reconcile, run: cleanup.reconcile},
		},
		log:    log,
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Запуск планировщика обслуживания")
	for _, j := range s.jobs {
		if j.interval <= 0 {
			s.log.Info("Задача отключена", zap.String("job", j.name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

// Stop останавливает все задачи и ждёт их завершения.
func (s *Scheduler) Stop() {
	s.log.Info("Остановка планировщика обслуживания")
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.run(ctx); err != nil {
				s.log.Error("Задача обслуживания завершилась ошибкой", zap.String("job", j.name), zap.Error(err))
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnceNow выполняет все задачи немедленно
func (s *Scheduler) RunOnceNow(ctx context.Context) error {
	return s.cleanup.RunFullCleanup(ctx)
}
