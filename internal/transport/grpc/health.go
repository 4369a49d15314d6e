package grpc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthWatcher периодически проверяет базу и выставляет статус gRPC health.
type HealthWatcher struct {
	srv      *health.Server
	db       Pinger
	interval time.Duration
	log      *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewHealthWatcher(srv *health.Server, db Pinger, interval time.Duration, log *zap.Logger) *HealthWatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthWatcher{srv: srv, db: db, interval: interval, log: log, stopCh: make(chan struct{})}
}

func (w *HealthWatcher) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st := healthpb.HealthCheckResponse_SERVING
	if err := w.db.PingContext(ctx); err != nil {
		w.log.Warn("База недоступна", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	w.srv.SetServingStatus("", st)
	return st
}

func (w *HealthWatcher) Start() {
	w.Check(context.Background())
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Check(context.Background())
			case <-w.stopCh:
				return
			}
		}
	}()
}

func (w *HealthWatcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.srv.Shutdown()
}
