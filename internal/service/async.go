package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const sideEffectTimeout = 10 * time.Second

func goAsync(f func()) { go f() }

// fireAndForget выполняет побочный эффект после коммита. Ошибка логируется и не возвращается.
func fireAndForget(run func(func()), log *zap.Logger, name string, fn func(ctx context.Context) error) {
	run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn("Побочное действие завершилось ошибкой", zap.String("action", name), zap.Error(err))
		}
	})
}
