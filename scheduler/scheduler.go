// Package scheduler запускает периодические задачи (тики таймеров матчей,
// проходы подбора) на планировщике gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Ticker планирует периодический вызов fn. cancel идемпотентен.
type Ticker interface {
	Every(name string, interval time.Duration, fn func()) (cancel func(), err error)
}

type Scheduler struct {
	s      gocron.Scheduler
	logger *slog.Logger
}

func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.Start()
	return &Scheduler{s: s, logger: logger}, nil
}

// Every регистрирует singleton-задачу: если прошлый запуск ещё идёт, следующий
// пропускается, fn никогда не выполняется параллельно сама с собой.
func (sc *Scheduler) Every(name string, interval time.Duration, fn func()) (func(), error) {
	job, err := sc.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	return sc.canceler(name, job.ID()), nil
}

// EveryWithContext запускает fn сразу и затем каждые interval. Контекст
// отменяется при Shutdown.
func (sc *Scheduler) EveryWithContext(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) (func(), error) {
	job, err := sc.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { fn(ctx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	return sc.canceler(name, job.ID()), nil
}

func (sc *Scheduler) canceler(name string, id uuid.UUID) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Удаление асинхронное: cancel может вызываться из самой задачи.
			go func() {
				if err := sc.s.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
					sc.logger.Warn("failed to remove scheduled job", slog.String("job", name), slog.Any("error", err))
				}
			}()
		})
	}
}

func (sc *Scheduler) Shutdown() error {
	return sc.s.Shutdown()
}
