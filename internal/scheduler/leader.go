package scheduler

import (
	"context"
	"time"
)

// DefaultTickInterval — период тиков Run.
const DefaultTickInterval = 5 * time.Second

// Leader — блокировка, которую удерживает единственный активный scheduler.
type Leader interface {
	// TryAcquire берёт блокировку или подтверждает, что она ещё удерживается.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Run выполняет Tick каждые interval, пока процесс — лидер.
// Лидер же переводит в FAILED runs, чей владелец перестал продлевать heartbeat.
// Блокируется до отмены ctx; при выходе отпускает блокировку.
func (s *Scheduler) Run(ctx context.Context, leader Leader, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	tk := time.NewTicker(interval)
	defer tk.Stop()

	leading := false
	defer func() {
		if err := leader.Release(context.Background()); err != nil {
			s.logger.Warn("failed to release scheduler lock", "error", err)
		}
	}()

	for {
		ok, err := leader.TryAcquire(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				s.logger.Error("scheduler lock error", "error", err)
			}
		case ok != leading:
			s.logger.Info("scheduler leadership changed", "leader", ok)
		}
		leading = ok && err == nil

		if leading {
			s.failStaleRuns(ctx)
			if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}
	}
}

// failStaleRuns завершает runs, брошенные упавшими процессами.
func (s *Scheduler) failStaleRuns(ctx context.Context) {
	if s.runs == nil {
		return
	}

	n, err := s.runs.FailStale(ctx, s.staleAfter, "owner stopped heartbeating")
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("failed to fail stale runs", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Warn("marked stale runs as failed", "count", n, "stale_after", s.staleAfter)
	}
}
