package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/flows"
	"github.com/shaiso/dataflows/internal/runner"
	"github.com/shaiso/dataflows/internal/telemetry"
)

// ScheduleStore — хранилище schedules.
type ScheduleStore interface {
	Upsert(ctx context.Context, s *domain.Schedule) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
}

// StaleRunStore — хранилище runs для очистки брошенных runs.
type StaleRunStore interface {
	FailStale(ctx context.Context, olderThan time.Duration, reason string) (int64, error)
}

// DefaultStaleAfter — через сколько без heartbeat незавершённый run
// считается брошенным.
const DefaultStaleAfter = 2 * time.Minute

// Runner — то, что scheduler требует от runner.Runner.
type Runner interface {
	Submit(ctx context.Context, req runner.SubmitRequest) (*domain.Run, bool, error)
	IsFlowActive(flowName string) bool
}

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules   ScheduleStore
	runs        StaleRunStore
	runner      Runner
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	batchSize   int
	concurrency int
	staleAfter  time.Duration
	now         func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules   ScheduleStore
	Runner      Runner
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
	BatchSize   int // количество schedules за один тик (default: 100)
	Concurrency int // параллельная обработка schedules (default: 4)

	// Runs — если задан, лидер переводит в FAILED runs без heartbeat
	// дольше StaleAfter (default: DefaultStaleAfter).
	Runs       StaleRunStore
	StaleAfter time.Duration

	// Now — источник времени. По умолчанию time.Now.
	Now func() time.Time
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		schedules:   cfg.Schedules,
		runs:        cfg.Runs,
		runner:      cfg.Runner,
		metrics:     cfg.Metrics,
		logger:      logger,
		batchSize:   batchSize,
		concurrency: concurrency,
		staleAfter:  staleAfter,
		now:         now,
	}
}

// Sync записывает расписания всех flows реестра в хранилище.
//
// Новый schedule получает next_due_at = now, то есть первый запуск
// происходит на ближайшем тике.
func (s *Scheduler) Sync(ctx context.Context, registry *flows.Registry) error {
	now := s.now().UTC()

	for _, flow := range registry.All() {
		def := flow.Spec.Schedule
		if def == nil {
			continue
		}

		sched := &domain.Schedule{
			ID:          uuid.New(),
			FlowName:    flow.Name(),
			CronExpr:    def.CronExpr,
			IntervalSec: def.IntervalSec,
			Timezone:    "UTC",
			Enabled:     true,
			NextDueAt:   &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.schedules.Upsert(ctx, sched); err != nil {
			return fmt.Errorf("sync schedule for %q: %w", flow.Name(), err)
		}

		s.logger.Info("schedule synced",
			"flow", sched.FlowName,
			"cron_expr", sched.CronExpr,
			"interval_sec", sched.IntervalSec,
			"next_due_at", sched.NextDueAt,
			"enabled", sched.Enabled,
		)
	}

	return nil
}

// Tick выполняет один тик планировщика.
//
//  1. Находит due schedules (enabled=true, next_due_at <= now)
//  2. Для каждого отправляет run в runner (если flow сейчас не выполняется)
//  3. Переносит next_due_at
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	results := make([]outcome, len(schedules))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range schedules {
		sched := &schedules[i]
		g.Go(func() error {
			res, err := s.processSchedule(ctx, sched, now)
			if err != nil {
				s.logger.Error("failed to process schedule",
					"schedule_id", sched.ID,
					"flow", sched.FlowName,
					"error", err,
				)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var created, skipped int
	for _, res := range results {
		switch res {
		case outcomeCreated:
			created++
		case outcomeSkipped:
			skipped++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"runs_created", created,
		"skipped", skipped,
	)

	return nil
}

// outcome — итог обработки одного schedule.
type outcome int

const (
	outcomeFailed outcome = iota
	outcomeCreated
	outcomeExisting
	outcomeSkipped
)

// processSchedule обрабатывает один schedule.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (outcome, error) {
	nextDue, err := NextDue(sched, now)
	if err != nil {
		// Некорректный schedule: next_due_at не трогаем, он всплывёт в логах снова
		return outcomeFailed, err
	}

	// Не запускаем второй run, пока предыдущий этого flow ещё идёт.
	if s.runner.IsFlowActive(sched.FlowName) {
		s.logger.Warn("flow still running, skipping scheduled run",
			"flow", sched.FlowName,
			"due_at", sched.NextDueAt,
		)
		sched.Advance(nextDue)
		if err := s.schedules.Update(ctx, sched); err != nil {
			return outcomeSkipped, fmt.Errorf("update schedule: %w", err)
		}
		return outcomeSkipped, nil
	}

	// Ключ "{flow_name}_{next_due_at_unix}": один run на flow и момент времени.
	idempKey := fmt.Sprintf("%s_%d", sched.FlowName, sched.NextDueAt.Unix())

	run, created, err := s.runner.Submit(ctx, runner.SubmitRequest{
		FlowName:       sched.FlowName,
		Trigger:        domain.TriggerSchedule,
		IdempotencyKey: idempKey,
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("submit run: %w", err)
	}

	res := outcomeExisting
	if created {
		res = outcomeCreated
		s.metrics.ScheduledRun(sched.FlowName)
		s.logger.Info("created run from schedule",
			"run_id", run.ID,
			"flow", sched.FlowName,
			"idempotency_key", idempKey,
		)
	} else {
		s.logger.Debug("run already exists (idempotency)",
			"run_id", run.ID,
			"flow", sched.FlowName,
			"idempotency_key", idempKey,
		)
	}

	sched.RecordRun(run.ID, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return res, fmt.Errorf("update schedule: %w", err)
	}

	return res, nil
}
