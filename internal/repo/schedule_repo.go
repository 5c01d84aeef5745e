package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/dataflows/internal/domain"
)

const scheduleColumns = `
	id, flow_name, cron_expr, interval_sec, timezone, enabled,
	next_due_at, last_run_at, last_run_id, created_at, updated_at
`

// ScheduleRepo — репозиторий для работы с schedules.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Upsert создаёт schedule для flow или обновляет его определение.
//
// Состояние запусков (next_due_at, last_run_*) и флаг enabled у
// существующего schedule не трогаются, пока не поменялся сам интервал или cron.
func (r *ScheduleRepo) Upsert(ctx context.Context, s *domain.Schedule) error {
	query := `
		INSERT INTO schedules (id, flow_name, cron_expr, interval_sec, timezone,
		                       enabled, next_due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (flow_name) DO UPDATE
		SET cron_expr    = EXCLUDED.cron_expr,
		    interval_sec = EXCLUDED.interval_sec,
		    timezone     = EXCLUDED.timezone,
		    next_due_at  = CASE
		        WHEN schedules.cron_expr IS DISTINCT FROM EXCLUDED.cron_expr
		          OR schedules.interval_sec IS DISTINCT FROM EXCLUDED.interval_sec
		        THEN EXCLUDED.next_due_at
		        ELSE schedules.next_due_at
		    END,
		    updated_at   = EXCLUDED.updated_at
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.ID,
		s.FlowName,
		nullString(s.CronExpr),
		nullInt(s.IntervalSec),
		s.Timezone,
		s.Enabled,
		s.NextDueAt,
		s.CreatedAt,
		s.UpdatedAt,
	)

	saved, err := scanSchedule(row)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	*s = *saved
	return nil
}

// GetByFlowName возвращает schedule flow.
func (r *ScheduleRepo) GetByFlowName(ctx context.Context, flowName string) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE flow_name = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, flowName))
}

// List возвращает все schedules по имени flow.
func (r *ScheduleRepo) List(ctx context.Context) ([]domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY flow_name ASC`
	return r.query(ctx, query)
}

// ListDue возвращает schedules, готовые к выполнению.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true
		  AND next_due_at IS NOT NULL
		  AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	return r.query(ctx, query, now, limit)
}

// Update сохраняет состояние запусков schedule.
func (r *ScheduleRepo) Update(ctx context.Context, s *domain.Schedule) error {
	query := `
		UPDATE schedules
		SET enabled = $2, next_due_at = $3, last_run_at = $4, last_run_id = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Enabled,
		s.NextDueAt,
		s.LastRunAt,
		s.LastRunID,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает/выключает schedule flow.
func (r *ScheduleRepo) SetEnabled(ctx context.Context, flowName string, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules SET enabled = $2, updated_at = NOW() WHERE flow_name = $1
	`, flowName, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *ScheduleRepo) query(ctx context.Context, query string, args ...any) ([]domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var cronExpr *string
	var intervalSec *int

	err := row.Scan(
		&s.ID,
		&s.FlowName,
		&cronExpr,
		&intervalSec,
		&s.Timezone,
		&s.Enabled,
		&s.NextDueAt,
		&s.LastRunAt,
		&s.LastRunID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if cronExpr != nil {
		s.CronExpr = *cronExpr
	}
	if intervalSec != nil {
		s.IntervalSec = *intervalSec
	}

	return &s, nil
}

// nullInt возвращает nil для нулевого int.
func nullInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}
