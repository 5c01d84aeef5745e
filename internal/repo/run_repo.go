package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/dataflows/internal/domain"
)

// uniqueViolation — код ошибки PostgreSQL при нарушении уникальности.
const uniqueViolation = "23505"

const runColumns = `
	id, flow_name, status, trigger, params, started_at, finished_at,
	error, idempotency_key, owner, created_at
`

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
// Повторный ключ идемпотентности для того же flow возвращает ErrAlreadyExists.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	query := `
		INSERT INTO runs (id, flow_name, status, trigger, params, idempotency_key, owner, created_at, heartbeat_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.FlowName,
		run.Status,
		run.Trigger,
		paramsJSON,
		nullString(run.IdempotencyKey),
		nullString(run.Owner),
		run.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert run: %w", ErrAlreadyExists)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает run flow по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, flowName, key string) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE flow_name = $1 AND idempotency_key = $2`
	return scanRun(r.pool.QueryRow(ctx, query, flowName, key))
}

// List возвращает список runs с фильтрацией, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}

	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::text IS NULL OR flow_name = $1)
		  AND ($2::text IS NULL OR status = $2::run_status)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.FlowName),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Update обновляет статус и время выполнения run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = $2, started_at = $3, finished_at = $4, error = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Heartbeat продлевает heartbeat всех незавершённых runs владельца.
func (r *RunRepo) Heartbeat(ctx context.Context, owner string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET heartbeat_at = NOW()
		WHERE owner = $1 AND status IN ('PENDING', 'RUNNING')
	`, owner)
	if err != nil {
		return fmt.Errorf("heartbeat runs: %w", err)
	}
	return nil
}

// FailStale переводит в FAILED незавершённые runs, чей владелец не продлевал
// heartbeat дольше olderThan. Возвращает количество затронутых runs.
func (r *RunRepo) FailStale(ctx context.Context, olderThan time.Duration, reason string) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status = 'FAILED', finished_at = NOW(), error = $2
		WHERE status IN ('PENDING', 'RUNNING')
		  AND COALESCE(heartbeat_at, created_at) < NOW() - make_interval(secs => $1)
	`, olderThan.Seconds(), reason)
	if err != nil {
		return 0, fmt.Errorf("fail stale runs: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

// DefaultLimit — размер страницы списков по умолчанию.
const DefaultLimit = 50

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	FlowName string
	Status   domain.RunStatus
	Limit    int
	Offset   int
}

// scanRun сканирует одну строку в Run.
// pgx.Rows тоже реализует pgx.Row, поэтому функция общая для QueryRow и Query.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var paramsJSON []byte
	var idempotencyKey *string
	var owner *string
	var runError *string

	err := row.Scan(
		&run.ID,
		&run.FlowName,
		&run.Status,
		&run.Trigger,
		&paramsJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&idempotencyKey,
		&owner,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if paramsJSON != nil {
		if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}

	if idempotencyKey != nil {
		run.IdempotencyKey = *idempotencyKey
	}
	if owner != nil {
		run.Owner = *owner
	}
	if runError != nil {
		run.Error = *runError
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
