package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/flows"
	"github.com/shaiso/dataflows/internal/repo"
	"github.com/shaiso/dataflows/internal/runner"
)

// RunSubmitter запускает runs.
type RunSubmitter interface {
	Submit(ctx context.Context, req runner.SubmitRequest) (*domain.Run, bool, error)
}

// RunReader читает историю runs.
type RunReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// TaskReader читает tasks run.
type TaskReader interface {
	ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.Task, error)
}

// ScheduleStore — хранилище schedules.
type ScheduleStore interface {
	List(ctx context.Context) ([]domain.Schedule, error)
	GetByFlowName(ctx context.Context, flowName string) (*domain.Schedule, error)
	SetEnabled(ctx context.Context, flowName string, enabled bool) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flows     *flows.Registry
	runner    RunSubmitter
	runs      RunReader
	tasks     TaskReader
	schedules ScheduleStore
	project   string
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Flows     *flows.Registry
	Runner    RunSubmitter
	Runs      RunReader
	Tasks     TaskReader
	Schedules ScheduleStore

	// Project — проект, которым управляет этот сервис.
	// Запуск в другом проекте возвращает 404. Пусто — проверка выключена.
	Project string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		flows:     cfg.Flows,
		runner:    cfg.Runner,
		runs:      cfg.Runs,
		tasks:     cfg.Tasks,
		schedules: cfg.Schedules,
		project:   cfg.Project,
		logger:    logger,
	}
}
