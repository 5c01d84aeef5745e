package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/flows"
)

// Flow DTOs

// FlowResponse — ответ с flow.
type FlowResponse struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Schedule    *domain.ScheduleDef `json:"schedule,omitempty"`
	Steps       []domain.StepDef    `json:"steps"`
}

// FlowFromRegistry конвертирует flows.Flow в FlowResponse.
func FlowFromRegistry(f *flows.Flow) FlowResponse {
	return FlowResponse{
		Name:        f.Spec.Name,
		Description: f.Spec.Description,
		Schedule:    f.Spec.Schedule,
		Steps:       f.Spec.Steps,
	}
}

// Run DTOs

// CreateRunRequest — запрос на запуск flow.
type CreateRunRequest struct {
	// Project — проект, в котором запускается flow. Пусто — проект сервиса.
	Project        string            `json:"project,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID         `json:"id"`
	FlowName       string            `json:"flow_name"`
	Status         string            `json:"status"`
	Trigger        string            `json:"trigger"`
	Params         map[string]string `json:"params,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	Error          string            `json:"error,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		FlowName:       r.FlowName,
		Status:         string(r.Status),
		Trigger:        string(r.Trigger),
		Params:         r.Params,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

// ToDomain конвертирует ответ обратно в domain.Run (для клиента).
func (r RunResponse) ToDomain() domain.Run {
	return domain.Run{
		ID:             r.ID,
		FlowName:       r.FlowName,
		Status:         domain.RunStatus(r.Status),
		Trigger:        domain.Trigger(r.Trigger),
		Params:         r.Params,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID         uuid.UUID      `json:"id"`
	RunID      uuid.UUID      `json:"run_id"`
	StepID     string         `json:"step_id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Attempt    int            `json:"attempt"`
	Status     string         `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		RunID:      t.RunID,
		StepID:     t.StepID,
		Name:       t.Name,
		Type:       t.Type,
		Attempt:    t.Attempt,
		Status:     string(t.Status),
		Outputs:    t.Outputs,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
	}
}

// Schedule DTOs

// SetEnabledRequest — включение/выключение schedule.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID  `json:"id"`
	FlowName    string     `json:"flow_name"`
	CronExpr    string     `json:"cron_expr,omitempty"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	Timezone    string     `json:"timezone"`
	Enabled     bool       `json:"enabled"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID `json:"last_run_id,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:          s.ID,
		FlowName:    s.FlowName,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
		UpdatedAt:   s.UpdatedAt,
	}
}
