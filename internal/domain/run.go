package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trigger — источник запуска run.
type Trigger string

const (
	// TriggerManual — запуск из CLI (flow exec).
	TriggerManual Trigger = "manual"

	// TriggerSchedule — запуск по расписанию.
	TriggerSchedule Trigger = "schedule"

	// TriggerAPI — запуск через HTTP API (в том числе из другого flow).
	TriggerAPI Trigger = "api"

	// TriggerQueue — запуск по сообщению из очереди flows.trigger.
	TriggerQueue Trigger = "queue"
)

// Run — экземпляр выполнения flow.
//
// Run создаётся когда:
// - Пользователь запускает flow вручную (через CLI)
// - Scheduler создаёт run по расписанию
// - Другой flow запускает этот как под-процесс через API
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// FlowName — имя flow, который выполняется.
	FlowName string `json:"flow_name"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Trigger — кто запустил run.
	Trigger Trigger `json:"trigger"`

	// Params — параметры запуска (например, feature_group).
	Params map[string]string `json:"params,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Для scheduled runs: "{flow_name}_{next_due_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Owner — экземпляр процесса, который выполняет run.
	// Пока run не завершён, владелец периодически продлевает heartbeat.
	Owner string `json:"owner,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(flowName string, trigger Trigger, params map[string]string) *Run {
	return &Run{
		ID:        uuid.New(),
		FlowName:  flowName,
		Status:    RunStatusPending,
		Trigger:   trigger,
		Params:    params,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}
