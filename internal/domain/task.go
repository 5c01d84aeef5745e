package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — выполнение одного шага внутри run.
//
// Task создаётся Runner'ом, когда все зависимости шага завершились успешно.
// Шаги, до которых выполнение не дошло (например, после падения
// соседнего шага), task не получают.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// StepID — ID шага из FlowSpec (соответствует StepDef.ID).
	StepID string `json:"step_id"`

	// Name — имя шага (для удобства, копия StepDef.Name).
	Name string `json:"name"`

	// Type — тип шага: "query", "transform", "validate", "record", "load",
	// "trigger", "wait".
	Type string `json:"type"`

	// Attempt — номер попытки (начиная с 1).
	// Увеличивается при retry.
	Attempt int `json:"attempt"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// Outputs — краткая сводка результата шага для истории запусков
	// (например, {"rows": 42} или {"run_id": "..."}).
	// Полный результат передаётся зависимым шагам в памяти и не сохраняется.
	Outputs map[string]any `json:"outputs,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
	t.Attempt++
}

// MarkSucceeded переводит task в статус SUCCEEDED с результатами.
func (t *Task) MarkSucceeded(outputs map[string]any) {
	now := time.Now()
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
	t.Outputs = outputs
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// ResetForRetry подготавливает task для повторной попытки.
// Сбрасывает статус в QUEUED, очищает ошибку.
func (t *Task) ResetForRetry() {
	t.Status = TaskStatusQueued
	t.StartedAt = nil
	t.FinishedAt = nil
	t.Error = ""
	// Attempt увеличится при следующем MarkRunning()
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (t *Task) CanRetry(maxAttempts int) bool {
	return t.Attempt < maxAttempts
}
