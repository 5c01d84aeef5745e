package flows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Task — реализация одного шага flow.
type Task func(ctx context.Context, tc *TaskContext) (*Result, error)

// Result — результат шага.
type Result struct {
	// Value — значение, доступное зависимым шагам через TaskContext.Output.
	Value any

	// Outputs — краткая сводка для истории запусков (сохраняется в Task.Outputs).
	Outputs map[string]any
}

// TaskContext — всё, что шаг знает о текущем run.
type TaskContext struct {
	// RunID — ID текущего run.
	RunID uuid.UUID

	// FlowName — имя выполняемого flow.
	FlowName string

	// StepID — ID выполняемого шага.
	StepID string

	// Params — параметры запуска run.
	Params map[string]string

	// Logger — логгер с run_id, flow и step_id.
	Logger *slog.Logger

	outputs map[string]any
}

// NewTaskContext создаёт контекст шага.
// outputs — значения завершённых шагов (stepID → Result.Value).
func NewTaskContext(runID uuid.UUID, flowName, stepID string, params map[string]string, outputs map[string]any, logger *slog.Logger) *TaskContext {
	return &TaskContext{
		RunID:    runID,
		FlowName: flowName,
		StepID:   stepID,
		Params:   params,
		Logger:   logger,
		outputs:  outputs,
	}
}

// Output возвращает значение завершённого шага.
func (tc *TaskContext) Output(stepID string) (any, bool) {
	v, ok := tc.outputs[stepID]
	return v, ok
}

// Param возвращает параметр запуска или def, если он не задан.
func (tc *TaskContext) Param(key, def string) string {
	if v, ok := tc.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// OutputAs возвращает значение шага stepID, приведённое к T.
func OutputAs[T any](tc *TaskContext, stepID string) (T, error) {
	var zero T

	v, ok := tc.Output(stepID)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrMissingOutput, stepID)
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %T", ErrOutputType, stepID, v, zero)
	}

	return typed, nil
}
