package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/engine"
	"github.com/shaiso/dataflows/internal/flows"
	"github.com/shaiso/dataflows/internal/telemetry"
)

// stepResult — итог выполнения одного шага.
type stepResult struct {
	stepID string
	value  any
	err    error
}

// Execute выполняет run синхронно. Run должен быть в статусе PENDING.
//
// Возвращает ErrRunFailed, если run завершился не SUCCEEDED.
// Финальный статус и текст ошибки записываются в сам run.
func (r *Runner) Execute(ctx context.Context, run *domain.Run) error {
	state, err := r.prepare(ctx, run)
	if err != nil {
		return err
	}
	return r.execute(ctx, state)
}

// prepare строит DAG и регистрирует run как активный.
// Невалидный flow сразу переводит run в FAILED.
func (r *Runner) prepare(ctx context.Context, run *domain.Run) (*RunState, error) {
	if run.Status != domain.RunStatusPending {
		return nil, fmt.Errorf("%w: %s", ErrRunNotPending, run.Status)
	}

	flow, err := r.flows.Get(run.FlowName)
	if err != nil {
		r.failRun(ctx, run, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	dag, err := engine.BuildDAG(&flow.Spec)
	if err != nil {
		r.failRun(ctx, run, fmt.Sprintf("build DAG: %v", err))
		return nil, fmt.Errorf("%w: build DAG: %w", ErrRunFailed, err)
	}

	state := NewRunState(run, dag)
	if err := r.addActiveRun(state); err != nil {
		return nil, err
	}

	return state, nil
}

// execute — цикл диспетчеризации: запускает готовые шаги, собирает результаты.
func (r *Runner) execute(ctx context.Context, state *RunState) error {
	defer r.removeActiveRun(state)

	run := state.Run
	flow, _ := r.flows.Get(run.FlowName)
	logger := telemetry.WithFlow(telemetry.WithRunID(r.logger, run.ID.String()), run.FlowName)

	run.MarkRunning()
	r.saveRun(ctx, run)

	logger.Info("run started",
		"trigger", run.Trigger,
		"steps", state.DAG.Size(),
	)

	results := make(chan stepResult)
	inFlight := 0

	for {
		// После первого падения или отмены новые шаги не запускаются,
		// уже запущенные дорабатывают.
		if ctx.Err() == nil {
			for _, node := range state.GetReadySteps() {
				task := r.newTask(ctx, run.ID, node.Step)
				state.MarkStepRunning(node.ID)
				inFlight++

				tc := flows.NewTaskContext(run.ID, run.FlowName, node.ID, run.Params,
					state.Outputs(), telemetry.WithStepID(logger, node.ID))

				go func(step *domain.StepDef, fn flows.Task) {
					value, err := r.runStep(ctx, run, step, task, fn, tc)
					results <- stepResult{stepID: step.ID, value: value, err: err}
				}(node.Step, flow.Tasks[node.ID])
			}
		}

		if inFlight == 0 {
			break
		}

		res := <-results
		inFlight--

		if res.err != nil {
			state.MarkStepFailed(res.stepID, res.err.Error())
			logger.Error("step failed", "step_id", res.stepID, "error", res.err)
			continue
		}
		state.MarkStepCompleted(res.stepID, res.value)
	}

	return r.completeRun(ctx, state, logger)
}

// runStep выполняет шаг с учётом таймаута и retry политики.
func (r *Runner) runStep(ctx context.Context, run *domain.Run, step *domain.StepDef, task *domain.Task, fn flows.Task, tc *flows.TaskContext) (any, error) {
	attempts := maxAttempts(step.Retry)
	timeout := time.Duration(step.TimeoutSec) * time.Second

	for {
		task.MarkRunning()
		r.saveTask(ctx, task)

		result, err := r.attempt(ctx, fn, tc, timeout)
		if err == nil {
			var outputs map[string]any
			var value any
			if result != nil {
				outputs = result.Outputs
				value = result.Value
			}
			task.MarkSucceeded(outputs)
			r.saveTask(ctx, task)
			r.metrics.ObserveTask(run.FlowName, step.ID, string(domain.TaskStatusSucceeded))
			tc.Logger.Info("step succeeded", "attempt", task.Attempt, "duration_ms", task.Duration().Milliseconds())
			return value, nil
		}

		if !task.CanRetry(attempts) || ctx.Err() != nil {
			task.MarkFailed(err.Error())
			r.saveTask(ctx, task)
			r.metrics.ObserveTask(run.FlowName, step.ID, string(domain.TaskStatusFailed))
			return nil, err
		}

		delay := calculateBackoff(task.Attempt, step.Retry)
		tc.Logger.Warn("step failed, retrying",
			"attempt", task.Attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)

		task.ResetForRetry()
		r.saveTask(ctx, task)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			task.MarkFailed(ctx.Err().Error())
			r.saveTask(ctx, task)
			r.metrics.ObserveTask(run.FlowName, step.ID, string(domain.TaskStatusFailed))
			return nil, ctx.Err()
		}
	}
}

// attempt выполняет одну попытку шага. Паника шага превращается в ошибку.
func (r *Runner) attempt(ctx context.Context, fn flows.Task, tc *flows.TaskContext, timeout time.Duration) (result *flows.Result, err error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrStepPanic, p)
		}
	}()

	result, err = fn(attemptCtx, tc)

	if err != nil && timeout > 0 && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrStepTimeout, timeout, err)
	}
	return result, err
}

// completeRun финализирует run по состоянию шагов.
func (r *Runner) completeRun(ctx context.Context, state *RunState, logger *slog.Logger) error {
	run := state.Run

	switch {
	case state.HasFailed():
		failed := state.GetFailedSteps()
		msg := fmt.Sprintf("steps failed: %v: %s", failed, state.StepError(failed[0]))
		run.MarkFailed(msg)

	case state.IsComplete():
		run.MarkSucceeded()

	case ctx.Err() != nil:
		run.MarkFailed(fmt.Sprintf("run interrupted: %v", ctx.Err()))

	default:
		// Сюда попадаем только при несогласованном DAG.
		run.MarkFailed(fmt.Sprintf("run stalled: %+v", state.Stats()))
	}

	// Финальные записи делаем даже при отменённом ctx.
	finalCtx := context.WithoutCancel(ctx)
	r.saveRun(finalCtx, run)
	r.metrics.ObserveRun(run.FlowName, string(run.Status), run.Duration())

	if r.events != nil {
		if err := r.events.PublishRunCompleted(finalCtx, run); err != nil {
			logger.Warn("failed to publish run.completed", "error", err)
		}
	}

	if run.Status != domain.RunStatusSucceeded {
		logger.Error("run failed",
			"duration_ms", run.Duration().Milliseconds(),
			"error", run.Error,
		)
		return fmt.Errorf("%w: %s", ErrRunFailed, run.Error)
	}

	logger.Info("run succeeded", "duration_ms", run.Duration().Milliseconds())
	return nil
}

// failRun переводит run в FAILED до начала выполнения шагов.
func (r *Runner) failRun(ctx context.Context, run *domain.Run, errMsg string) {
	run.MarkFailed(errMsg)
	r.saveRun(ctx, run)
	r.metrics.ObserveRun(run.FlowName, string(run.Status), 0)

	if r.events != nil {
		if err := r.events.PublishRunCompleted(ctx, run); err != nil {
			r.logger.Warn("failed to publish run.completed", "run_id", run.ID, "error", err)
		}
	}
}

// newTask создаёт и сохраняет task для шага.
func (r *Runner) newTask(ctx context.Context, runID uuid.UUID, step *domain.StepDef) *domain.Task {
	task := &domain.Task{
		ID:        uuid.New(),
		RunID:     runID,
		StepID:    step.ID,
		Name:      step.Name,
		Type:      step.Type,
		Status:    domain.TaskStatusQueued,
		CreatedAt: time.Now(),
	}

	if r.tasks != nil {
		if err := r.tasks.Create(ctx, task); err != nil {
			r.logger.Warn("failed to persist task", "task_id", task.ID, "error", err)
		}
	}
	return task
}

// saveRun сохраняет run. Ошибка хранилища не прерывает выполнение.
func (r *Runner) saveRun(ctx context.Context, run *domain.Run) {
	if r.runs == nil {
		return
	}
	if err := r.runs.Update(ctx, run); err != nil {
		r.logger.Warn("failed to persist run", "run_id", run.ID, "status", run.Status, "error", err)
	}
}

// saveTask сохраняет task. Ошибка хранилища не прерывает выполнение.
func (r *Runner) saveTask(ctx context.Context, task *domain.Task) {
	if r.tasks == nil {
		return
	}
	if err := r.tasks.Update(ctx, task); err != nil {
		r.logger.Warn("failed to persist task", "task_id", task.ID, "error", err)
	}
}
