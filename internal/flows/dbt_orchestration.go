package flows

import (
	"context"
	"fmt"

	"github.com/shaiso/dataflows/internal/domain"
)

// Имена flows, которыми управляет DBT Orchestration Flow.
const (
	DBTOrchestrationFlow = "DBT Orchestration Flow"
	DBTJobFlow           = "DBT Job Flow"
	PrereviewFlow        = "Prereview Engagement Feature Store Flow"
	PostreviewFlow       = "Postreview Engagement Feature Store Flow"
)

// dbtChildFlows — flows, которые DBT Orchestration Flow запускает через планировщик.
var dbtChildFlows = []string{DBTJobFlow, PrereviewFlow, PostreviewFlow}

// MissingChildFlows возвращает под-flows оркестратора, которых нет в r.
// Если оркестратор не зарегистрирован, возвращает nil.
func MissingChildFlows(r *Registry) []string {
	if !r.Has(DBTOrchestrationFlow) {
		return nil
	}

	var missing []string
	for _, name := range dbtChildFlows {
		if !r.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ParamProject — параметр запуска, переопределяющий проект планировщика.
const ParamProject = "project"

// NewDBTOrchestration собирает flow, который запускает dbt job, ждёт его
// завершения и затем параллельно запускает оба feature store flow.
//
//	trigger_dbt_job → wait_dbt_job ─┬→ trigger_prereview  → wait_prereview
//	                                └→ trigger_postreview → wait_postreview
//
// Неуспешный статус любого ожидаемого run валит весь flow. Повторов нет.
func NewDBTOrchestration(deps Deps) *Flow {
	b := newBuilder(DBTOrchestrationFlow,
		"Runs the dbt job flow, then the engagement feature store flows")

	b.step(domain.StepDef{ID: "trigger_dbt_job", Name: "Create " + DBTJobFlow + " run", Type: "trigger"},
		triggerTask(deps, DBTJobFlow))
	b.step(domain.StepDef{ID: "wait_dbt_job", Name: "Wait for " + DBTJobFlow, Type: "wait",
		DependsOn: []string{"trigger_dbt_job"}},
		waitTask(deps, "trigger_dbt_job"))

	b.step(domain.StepDef{ID: "trigger_prereview", Name: "Create " + PrereviewFlow + " run", Type: "trigger",
		DependsOn: []string{"wait_dbt_job"}},
		triggerTask(deps, PrereviewFlow))
	b.step(domain.StepDef{ID: "wait_prereview", Name: "Wait for " + PrereviewFlow, Type: "wait",
		DependsOn: []string{"trigger_prereview"}},
		waitTask(deps, "trigger_prereview"))

	b.step(domain.StepDef{ID: "trigger_postreview", Name: "Create " + PostreviewFlow + " run", Type: "trigger",
		DependsOn: []string{"wait_dbt_job"}},
		triggerTask(deps, PostreviewFlow))
	b.step(domain.StepDef{ID: "wait_postreview", Name: "Wait for " + PostreviewFlow, Type: "wait",
		DependsOn: []string{"trigger_postreview"}},
		waitTask(deps, "trigger_postreview"))

	return b.build()
}

// triggerTask запускает flowName и передаёт RunHandle дальше.
func triggerTask(deps Deps, flowName string) Task {
	return func(ctx context.Context, tc *TaskContext) (*Result, error) {
		if deps.Trigger == nil {
			return nil, fmt.Errorf("%w: scheduler trigger", ErrNotConfigured)
		}

		project := tc.Param(ParamProject, deps.project())

		handle, err := deps.Trigger.Start(ctx, flowName, project)
		if err != nil {
			return nil, fmt.Errorf("start %q: %w", flowName, err)
		}

		tc.Logger.Info("flow run created",
			"child_flow", flowName,
			"child_run_id", handle.RunID,
			"project", project,
		)

		return &Result{
			Value: handle,
			Outputs: map[string]any{
				"flow":    flowName,
				"run_id":  handle.RunID.String(),
				"project": project,
			},
		}, nil
	}
}

// waitTask ждёт run, запущенный шагом triggerStep.
func waitTask(deps Deps, triggerStep string) Task {
	return func(ctx context.Context, tc *TaskContext) (*Result, error) {
		if deps.Trigger == nil {
			return nil, fmt.Errorf("%w: scheduler trigger", ErrNotConfigured)
		}

		handle, err := OutputAs[domain.RunHandle](tc, triggerStep)
		if err != nil {
			return nil, err
		}

		result, err := deps.Trigger.Await(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("wait %q: %w", handle.FlowName, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %s (%s): %w", ErrUpstreamRunFailed, handle.FlowName, handle.RunID, err)
		}
		if !result.Succeeded() {
			return nil, fmt.Errorf("%w: %s (%s) finished %s: %s",
				ErrUpstreamRunFailed, handle.FlowName, handle.RunID, result.Status, result.Error)
		}

		tc.Logger.Info("flow run finished",
			"child_flow", handle.FlowName,
			"child_run_id", handle.RunID,
			"status", result.Status,
		)

		return &Result{
			Value: result,
			Outputs: map[string]any{
				"run_id": handle.RunID.String(),
				"status": string(result.Status),
			},
		}, nil
	}
}
