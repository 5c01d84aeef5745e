package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/candidates"
	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/warehouse"
)

// ParamFeatureGroup — параметр запуска, переопределяющий feature group.
const ParamFeatureGroup = "feature_group"

// CandidateSetDefaultInterval — каденс candidate-set flows.
const CandidateSetDefaultInterval = 30 * time.Minute

// CandidateSet — описание одного candidate-set flow.
type CandidateSet struct {
	// Name и Description — имя и описание flow.
	Name        string
	Description string

	// SetID — фиксированный ID набора в feature group.
	SetID uuid.UUID

	// SQL и Params — запрос к витрине dbt (параметры вида :name).
	SQL    string
	Params map[string]any

	// Transform — добавить шаги transform (и validate, если Validate).
	// Без него запись строится прямо из результата запроса.
	Transform bool
	Validate  bool

	// Interval — интервал расписания.
	Interval time.Duration
}

// NewCandidateSetFlow собирает flow по общему шаблону:
//
//	query → [transform → [validate]] → create_record → load_record
//
// Пустой результат запроса не ошибка: запись с "[]" всё равно пишется.
func NewCandidateSetFlow(cs CandidateSet, deps Deps) *Flow {
	b := newBuilder(cs.Name, cs.Description).every(cs.Interval)

	b.step(domain.StepDef{ID: "query", Name: "Query scheduled corpus items", Type: "query"},
		queryTask(cs, deps))
	last := "query"

	if cs.Transform {
		b.step(domain.StepDef{ID: "transform", Name: "Transform to corpus items", Type: "transform",
			DependsOn: []string{last}}, transformTask(last))
		last = "transform"

		if cs.Validate {
			b.step(domain.StepDef{ID: "validate", Name: "Validate corpus items", Type: "validate",
				DependsOn: []string{last}}, validateTask(last))
			last = "validate"
		}
	}

	b.step(domain.StepDef{ID: "create_record", Name: "Create candidate set record", Type: "record",
		DependsOn: []string{last}}, recordTask(cs, deps, last))
	b.step(domain.StepDef{ID: "load_record", Name: "Load feature record", Type: "load",
		DependsOn: []string{"create_record"}}, loadTask(deps))

	return b.build()
}

func queryTask(cs CandidateSet, deps Deps) Task {
	return func(ctx context.Context, tc *TaskContext) (*Result, error) {
		if deps.Warehouse == nil {
			return nil, fmt.Errorf("%w: warehouse", ErrNotConfigured)
		}

		q := warehouse.Query{SQL: cs.SQL, Params: cs.Params}
		if deps.Config != nil {
			q.Database = deps.Config.Analytics.Database
			q.Schema = deps.Config.Analytics.DBTSchema
		}

		rows, err := deps.Warehouse.Query(ctx, q)
		if err != nil {
			return nil, err
		}

		tc.Logger.Info("corpus items queried", "rows", len(rows))

		return &Result{
			Value:   rows,
			Outputs: map[string]any{"rows": len(rows)},
		}, nil
	}
}

func transformTask(from string) Task {
	return func(_ context.Context, tc *TaskContext) (*Result, error) {
		rows, err := OutputAs[[]warehouse.Row](tc, from)
		if err != nil {
			return nil, err
		}

		items, err := candidates.TransformRows(rows)
		if err != nil {
			return nil, err
		}

		return &Result{
			Value:   items,
			Outputs: map[string]any{"items": len(items)},
		}, nil
	}
}

func validateTask(from string) Task {
	return func(_ context.Context, tc *TaskContext) (*Result, error) {
		items, err := OutputAs[[]domain.CorpusItem](tc, from)
		if err != nil {
			return nil, err
		}

		kept, report := candidates.Validate(items)
		if report.Dropped() > 0 {
			tc.Logger.Warn("corpus items dropped by validation",
				"total", report.Total,
				"kept", report.Kept,
				"missing_id", report.MissingID,
				"missing_topic", report.MissingTopic,
				"duplicates", report.Duplicates,
			)
		}

		return &Result{
			Value: kept,
			Outputs: map[string]any{
				"total":   report.Total,
				"kept":    report.Kept,
				"dropped": report.Dropped(),
			},
		}, nil
	}
}

// recordTask строит запись из элементов шага from. Если from — сам запрос,
// строки превращаются в элементы без фильтрации.
func recordTask(cs CandidateSet, deps Deps, from string) Task {
	return func(_ context.Context, tc *TaskContext) (*Result, error) {
		var items []domain.CorpusItem

		if from == "query" {
			rows, err := OutputAs[[]warehouse.Row](tc, from)
			if err != nil {
				return nil, err
			}
			if items, err = candidates.TransformRows(rows); err != nil {
				return nil, err
			}
		} else {
			var err error
			if items, err = OutputAs[[]domain.CorpusItem](tc, from); err != nil {
				return nil, err
			}
		}

		set := candidates.NewSet(cs.SetID, items, deps.now())
		record := candidates.NewRecord(set)

		return &Result{
			Value: record,
			Outputs: map[string]any{
				"id":          set.ID.String(),
				"unloaded_at": set.UnloadedAt.Format(candidates.TimestampLayout),
				"items":       len(set.Items),
			},
		}, nil
	}
}

func loadTask(deps Deps) Task {
	return func(ctx context.Context, tc *TaskContext) (*Result, error) {
		if deps.Store == nil {
			return nil, fmt.Errorf("%w: feature store", ErrNotConfigured)
		}

		record, err := OutputAs[domain.Record](tc, "create_record")
		if err != nil {
			return nil, err
		}

		def := ""
		if deps.Config != nil {
			def = deps.Config.CandidateSetFeatureGroup()
		}
		group := tc.Param(ParamFeatureGroup, def)

		if err := deps.Store.PutRecord(ctx, group, record); err != nil {
			return nil, err
		}
		deps.Metrics.RecordWritten(group)

		return &Result{
			Value:   group,
			Outputs: map[string]any{"feature_group": group},
		}, nil
	}
}
