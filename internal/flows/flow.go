package flows

import (
	"fmt"
	"time"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/engine"
)

// Flow — исполняемый flow: спецификация и реализации шагов.
type Flow struct {
	Spec  domain.FlowSpec
	Tasks map[string]Task
}

// Name возвращает имя flow.
func (f *Flow) Name() string {
	return f.Spec.Name
}

// Interval возвращает интервал расписания или 0, если его нет.
func (f *Flow) Interval() time.Duration {
	if f.Spec.Schedule == nil {
		return 0
	}
	return time.Duration(f.Spec.Schedule.IntervalSec) * time.Second
}

// Validate проверяет спецификацию и соответствие шагов реализациям.
func (f *Flow) Validate() error {
	if err := engine.Validate(&f.Spec); err != nil {
		return fmt.Errorf("flow %q: %w", f.Spec.Name, err)
	}

	for _, step := range f.Spec.Steps {
		if f.Tasks[step.ID] == nil {
			return fmt.Errorf("flow %q: %w: %s", f.Spec.Name, ErrMissingTask, step.ID)
		}
	}

	for id := range f.Tasks {
		if _, ok := f.Spec.StepByID(id); !ok {
			return fmt.Errorf("flow %q: %w: task %s has no step", f.Spec.Name, ErrMissingTask, id)
		}
	}

	return nil
}

// builder собирает Flow шаг за шагом, сохраняя порядок объявления.
type builder struct {
	flow *Flow
}

func newBuilder(name, description string) *builder {
	return &builder{flow: &Flow{
		Spec: domain.FlowSpec{
			Name:        name,
			Description: description,
		},
		Tasks: make(map[string]Task),
	}}
}

// every задаёт интервальное расписание.
func (b *builder) every(d time.Duration) *builder {
	if d > 0 {
		b.flow.Spec.Schedule = &domain.ScheduleDef{IntervalSec: int(d / time.Second)}
	}
	return b
}

// step добавляет шаг с реализацией.
func (b *builder) step(def domain.StepDef, task Task) *builder {
	b.flow.Spec.Steps = append(b.flow.Spec.Steps, def)
	b.flow.Tasks[def.ID] = task
	return b
}

func (b *builder) build() *Flow {
	return b.flow
}
