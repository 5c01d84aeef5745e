package runner

import (
	"sort"
	"sync"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/engine"
)

// RunState — состояние выполнения одного run в памяти.
//
// Создаётся в начале Execute и живёт до завершения run.
// Хранит статусы шагов и результаты для зависимых шагов.
type RunState struct {
	// Run — выполняемый run.
	Run *domain.Run

	// DAG — граф зависимостей шагов.
	DAG *engine.DAG

	// completed — завершённые шаги (stepID → true).
	completed map[string]bool

	// running — шаги в процессе выполнения (stepID → true).
	running map[string]bool

	// failed — упавшие шаги (stepID → текст ошибки).
	failed map[string]string

	// outputs — результаты завершённых шагов (stepID → Result.Value).
	outputs map[string]any

	mu sync.RWMutex
}

// NewRunState создаёт новый RunState.
func NewRunState(run *domain.Run, dag *engine.DAG) *RunState {
	return &RunState{
		Run:       run,
		DAG:       dag,
		completed: make(map[string]bool),
		running:   make(map[string]bool),
		failed:    make(map[string]string),
		outputs:   make(map[string]any),
	}
}

// GetReadySteps возвращает шаги, готовые к выполнению.
// После первого упавшего шага новых готовых шагов нет.
func (s *RunState) GetReadySteps() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.failed) > 0 {
		return nil
	}
	return s.DAG.GetReadyNodes(s.completed, s.running)
}

// MarkStepRunning помечает шаг как выполняющийся.
func (s *RunState) MarkStepRunning(stepID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running[stepID] = true
}

// MarkStepCompleted помечает шаг как успешно завершённый и сохраняет его результат.
func (s *RunState) MarkStepCompleted(stepID string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, stepID)
	s.completed[stepID] = true
	s.outputs[stepID] = value
}

// MarkStepFailed помечает шаг как упавший.
func (s *RunState) MarkStepFailed(stepID string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, stepID)
	s.failed[stepID] = errMsg
}

// Outputs возвращает копию результатов завершённых шагов.
func (s *RunState) Outputs() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.outputs))
	for k, v := range s.outputs {
		out[k] = v
	}
	return out
}

// IsComplete проверяет, все ли шаги завершены успешно.
func (s *RunState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DAG.IsComplete(s.completed)
}

// HasFailed проверяет, есть ли упавшие шаги.
func (s *RunState) HasFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.failed) > 0
}

// GetFailedSteps возвращает отсортированный список упавших шагов.
func (s *RunState) GetFailedSteps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]string, 0, len(s.failed))
	for stepID := range s.failed {
		steps = append(steps, stepID)
	}
	sort.Strings(steps)
	return steps
}

// StepError возвращает текст ошибки упавшего шага.
func (s *RunState) StepError(stepID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.failed[stepID]
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.DAG.Size()
	return RunStats{
		TotalSteps:     total,
		CompletedSteps: len(s.completed),
		RunningSteps:   len(s.running),
		FailedSteps:    len(s.failed),
		PendingSteps:   total - len(s.completed) - len(s.running) - len(s.failed),
	}
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`
	RunningSteps   int `json:"running_steps"`
	FailedSteps    int `json:"failed_steps"`
	PendingSteps   int `json:"pending_steps"`
}
