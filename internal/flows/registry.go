package flows

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр flows по имени.
//
// Потокобезопасен: API и scheduler читают его одновременно.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]*Flow
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		flows: make(map[string]*Flow),
	}
}

// Register проверяет flow и добавляет его в реестр.
func (r *Registry) Register(flow *Flow) error {
	if err := flow.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[flow.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFlow, flow.Name())
	}
	r.flows[flow.Name()] = flow
	return nil
}

// Get возвращает flow по имени.
// Возвращает ErrFlowNotFound, если flow не найден.
func (r *Registry) Get(name string) (*Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, exists := r.flows[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
	}
	return flow, nil
}

// Has проверяет, зарегистрирован ли flow.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.flows[name]
	return exists
}

// Names возвращает имена всех flows в алфавитном порядке.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All возвращает все flows в алфавитном порядке имён.
func (r *Registry) All() []*Flow {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Flow, 0, len(names))
	for _, name := range names {
		result = append(result, r.flows[name])
	}
	return result
}

// Count возвращает количество зарегистрированных flows.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flows)
}
