package engine

import (
	"fmt"

	"github.com/shaiso/dataflows/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Step — определение шага из FlowSpec.
	Step *domain.StepDef

	// ID — идентификатор узла (совпадает с Step.ID).
	ID string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node

	// index — позиция шага в FlowSpec.Steps, задаёт стабильный порядок обхода.
	index int
}

// DAG — направленный ациклический граф шагов flow.
type DAG struct {
	// Nodes — все узлы графа (stepID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node

	// declared — узлы в порядке объявления шагов.
	declared []*Node
}

// BuildDAG строит DAG из FlowSpec.
//
// Все методы обхода возвращают узлы в порядке объявления шагов,
// поэтому порядок запуска готовых шагов детерминирован.
func BuildDAG(spec *domain.FlowSpec) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(spec.Steps)),
		RootNodes: make([]*Node, 0),
		declared:  make([]*Node, 0, len(spec.Steps)),
	}

	// Первый проход: создаём все узлы
	for i := range spec.Steps {
		step := &spec.Steps[i]

		if _, exists := dag.Nodes[step.ID]; exists {
			return nil, NewValidationError(step.ID, "id",
				fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
		}
		dag.addNode(step, i)
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range spec.Steps {
		if err := dag.linkDependencies(&spec.Steps[i]); err != nil {
			return nil, err
		}
	}

	dag.findRootNodes()

	// Проверяем на циклы и строим топологический порядок
	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addNode добавляет узел в DAG.
func (d *DAG) addNode(step *domain.StepDef, index int) {
	node := &Node{
		Step:       step,
		ID:         step.ID,
		DependsOn:  make([]*Node, 0),
		Dependents: make([]*Node, 0),
		index:      index,
	}
	d.Nodes[step.ID] = node
	d.declared = append(d.declared, node)
}

// linkDependencies связывает узлы по зависимостям.
func (d *DAG) linkDependencies(step *domain.StepDef) error {
	node := d.Nodes[step.ID]

	for _, depID := range step.DependsOn {
		if depID == step.ID {
			return NewValidationError(step.ID, "depends_on",
				"step depends on itself", ErrSelfDependency)
		}

		depNode, exists := d.Nodes[depID]
		if !exists {
			return NewValidationError(step.ID, "depends_on",
				fmt.Sprintf("depends on unknown step: %s", depID), ErrMissingDependency)
		}

		d.addEdge(depNode, node)
	}

	return nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.declared {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	// Очередь узлов с inDegree = 0
	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		// Уменьшаем inDegree у зависимых узлов
		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// GetReadyNodes возвращает узлы, готовые к выполнению.
//
// Узел готов, если:
// - Все его зависимости завершены (в completed)
// - Сам узел ещё не завершён и не в процессе (не в completed и не в running)
//
// completed — map stepID → true для завершённых шагов.
// running — map stepID → true для шагов в процессе выполнения.
func (d *DAG) GetReadyNodes(completed, running map[string]bool) []*Node {
	ready := make([]*Node, 0)

	for _, node := range d.declared {
		// Пропускаем уже завершённые или выполняющиеся
		if completed[node.ID] || running[node.ID] {
			continue
		}

		allDepsCompleted := true
		for _, dep := range node.DependsOn {
			if !completed[dep.ID] {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, node)
		}
	}

	return ready
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// IsComplete проверяет, все ли узлы завершены.
func (d *DAG) IsComplete(completed map[string]bool) bool {
	for _, node := range d.declared {
		if !completed[node.ID] {
			return false
		}
	}
	return true
}

// Upstream возвращает все транзитивные зависимости шага.
func (d *DAG) Upstream(id string) []string {
	node, ok := d.Nodes[id]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, dep := range n.DependsOn {
			if !seen[dep.ID] {
				seen[dep.ID] = true
				walk(dep)
			}
		}
	}
	walk(node)

	result := make([]string, 0, len(seen))
	for _, n := range d.declared {
		if seen[n.ID] {
			result = append(result, n.ID)
		}
	}
	return result
}
