package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/dataflows/internal/domain"
)

func TestBuildDAG_SimpleChain(t *testing.T) {
	// Цепочка candidate-set flow: query → transform → create_record
	spec := &domain.FlowSpec{
		Steps: []domain.StepDef{
			{ID: "query", Type: "query"},
			{ID: "transform", Type: "transform", DependsOn: []string{"query"}},
			{ID: "create_record", Type: "record", DependsOn: []string{"transform"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", dag.Size())
	}

	if len(dag.RootNodes) != 1 {
		t.Fatalf("expected 1 root node, got %d", len(dag.RootNodes))
	}
	if dag.RootNodes[0].ID != "query" {
		t.Errorf("expected root node query, got %s", dag.RootNodes[0].ID)
	}

	nodeT := dag.GetNode("transform")
	if len(nodeT.DependsOn) != 1 || nodeT.DependsOn[0].ID != "query" {
		t.Error("transform should depend on query")
	}

	nodeR := dag.GetNode("create_record")
	if len(nodeR.DependsOn) != 1 || nodeR.DependsOn[0].ID != "transform" {
		t.Error("create_record should depend on transform")
	}
}

func TestBuildDAG_FanOut(t *testing.T) {
	// Форма orchestrator flow:
	// trigger_dbt → wait_dbt → trigger_pre → wait_pre
	//                        → trigger_post → wait_post
	spec := &domain.FlowSpec{
		Steps: []domain.StepDef{
			{ID: "trigger_dbt", Type: "trigger"},
			{ID: "wait_dbt", Type: "wait", DependsOn: []string{"trigger_dbt"}},
			{ID: "trigger_pre", Type: "trigger", DependsOn: []string{"wait_dbt"}},
			{ID: "wait_pre", Type: "wait", DependsOn: []string{"trigger_pre"}},
			{ID: "trigger_post", Type: "trigger", DependsOn: []string{"wait_dbt"}},
			{ID: "wait_post", Type: "wait", DependsOn: []string{"trigger_post"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(dag.GetNode("wait_dbt").Dependents); n != 2 {
		t.Errorf("wait_dbt should have 2 dependents, got %d", n)
	}

	// Пока wait_dbt не завершён, ни один downstream trigger не готов
	ready := dag.GetReadyNodes(map[string]bool{"trigger_dbt": true}, nil)
	if len(ready) != 1 || ready[0].ID != "wait_dbt" {
		t.Fatalf("expected only wait_dbt ready, got %v", nodeIDs(ready))
	}

	// После wait_dbt оба trigger готовы одновременно
	ready = dag.GetReadyNodes(map[string]bool{"trigger_dbt": true, "wait_dbt": true}, nil)
	ids := nodeIDs(ready)
	if len(ids) != 2 || ids[0] != "trigger_pre" || ids[1] != "trigger_post" {
		t.Errorf("expected [trigger_pre trigger_post], got %v", ids)
	}
}

func TestBuildDAG_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	spec := &domain.FlowSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "query"},
			{ID: "B", Type: "transform", DependsOn: []string{"A"}},
			{ID: "C", Type: "transform", DependsOn: []string{"A"}},
			{ID: "D", Type: "record", DependsOn: []string{"B", "C"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nodeD := dag.GetNode("D")
	if len(nodeD.DependsOn) != 2 {
		t.Errorf("node D should have 2 dependencies, got %d", len(nodeD.DependsOn))
	}

	tests := map[string]int{"A": 0, "B": 1, "C": 1, "D": 2}
	for id, want := range tests {
		if got := dag.GetNode(id).InDegree; got != want {
			t.Errorf("%s: expected inDegree %d, got %d", id, want, got)
		}
	}

	up := dag.Upstream("D")
	if len(up) != 3 || up[0] != "A" || up[1] != "B" || up[2] != "C" {
		t.Errorf("expected upstream [A B C], got %v", up)
	}
}

func TestBuildDAG_DuplicateDependency(t *testing.T) {
	spec := &domain.FlowSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "query"},
			{ID: "B", Type: "load", DependsOn: []string{"A", "A"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Повторная зависимость не должна удваивать inDegree
	if dag.GetNode("B").InDegree != 1 {
		t.Errorf("expected inDegree 1, got %d", dag.GetNode("B").InDegree)
	}
}

func TestBuildDAG_Errors(t *testing.T) {
	tests := []struct {
		name    string
		steps   []domain.StepDef
		wantErr error
	}{
		{
			name: "cycle",
			steps: []domain.StepDef{
				{ID: "A", Type: "query", DependsOn: []string{"C"}},
				{ID: "B", Type: "query", DependsOn: []string{"A"}},
				{ID: "C", Type: "query", DependsOn: []string{"B"}},
			},
			wantErr: ErrCyclicDependency,
		},
		{
			name: "missing dependency",
			steps: []domain.StepDef{
				{ID: "A", Type: "query", DependsOn: []string{"ghost"}},
			},
			wantErr: ErrMissingDependency,
		},
		{
			name: "self dependency",
			steps: []domain.StepDef{
				{ID: "A", Type: "query", DependsOn: []string{"A"}},
			},
			wantErr: ErrSelfDependency,
		},
		{
			name: "duplicate id",
			steps: []domain.StepDef{
				{ID: "A", Type: "query"},
				{ID: "A", Type: "load"},
			},
			wantErr: ErrDuplicateStepID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildDAG(&domain.FlowSpec{Steps: tt.steps})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetReadyNodes(t *testing.T) {
	spec := &domain.FlowSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "query"},
			{ID: "B", Type: "query"},
			{ID: "C", Type: "transform", DependsOn: []string{"A"}},
			{ID: "D", Type: "record", DependsOn: []string{"A", "B"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Изначально готовы A и B (без зависимостей)
	ids := nodeIDs(dag.GetReadyNodes(nil, nil))
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Errorf("expected [A B], got %v", ids)
	}

	// После завершения A, готовы B и C
	ids = nodeIDs(dag.GetReadyNodes(map[string]bool{"A": true}, nil))
	if len(ids) != 2 || ids[0] != "B" || ids[1] != "C" {
		t.Errorf("expected [B C], got %v", ids)
	}

	// После завершения A и B, готовы C и D
	ids = nodeIDs(dag.GetReadyNodes(map[string]bool{"A": true, "B": true}, nil))
	if len(ids) != 2 || ids[0] != "C" || ids[1] != "D" {
		t.Errorf("expected [C D], got %v", ids)
	}
}

func TestGetReadyNodes_WithRunning(t *testing.T) {
	spec := &domain.FlowSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "query"},
			{ID: "B", Type: "query"},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A выполняется, B готов
	ready := dag.GetReadyNodes(nil, map[string]bool{"A": true})
	if len(ready) != 1 {
		t.Fatalf("expected 1 ready node, got %d", len(ready))
	}
	if ready[0].ID != "B" {
		t.Errorf("expected B to be ready, got %s", ready[0].ID)
	}
}

func TestTopologicalSort(t *testing.T) {
	spec := &domain.FlowSpec{
		Steps: []domain.StepDef{
			{ID: "D", Type: "load", DependsOn: []string{"B", "C"}},
			{ID: "B", Type: "transform", DependsOn: []string{"A"}},
			{ID: "C", Type: "transform", DependsOn: []string{"A"}},
			{ID: "A", Type: "query"},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dag.Order) != 4 {
		t.Fatalf("expected 4 nodes in order, got %d", len(dag.Order))
	}

	positions := make(map[string]int)
	for i, node := range dag.Order {
		positions[node.ID] = i
	}

	pairs := [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}}
	for _, p := range pairs {
		if positions[p[0]] > positions[p[1]] {
			t.Errorf("%s should come before %s", p[0], p[1])
		}
	}
}

func TestDAG_IsComplete(t *testing.T) {
	spec := &domain.FlowSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "query"},
			{ID: "B", Type: "query"},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.IsComplete(nil) {
		t.Error("should not be complete with no completed nodes")
	}

	if dag.IsComplete(map[string]bool{"A": true}) {
		t.Error("should not be complete with only A completed")
	}

	if !dag.IsComplete(map[string]bool{"A": true, "B": true}) {
		t.Error("should be complete with all nodes completed")
	}
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
