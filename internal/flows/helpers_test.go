package flows_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/config"
	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/flows"
	"github.com/shaiso/dataflows/internal/runner"
	"github.com/shaiso/dataflows/internal/telemetry"
	"github.com/shaiso/dataflows/internal/warehouse"
)

// fakeTrigger — планировщик в памяти. Пишет журнал вызовов
// вида "start:<flow>" и "done:<flow>".
type fakeTrigger struct {
	mu       sync.Mutex
	events   []string
	projects map[string]string
	statuses map[string]domain.RunStatus
	startErr map[string]error
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{
		projects: make(map[string]string),
		statuses: make(map[string]domain.RunStatus),
		startErr: make(map[string]error),
	}
}

func (f *fakeTrigger) Start(_ context.Context, flowName, project string) (domain.RunHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.startErr[flowName]; err != nil {
		return domain.RunHandle{}, err
	}
	f.events = append(f.events, "start:"+flowName)
	f.projects[flowName] = project
	return domain.RunHandle{RunID: uuid.New(), FlowName: flowName, Project: project}, nil
}

func (f *fakeTrigger) Await(_ context.Context, h domain.RunHandle) (domain.RunResult, error) {
	// Имитация работы дочернего flow
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, "done:"+h.FlowName)

	status := domain.RunStatusSucceeded
	if s, ok := f.statuses[h.FlowName]; ok {
		status = s
	}
	res := domain.RunResult{Handle: h, Status: status}
	if status != domain.RunStatusSucceeded {
		res.Error = "child run failed"
		return res, fmt.Errorf("run %s finished %s", h.RunID, status)
	}
	return res, nil
}

func (f *fakeTrigger) journal() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeTrigger) index(event string) int {
	for i, e := range f.journal() {
		if e == event {
			return i
		}
	}
	return -1
}

// fakeWarehouse возвращает заранее заданные строки и запоминает запрос.
type fakeWarehouse struct {
	rows []warehouse.Row
	err  error
	last warehouse.Query
}

func (f *fakeWarehouse) Query(_ context.Context, q warehouse.Query) ([]warehouse.Row, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

// fakeStore запоминает записанные записи.
type fakeStore struct {
	mu      sync.Mutex
	groups  []string
	records []domain.Record
	err     error
}

func (f *fakeStore) PutRecord(_ context.Context, group string, record domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.groups = append(f.groups, group)
	f.records = append(f.records, record)
	return nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "production",
		Analytics:   config.Analytics{Database: "ANALYTICS", DBTSchema: "DBT"},
		Scheduler:   config.Scheduler{Project: "recommendations"},
	}
}

func testDeps() (flows.Deps, *fakeTrigger, *fakeWarehouse, *fakeStore) {
	trigger := newFakeTrigger()
	wh := &fakeWarehouse{}
	store := &fakeStore{}

	return flows.Deps{
		Config:    testConfig(),
		Warehouse: wh,
		Store:     store,
		Trigger:   trigger,
		Now:       func() time.Time { return fixedNow },
	}, trigger, wh, store
}

// runFlow выполняет flow через runner без хранилищ.
func runFlow(t *testing.T, flow *flows.Flow, params map[string]string) (*domain.Run, error) {
	t.Helper()

	reg := flows.NewRegistry()
	if err := reg.Register(flow); err != nil {
		t.Fatalf("register: %v", err)
	}

	r := runner.New(runner.Config{Flows: reg, Logger: telemetry.Discard()})

	run, err := r.RunFlow(context.Background(), flow.Name(), domain.TriggerManual, params)
	if run == nil {
		t.Fatalf("run was not created: %v", err)
	}
	if err != nil && !errors.Is(err, runner.ErrRunFailed) {
		t.Fatalf("unexpected error kind: %v", err)
	}
	return run, err
}
