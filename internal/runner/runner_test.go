package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/flows"
	"github.com/shaiso/dataflows/internal/repo"
	"github.com/shaiso/dataflows/internal/telemetry"
)

// fakeRuns — хранилище runs в памяти.
type fakeRuns struct {
	mu         sync.Mutex
	created    []*domain.Run
	updates    []domain.RunStatus
	byKey      map[string]*domain.Run
	heartbeats []string
}

func (f *fakeRuns) Create(_ context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRuns) Update(_ context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, run.Status)
	return nil
}

func (f *fakeRuns) GetByIdempotencyKey(_ context.Context, _, key string) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := f.byKey[key]; ok {
		return run, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRuns) Heartbeat(_ context.Context, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, owner)
	return nil
}

func (f *fakeRuns) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heartbeats)
}

// fakeTasks — хранилище tasks в памяти.
type fakeTasks struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func (f *fakeTasks) Create(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tasks == nil {
		f.tasks = make(map[string]*domain.Task)
	}
	f.tasks[task.StepID] = task
	return nil
}

func (f *fakeTasks) Update(context.Context, *domain.Task) error { return nil }

func (f *fakeTasks) has(stepID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[stepID]
	return ok
}

// fakeEvents — запоминает опубликованные run.completed.
type fakeEvents struct {
	mu   sync.Mutex
	runs []domain.Run
}

func (f *fakeEvents) PublishRunCompleted(_ context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func newTestRunner(t *testing.T, fl ...*flows.Flow) (*Runner, *fakeRuns, *fakeTasks, *fakeEvents) {
	t.Helper()

	reg := flows.NewRegistry()
	for _, f := range fl {
		if err := reg.Register(f); err != nil {
			t.Fatalf("register flow: %v", err)
		}
	}

	runs := &fakeRuns{byKey: make(map[string]*domain.Run)}
	tasks := &fakeTasks{}
	events := &fakeEvents{}

	r := New(Config{
		Flows:   reg,
		Runs:    runs,
		Tasks:   tasks,
		Events:  events,
		Metrics: telemetry.NewMetrics(prometheus.NewRegistry()),
		Logger:  telemetry.Discard(),
	})
	return r, runs, tasks, events
}

func value(v any) flows.Task {
	return func(context.Context, *flows.TaskContext) (*flows.Result, error) {
		return &flows.Result{Value: v}, nil
	}
}

func failing(err error) flows.Task {
	return func(context.Context, *flows.TaskContext) (*flows.Result, error) {
		return nil, err
	}
}

func TestRunner_Chain(t *testing.T) {
	flow := &flows.Flow{
		Spec: domain.FlowSpec{
			Name: "chain",
			Steps: []domain.StepDef{
				{ID: "query", Type: "query"},
				{ID: "transform", Type: "transform", DependsOn: []string{"query"}},
				{ID: "load", Type: "load", DependsOn: []string{"transform"}},
			},
		},
		Tasks: map[string]flows.Task{
			"query": value([]string{"a", "b"}),
			"transform": func(_ context.Context, tc *flows.TaskContext) (*flows.Result, error) {
				rows, err := flows.OutputAs[[]string](tc, "query")
				if err != nil {
					return nil, err
				}
				return &flows.Result{Value: len(rows), Outputs: map[string]any{"rows": len(rows)}}, nil
			},
			"load": func(_ context.Context, tc *flows.TaskContext) (*flows.Result, error) {
				n, err := flows.OutputAs[int](tc, "transform")
				if err != nil {
					return nil, err
				}
				if n != 2 {
					return nil, errors.New("unexpected row count")
				}
				return &flows.Result{}, nil
			},
		},
	}

	r, runs, tasks, events := newTestRunner(t, flow)

	run, err := r.RunFlow(context.Background(), "chain", domain.TriggerManual, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s (%s)", run.Status, run.Error)
	}
	if run.StartedAt == nil || run.FinishedAt == nil {
		t.Error("run timestamps should be set")
	}
	if len(runs.created) != 1 {
		t.Errorf("expected 1 created run, got %d", len(runs.created))
	}
	if last := runs.updates[len(runs.updates)-1]; last != domain.RunStatusSucceeded {
		t.Errorf("last persisted status should be SUCCEEDED, got %s", last)
	}
	for _, id := range []string{"query", "transform", "load"} {
		if !tasks.has(id) {
			t.Errorf("task for %s was not created", id)
		}
	}
	if got := tasks.tasks["transform"].Outputs["rows"]; got != 2 {
		t.Errorf("expected transform outputs rows=2, got %v", got)
	}
	if len(events.runs) != 1 || events.runs[0].Status != domain.RunStatusSucceeded {
		t.Errorf("expected one run.completed event, got %+v", events.runs)
	}
	if r.ActiveRunsCount() != 0 {
		t.Errorf("expected no active runs, got %d", r.ActiveRunsCount())
	}
}

func TestRunner_FanOutRunsConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)

	// Каждая ветка ждёт, пока стартует вторая.
	// Последовательное выполнение упрётся в таймаут.
	barrier := func(context.Context, *flows.TaskContext) (*flows.Result, error) {
		wg.Done()
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return &flows.Result{}, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("branches did not run concurrently")
		}
	}

	flow := &flows.Flow{
		Spec: domain.FlowSpec{
			Name: "fan-out",
			Steps: []domain.StepDef{
				{ID: "root", Type: "wait"},
				{ID: "left", Type: "trigger", DependsOn: []string{"root"}},
				{ID: "right", Type: "trigger", DependsOn: []string{"root"}},
			},
		},
		Tasks: map[string]flows.Task{
			"root":  value(nil),
			"left":  barrier,
			"right": barrier,
		},
	}

	r, _, _, _ := newTestRunner(t, flow)

	run, err := r.RunFlow(context.Background(), "fan-out", domain.TriggerManual, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v (%s)", err, run.Error)
	}
}

func TestRunner_FailureStopsDispatch(t *testing.T) {
	var mu sync.Mutex
	started := make(map[string]bool)
	mark := func(id string, fn flows.Task) flows.Task {
		return func(ctx context.Context, tc *flows.TaskContext) (*flows.Result, error) {
			mu.Lock()
			started[id] = true
			mu.Unlock()
			return fn(ctx, tc)
		}
	}

	slowOK := func(context.Context, *flows.TaskContext) (*flows.Result, error) {
		time.Sleep(50 * time.Millisecond)
		return &flows.Result{}, nil
	}

	//   A → B (fails) → C
	//   A → D (slow, in flight when B fails)
	flow := &flows.Flow{
		Spec: domain.FlowSpec{
			Name: "failing",
			Steps: []domain.StepDef{
				{ID: "A", Type: "trigger"},
				{ID: "B", Type: "wait", DependsOn: []string{"A"}},
				{ID: "C", Type: "trigger", DependsOn: []string{"B"}},
				{ID: "D", Type: "wait", DependsOn: []string{"A"}},
			},
		},
		Tasks: map[string]flows.Task{
			"A": mark("A", value(nil)),
			"B": mark("B", failing(errors.New("dbt job failed"))),
			"C": mark("C", value(nil)),
			"D": mark("D", slowOK),
		},
	}

	r, _, tasks, events := newTestRunner(t, flow)

	run, err := r.RunFlow(context.Background(), "failing", domain.TriggerManual, nil)
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}

	if run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}
	if !strings.Contains(run.Error, "steps failed: [B]") || !strings.Contains(run.Error, "dbt job failed") {
		t.Errorf("unexpected run error: %s", run.Error)
	}
	if started["C"] {
		t.Error("C must not start after B failed")
	}
	if tasks.has("C") {
		t.Error("C should not get a task")
	}
	// D уже выполнялся и должен был доработать
	if d := tasks.tasks["D"]; d == nil || d.Status != domain.TaskStatusSucceeded {
		t.Errorf("in-flight step D should finish, got %+v", d)
	}
	if len(events.runs) != 1 || events.runs[0].Status != domain.RunStatusFailed {
		t.Errorf("expected failed run.completed event, got %+v", events.runs)
	}
}

func TestRunner_Retry(t *testing.T) {
	calls := 0
	flaky := func(context.Context, *flows.TaskContext) (*flows.Result, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("warehouse unavailable")
		}
		return &flows.Result{}, nil
	}

	flow := &flows.Flow{
		Spec: domain.FlowSpec{
			Name: "retry",
			Steps: []domain.StepDef{{
				ID:    "query",
				Type:  "query",
				Retry: &domain.RetryPolicy{MaxAttempts: 3, Backoff: "fixed", InitialDelayMs: 1},
			}},
		},
		Tasks: map[string]flows.Task{"query": flaky},
	}

	r, _, tasks, _ := newTestRunner(t, flow)

	if _, err := r.RunFlow(context.Background(), "retry", domain.TriggerManual, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if got := tasks.tasks["query"].Attempt; got != 3 {
		t.Errorf("expected attempt 3, got %d", got)
	}
}

func TestRunner_RetryExhausted(t *testing.T) {
	calls := 0
	flow := &flows.Flow{
		Spec: domain.FlowSpec{
			Name: "exhausted",
			Steps: []domain.StepDef{{
				ID:    "load",
				Type:  "load",
				Retry: &domain.RetryPolicy{MaxAttempts: 2, InitialDelayMs: 1},
			}},
		},
		Tasks: map[string]flows.Task{
			"load": func(context.Context, *flows.TaskContext) (*flows.Result, error) {
				calls++
				return nil, errors.New("throttled")
			},
		},
	}

	r, _, tasks, _ := newTestRunner(t, flow)

	_, err := r.RunFlow(context.Background(), "exhausted", domain.TriggerManual, nil)
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if task := tasks.tasks["load"]; task.Status != domain.TaskStatusFailed || task.Error != "throttled" {
		t.Errorf("unexpected task state: %+v", task)
	}
}

func TestRunner_StepTimeout(t *testing.T) {
	flow := &flows.Flow{
		Spec: domain.FlowSpec{
			Name:  "timeout",
			Steps: []domain.StepDef{{ID: "wait", Type: "wait", TimeoutSec: 1}},
		},
		Tasks: map[string]flows.Task{
			"wait": func(ctx context.Context, _ *flows.TaskContext) (*flows.Result, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
	}

	r, _, _, _ := newTestRunner(t, flow)

	run, err := r.RunFlow(context.Background(), "timeout", domain.TriggerManual, nil)
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}
	if !strings.Contains(run.Error, ErrStepTimeout.Error()) {
		t.Errorf("expected timeout in run error, got %s", run.Error)
	}
}

func TestRunner_StepPanic(t *testing.T) {
	flow := &flows.Flow{
		Spec: domain.FlowSpec{
			Name:  "panic",
			Steps: []domain.StepDef{{ID: "transform", Type: "transform"}},
		},
		Tasks: map[string]flows.Task{
			"transform": func(context.Context, *flows.TaskContext) (*flows.Result, error) {
				panic("nil map")
			},
		},
	}

	r, _, _, _ := newTestRunner(t, flow)

	run, err := r.RunFlow(context.Background(), "panic", domain.TriggerManual, nil)
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}
	if !strings.Contains(run.Error, "step panicked") {
		t.Errorf("expected panic in run error, got %s", run.Error)
	}
}

func TestRunner_UnknownFlow(t *testing.T) {
	r, _, _, _ := newTestRunner(t)

	_, err := r.RunFlow(context.Background(), "missing", domain.TriggerManual, nil)
	if !errors.Is(err, flows.ErrFlowNotFound) {
		t.Errorf("expected ErrFlowNotFound, got %v", err)
	}
}

func TestRunner_ExecuteRequiresPending(t *testing.T) {
	r, _, _, _ := newTestRunner(t)

	run := domain.NewRun("any", domain.TriggerManual, nil)
	run.MarkRunning()

	if err := r.Execute(context.Background(), run); !errors.Is(err, ErrRunNotPending) {
		t.Errorf("expected ErrRunNotPending, got %v", err)
	}
}

func TestRunner_Submit(t *testing.T) {
	release := make(chan struct{})
	flow := &flows.Flow{
		Spec: domain.FlowSpec{
			Name:  "async",
			Steps: []domain.StepDef{{ID: "wait", Type: "wait"}},
		},
		Tasks: map[string]flows.Task{
			"wait": func(context.Context, *flows.TaskContext) (*flows.Result, error) {
				<-release
				return &flows.Result{}, nil
			},
		},
	}

	r, runs, _, events := newTestRunner(t, flow)

	run, created, err := r.Submit(context.Background(), SubmitRequest{
		FlowName:       "async",
		Trigger:        domain.TriggerAPI,
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected new run")
	}
	if run.Status != domain.RunStatusPending {
		t.Errorf("expected PENDING snapshot, got %s", run.Status)
	}
	if !r.IsFlowActive("async") {
		t.Error("flow should be active right after Submit")
	}

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if r.IsFlowActive("async") {
		t.Error("flow should not be active after shutdown")
	}
	if len(runs.created) != 1 || runs.created[0].IdempotencyKey != "key-1" {
		t.Errorf("unexpected created runs: %+v", runs.created)
	}
	if len(events.runs) != 1 || events.runs[0].Status != domain.RunStatusSucceeded {
		t.Errorf("expected succeeded event, got %+v", events.runs)
	}

	if _, _, err := r.Submit(context.Background(), SubmitRequest{FlowName: "async"}); !errors.Is(err, ErrRunnerStopped) {
		t.Errorf("expected ErrRunnerStopped after shutdown, got %v", err)
	}
}

func TestRunner_SubmitIdempotent(t *testing.T) {
	flow := &flows.Flow{
		Spec:  domain.FlowSpec{Name: "idem", Steps: []domain.StepDef{{ID: "query", Type: "query"}}},
		Tasks: map[string]flows.Task{"query": value(nil)},
	}

	r, runs, _, _ := newTestRunner(t, flow)

	existing := domain.NewRun("idem", domain.TriggerSchedule, nil)
	runs.byKey["sched_1700000000"] = existing

	run, created, err := r.Submit(context.Background(), SubmitRequest{
		FlowName:       "idem",
		Trigger:        domain.TriggerSchedule,
		IdempotencyKey: "sched_1700000000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected existing run to be returned")
	}
	if run.ID != existing.ID {
		t.Errorf("expected run %s, got %s", existing.ID, run.ID)
	}
	if len(runs.created) != 0 {
		t.Error("no new run should be created")
	}
}

// uniqueRuns — хранилище с уникальным индексом по ключу идемпотентности.
// Первые lookups ждут друг друга, чтобы оба Submit не нашли run до вставки.
type uniqueRuns struct {
	fakeRuns
	lookups sync.WaitGroup
	calls   int
}

func (u *uniqueRuns) Create(ctx context.Context, run *domain.Run) error {
	u.mu.Lock()
	if _, ok := u.byKey[run.IdempotencyKey]; ok {
		u.mu.Unlock()
		return repo.ErrAlreadyExists
	}
	u.byKey[run.IdempotencyKey] = run
	u.mu.Unlock()
	return u.fakeRuns.Create(ctx, run)
}

func (u *uniqueRuns) GetByIdempotencyKey(ctx context.Context, flowName, key string) (*domain.Run, error) {
	u.mu.Lock()
	u.calls++
	first := u.calls <= 2
	u.mu.Unlock()

	if first {
		u.lookups.Done()
		u.lookups.Wait()
	}
	return u.fakeRuns.GetByIdempotencyKey(ctx, flowName, key)
}

func TestRunner_SubmitConcurrentSameKey(t *testing.T) {
	flow := &flows.Flow{
		Spec:  domain.FlowSpec{Name: "f", Steps: []domain.StepDef{{ID: "query", Type: "query"}}},
		Tasks: map[string]flows.Task{"query": value(nil)},
	}
	reg := flows.NewRegistry()
	if err := reg.Register(flow); err != nil {
		t.Fatalf("register flow: %v", err)
	}

	runs := &uniqueRuns{fakeRuns: fakeRuns{byKey: make(map[string]*domain.Run)}}
	runs.lookups.Add(2)

	r := New(Config{Flows: reg, Runs: runs, Logger: telemetry.Discard()})

	type result struct {
		run     *domain.Run
		created bool
		err     error
	}
	results := make([]result, 2)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, created, err := r.Submit(context.Background(), SubmitRequest{
				FlowName:       "f",
				Trigger:        domain.TriggerAPI,
				IdempotencyKey: "k",
			})
			results[i] = result{run, created, err}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	createdCount := 0
	for i, res := range results {
		if res.err != nil {
			t.Fatalf("submit %d: unexpected error: %v", i, res.err)
		}
		if res.created {
			createdCount++
		}
	}
	if createdCount != 1 {
		t.Errorf("expected exactly one created run, got %d", createdCount)
	}
	if results[0].run.ID != results[1].run.ID {
		t.Errorf("expected same run for both submits, got %s and %s", results[0].run.ID, results[1].run.ID)
	}
	if len(runs.created) != 1 {
		t.Errorf("expected 1 stored run, got %d", len(runs.created))
	}
}

func TestRunner_Heartbeat(t *testing.T) {
	release := make(chan struct{})
	flow := &flows.Flow{
		Spec: domain.FlowSpec{Name: "long", Steps: []domain.StepDef{{ID: "wait", Type: "wait"}}},
		Tasks: map[string]flows.Task{
			"wait": func(context.Context, *flows.TaskContext) (*flows.Result, error) {
				<-release
				return &flows.Result{}, nil
			},
		},
	}

	reg := flows.NewRegistry()
	if err := reg.Register(flow); err != nil {
		t.Fatalf("register flow: %v", err)
	}
	runs := &fakeRuns{byKey: make(map[string]*domain.Run)}
	r := New(Config{Flows: reg, Runs: runs, Logger: telemetry.Discard(), Instance: "replica-a"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Heartbeat(ctx, time.Millisecond)
		close(done)
	}()

	// Без активных runs heartbeat не пишется
	time.Sleep(10 * time.Millisecond)
	if n := runs.heartbeatCount(); n != 0 {
		t.Errorf("expected no heartbeats while idle, got %d", n)
	}

	run, _, err := r.Submit(context.Background(), SubmitRequest{FlowName: "long", Trigger: domain.TriggerAPI})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Owner != "replica-a" {
		t.Errorf("expected owner replica-a, got %q", run.Owner)
	}

	deadline := time.After(2 * time.Second)
	for runs.heartbeatCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("no heartbeat for active run")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
	close(release)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := r.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	runs.mu.Lock()
	defer runs.mu.Unlock()
	for _, owner := range runs.heartbeats {
		if owner != "replica-a" {
			t.Errorf("unexpected heartbeat owner %q", owner)
		}
	}
}
