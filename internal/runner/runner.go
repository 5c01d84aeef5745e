package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/flows"
	"github.com/shaiso/dataflows/internal/repo"
	"github.com/shaiso/dataflows/internal/telemetry"
)

// RunStore — хранилище runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	// GetByIdempotencyKey возвращает repo.ErrNotFound, если run нет.
	GetByIdempotencyKey(ctx context.Context, flowName, key string) (*domain.Run, error)
	// Heartbeat продлевает heartbeat незавершённых runs владельца.
	Heartbeat(ctx context.Context, owner string) error
}

// TaskStore — хранилище tasks.
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
}

// EventPublisher публикует события жизненного цикла run.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, run *domain.Run) error
}

// Config — конфигурация Runner.
//
// Runs, Tasks и Events необязательны: без них run выполняется
// только в памяти (например, `dataflows flow exec`).
type Config struct {
	Flows   *flows.Registry
	Runs    RunStore
	Tasks   TaskStore
	Events  EventPublisher
	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// Instance — имя экземпляра процесса, записывается в run.Owner.
	// По умолчанию hostname и случайный суффикс.
	Instance string
}

// DefaultHeartbeatInterval — период продления heartbeat активных runs.
const DefaultHeartbeatInterval = 15 * time.Second

// SubmitRequest — запрос на асинхронный запуск flow.
type SubmitRequest struct {
	FlowName       string
	Trigger        domain.Trigger
	Params         map[string]string
	IdempotencyKey string
}

// Runner выполняет runs flows.
type Runner struct {
	flows    *flows.Registry
	runs     RunStore
	tasks    TaskStore
	events   EventPublisher
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	instance string

	// Active runs — runs в процессе выполнения (runID → state)
	activeRuns  map[uuid.UUID]*RunState
	activeFlows map[string]int
	mu          sync.RWMutex

	// Lifecycle фоновых runs (Submit)
	baseCtx    context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	instance := cfg.Instance
	if instance == "" {
		instance = defaultInstance()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		flows:       cfg.Flows,
		runs:        cfg.Runs,
		tasks:       cfg.Tasks,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		logger:      logger,
		instance:    instance,
		activeRuns:  make(map[uuid.UUID]*RunState),
		activeFlows: make(map[string]int),
		baseCtx:     ctx,
		cancelFunc:  cancel,
	}
}

// RunFlow создаёт run для flowName и выполняет его синхронно.
// Возвращает run в финальном статусе; при неуспехе — ещё и ошибку ErrRunFailed.
func (r *Runner) RunFlow(ctx context.Context, flowName string, trigger domain.Trigger, params map[string]string) (*domain.Run, error) {
	if _, err := r.flows.Get(flowName); err != nil {
		return nil, err
	}

	run := domain.NewRun(flowName, trigger, params)
	if err := r.createRun(ctx, run); err != nil {
		return nil, err
	}

	return run, r.Execute(ctx, run)
}

// Submit создаёт run и запускает его в фоне.
//
// Если задан IdempotencyKey и run с таким ключом уже есть,
// возвращается существующий run и created=false.
func (r *Runner) Submit(ctx context.Context, req SubmitRequest) (run *domain.Run, created bool, err error) {
	if _, err := r.flows.Get(req.FlowName); err != nil {
		return nil, false, err
	}

	if req.IdempotencyKey != "" && r.runs != nil {
		existing, err := r.runs.GetByIdempotencyKey(ctx, req.FlowName, req.IdempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, false, fmt.Errorf("check idempotency key: %w", err)
		}
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, false, ErrRunnerStopped
	}
	r.wg.Add(1)
	r.mu.Unlock()

	run = domain.NewRun(req.FlowName, req.Trigger, req.Params)
	run.IdempotencyKey = req.IdempotencyKey

	if err := r.createRun(ctx, run); err != nil {
		r.wg.Done()
		// Параллельный Submit с тем же ключом успел вставить run первым.
		if req.IdempotencyKey != "" && errors.Is(err, repo.ErrAlreadyExists) {
			existing, getErr := r.runs.GetByIdempotencyKey(ctx, req.FlowName, req.IdempotencyKey)
			if getErr != nil {
				return nil, false, fmt.Errorf("check idempotency key: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	// Run становится активным до возврата, чтобы IsFlowActive сразу его видел.
	state, err := r.prepare(ctx, run)
	if err != nil {
		r.wg.Done()
		return nil, false, err
	}

	// Копия для вызывающего: фоновое выполнение меняет run.
	snapshot := *run

	go func() {
		defer r.wg.Done()
		if err := r.execute(r.baseCtx, state); err != nil {
			r.logger.Debug("background run finished with error", "run_id", run.ID, "error", err)
		}
	}()

	return &snapshot, true, nil
}

// Shutdown перестаёт принимать новые runs и ждёт фоновые.
// Если ctx истекает раньше, оставшиеся runs отменяются.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancelFunc()
		return nil
	case <-ctx.Done():
		r.logger.Warn("shutdown timeout, cancelling active runs", "active_runs", r.ActiveRunsCount())
		r.cancelFunc()
		<-done
		return ctx.Err()
	}
}

// Instance возвращает имя экземпляра, которым помечаются runs.
func (r *Runner) Instance() string {
	return r.instance
}

// Heartbeat продлевает heartbeat активных runs каждые interval,
// пока не отменён ctx. Runs без heartbeat scheduler считает брошенными.
func (r *Runner) Heartbeat(ctx context.Context, interval time.Duration) {
	if r.runs == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}

		if r.ActiveRunsCount() == 0 {
			continue
		}
		if err := r.runs.Heartbeat(ctx, r.instance); err != nil && ctx.Err() == nil {
			r.logger.Warn("failed to heartbeat runs", "owner", r.instance, "error", err)
		}
	}
}

// IsFlowActive проверяет, выполняется ли сейчас хотя бы один run flow.
func (r *Runner) IsFlowActive(flowName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeFlows[flowName] > 0
}

// ActiveRunsCount возвращает количество активных runs.
func (r *Runner) ActiveRunsCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeRuns)
}

// addActiveRun добавляет run в активные.
func (r *Runner) addActiveRun(state *RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activeRuns[state.Run.ID]; exists {
		return ErrRunAlreadyActive
	}

	r.activeRuns[state.Run.ID] = state
	r.activeFlows[state.Run.FlowName]++
	return nil
}

// removeActiveRun удаляет run из активных.
func (r *Runner) removeActiveRun(state *RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.activeRuns, state.Run.ID)
	r.activeFlows[state.Run.FlowName]--
	if r.activeFlows[state.Run.FlowName] <= 0 {
		delete(r.activeFlows, state.Run.FlowName)
	}
}

func (r *Runner) createRun(ctx context.Context, run *domain.Run) error {
	run.Owner = r.instance
	if r.runs == nil {
		return nil
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func defaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "dataflows"
	}
	return host + "-" + uuid.NewString()[:8]
}
