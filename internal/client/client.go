package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/domain"
)

const (
	// DefaultPollInterval — период опроса статуса run в Await.
	DefaultPollInterval = 5 * time.Second

	// DefaultTimeout — таймаут одного HTTP запроса.
	DefaultTimeout = 30 * time.Second

	// maxPollErrors — сколько подряд неудачных опросов переживает Await.
	maxPollErrors = 3
)

// CreateRunRequest — запрос на запуск flow.
type CreateRunRequest struct {
	Project        string            `json:"project,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	FlowName string
	Status   string
	Limit    int
	Offset   int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Config — конфигурация клиента.
type Config struct {
	// BaseURL — адрес API, например "http://localhost:8080".
	BaseURL string

	// PollInterval — период опроса в Await. По умолчанию DefaultPollInterval.
	PollInterval time.Duration

	// HTTPClient — по умолчанию http.Client с DefaultTimeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client — HTTP-клиент для API dataflows.
type Client struct {
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// New создаёт клиент для API.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
		httpClient:   cfg.HTTPClient,
		logger:       cfg.Logger,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// --- Flows ---

// ListFlows возвращает зарегистрированные flows.
func (c *Client) ListFlows(ctx context.Context) ([]domain.FlowSpec, error) {
	var specs []domain.FlowSpec
	err := c.list(ctx, "/api/v1/flows", nil, &specs)
	return specs, err
}

// GetFlow возвращает flow по имени.
func (c *Client) GetFlow(ctx context.Context, name string) (*domain.FlowSpec, error) {
	var spec domain.FlowSpec
	if err := c.get(ctx, "/api/v1/flows/"+url.PathEscape(name), &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// --- Runs ---

// CreateRun запускает flow. Повторный запрос с тем же
// idempotency_key возвращает существующий run.
func (c *Client) CreateRun(ctx context.Context, flowName string, req CreateRunRequest) (*domain.Run, error) {
	var run domain.Run
	if err := c.post(ctx, "/api/v1/flows/"+url.PathEscape(flowName)+"/runs", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	var run domain.Run
	if err := c.get(ctx, "/api/v1/runs/"+id.String(), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOpts) ([]domain.Run, error) {
	params := url.Values{}
	if opts.FlowName != "" {
		params.Set("flow", opts.FlowName)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var runs []domain.Run
	err := c.list(ctx, "/api/v1/runs", params, &runs)
	return runs, err
}

// ListTasks возвращает tasks run.
func (c *Client) ListTasks(ctx context.Context, runID uuid.UUID) ([]domain.Task, error) {
	var tasks []domain.Task
	err := c.list(ctx, "/api/v1/runs/"+runID.String()+"/tasks", nil, &tasks)
	return tasks, err
}

// --- Schedules ---

// ListSchedules возвращает расписания flows.
func (c *Client) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	var schedules []domain.Schedule
	err := c.list(ctx, "/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// SetScheduleEnabled включает или выключает schedule flow.
func (c *Client) SetScheduleEnabled(ctx context.Context, flowName string, enabled bool) (*domain.Schedule, error) {
	var schedule domain.Schedule
	body := map[string]bool{"enabled": enabled}
	if err := c.doData(ctx, http.MethodPut, "/api/v1/schedules/"+url.PathEscape(flowName)+"/enabled", body, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// --- flows.Trigger ---

// Start запускает run flowName в проекте project.
func (c *Client) Start(ctx context.Context, flowName, project string) (domain.RunHandle, error) {
	run, err := c.CreateRun(ctx, flowName, CreateRunRequest{Project: project})
	if err != nil {
		return domain.RunHandle{}, err
	}

	c.logger.Info("flow run started",
		"flow", flowName,
		"project", project,
		"run_id", run.ID,
	)

	return domain.RunHandle{RunID: run.ID, FlowName: run.FlowName, Project: project}, nil
}

// Await опрашивает run до финального статуса.
// Статус, отличный от SUCCEEDED, возвращается вместе с ErrRunNotSucceeded.
func (c *Client) Await(ctx context.Context, handle domain.RunHandle) (domain.RunResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		run, err := c.GetRun(ctx, handle.RunID)
		switch {
		case err == nil:
			failures = 0
			if run.IsFinished() {
				return c.result(handle, run)
			}
		case ctx.Err() != nil:
			return domain.RunResult{Handle: handle}, ctx.Err()
		case !retryable(err):
			return domain.RunResult{Handle: handle}, fmt.Errorf("get run %s: %w", handle.RunID, err)
		default:
			failures++
			if failures >= maxPollErrors {
				return domain.RunResult{Handle: handle}, fmt.Errorf("get run %s: %w", handle.RunID, err)
			}
			c.logger.Warn("poll run failed", "run_id", handle.RunID, "error", err, "failures", failures)
		}

		select {
		case <-ctx.Done():
			return domain.RunResult{Handle: handle}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) result(handle domain.RunHandle, run *domain.Run) (domain.RunResult, error) {
	result := domain.RunResult{Handle: handle, Status: run.Status, Error: run.Error}

	c.logger.Info("flow run finished",
		"flow", handle.FlowName,
		"run_id", handle.RunID,
		"status", run.Status,
	)

	if !result.Succeeded() {
		return result, fmt.Errorf("%w: %s", ErrRunNotSucceeded, run.Status)
	}
	return result, nil
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPost, path, body, result)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}

	return apiErr
}
