package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/repo"
	"github.com/shaiso/dataflows/internal/runner"
)

// maxListLimit — верхняя граница limit в списках.
const maxListLimit = 500

// CreateRun запускает flow.
// POST /api/v1/flows/{name}/runs
//
// Новый run — 201, существующий с тем же idempotency_key — 200.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Project != "" && h.project != "" && req.Project != h.project {
		NotFound(w, "project not found: "+req.Project)
		return
	}

	run, created, err := h.runner.Submit(r.Context(), runner.SubmitRequest{
		FlowName:       name,
		Trigger:        domain.TriggerAPI,
		Params:         req.Params,
		IdempotencyKey: req.IdempotencyKey,
	})
	if HandleError(w, h.logger, err, "flow not found") {
		return
	}

	if !created {
		Success(w, RunFromDomain(*run))
		return
	}

	h.logger.Info("run created via api",
		"run_id", run.ID,
		"flow", run.FlowName,
		"idempotency_key", run.IdempotencyKey,
	)
	Created(w, RunFromDomain(*run))
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?flow=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repo.RunFilter{
		FlowName: q.Get("flow"),
		Status:   domain.RunStatus(q.Get("status")),
		Limit:    repo.DefaultLimit,
	}

	if filter.Status != "" && !validRunStatus(filter.Status) {
		BadRequest(w, "invalid status")
		return
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), repo.DefaultLimit); err != nil || filter.Limit <= 0 {
		BadRequest(w, "invalid limit")
		return
	}
	filter.Limit = min(filter.Limit, maxListLimit)

	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil || filter.Offset < 0 {
		BadRequest(w, "invalid offset")
		return
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunTasks возвращает tasks run.
// GET /api/v1/runs/{id}/tasks
func (h *Handler) ListRunTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if _, err := h.runs.GetByID(r.Context(), id); HandleError(w, h.logger, err, "run not found") {
		return
	}

	tasks, err := h.tasks.ListByRunID(r.Context(), id)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// intParam парсит query параметр; пустая строка — def.
func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func validRunStatus(s domain.RunStatus) bool {
	switch s {
	case domain.RunStatusPending, domain.RunStatusRunning, domain.RunStatusSucceeded,
		domain.RunStatusFailed, domain.RunStatusCancelled:
		return true
	}
	return false
}
