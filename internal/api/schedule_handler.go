package api

import (
	"encoding/json"
	"net/http"
)

// ListSchedules возвращает расписания flows.
// GET /api/v1/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.schedules.List(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]ScheduleResponse, len(schedules))
	for i, s := range schedules {
		result[i] = ScheduleFromDomain(s)
	}

	List(w, result, len(result))
}

// SetScheduleEnabled включает или выключает schedule flow.
// PUT /api/v1/schedules/{flow}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	flowName := r.PathValue("flow")

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.schedules.SetEnabled(r.Context(), flowName, req.Enabled); HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	h.logger.Info("schedule updated", "flow", flowName, "enabled", req.Enabled)

	// Возвращаем обновлённый schedule
	schedule, err := h.schedules.GetByFlowName(r.Context(), flowName)
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(*schedule))
}
