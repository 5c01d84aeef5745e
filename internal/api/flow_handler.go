package api

import (
	"net/http"
)

// ListFlows возвращает список зарегистрированных flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, _ *http.Request) {
	all := h.flows.All()

	result := make([]FlowResponse, len(all))
	for i, f := range all {
		result[i] = FlowFromRegistry(f)
	}

	List(w, result, len(result))
}

// GetFlow возвращает flow по имени.
// GET /api/v1/flows/{name}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flows.Get(r.PathValue("name"))
	if HandleError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, FlowFromRegistry(flow))
}
