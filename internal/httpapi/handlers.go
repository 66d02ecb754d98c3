package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	// Dropped filters are logged by the service and never echoed back.
	result, _, err := h.service.Search(r.Context(), r.URL.Query())
	if err != nil {
		h.writeServiceError(r.Context(), w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Details(r.Context(), r.URL.Query().Get("uri"))
	if err != nil {
		h.writeServiceError(r.Context(), w, "details", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) fleet(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Fleet(r.Context(), r.URL.Query().Get("company"))
	if err != nil {
		h.writeServiceError(r.Context(), w, "fleet", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) currency(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount := 1.0
	if raw := strings.TrimSpace(q.Get("amount")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			writeError(w, http.StatusBadRequest, "amount must be a number")
			return
		}
		amount = parsed
	}

	out, err := h.converter.Convert(r.Context(), q.Get("from"), q.Get("to"), amount)
	if err != nil {
		h.writeServiceError(r.Context(), w, "currency", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			h.logger.Warn("not ready", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
