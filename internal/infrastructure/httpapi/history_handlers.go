package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

func (d *Deps) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	if d.History == nil {
		writeError(w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "run history is disabled", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, total, err := d.History.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "HISTORY_LIST_FAILED", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

// handleHistoryByID serves GET /api/history/{id}/samples, the periodic
// metric snapshots recorded while the run was live.
func (d *Deps) handleHistoryByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	if d.History == nil {
		writeError(w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "run history is disabled", nil)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/history/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "samples" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	samples, err := d.History.ListSamples(r.Context(), parts[0])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SAMPLES_LIST_FAILED", err.Error(), map[string]any{"id": parts[0]})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": samples, "total": len(samples)})
}
