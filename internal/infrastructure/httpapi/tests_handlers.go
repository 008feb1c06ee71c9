package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"load-tester/internal/domain"
	"load-tester/internal/usecase"
)

// handleTests serves the /api/tests collection.
// POST starts a test, GET lists sessions, DELETE stops and clears everything.
func (d *Deps) handleTests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		d.handleStartTest(w, r)
	case http.MethodGet:
		d.handleListTests(w, r)
	case http.MethodDelete:
		n, err := d.Svc.Clear(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "TESTS_CLEAR_FAILED", err.Error(), nil)
			return
		}
		// broadcast a synthetic event so frontends can refresh
		if d.Monitor != nil {
			d.Monitor.Broadcast(MonitorEvent{Type: "tests_cleared", ID: "*"})
		}
		writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET/POST/DELETE", nil)
	}
}

func (d *Deps) handleStartTest(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TestConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	testID, err := d.Svc.StartTest(r.Context(), cfg)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrScenarioNotFound):
			writeError(w, http.StatusBadRequest, "SCENARIO_NOT_FOUND", err.Error(), nil)
		case errors.Is(err, usecase.ErrInvalidConfig):
			writeError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error(), nil)
		case errors.Is(err, usecase.ErrRegistryFull):
			writeError(w, http.StatusServiceUnavailable, "REGISTRY_FULL", err.Error(), nil)
		default:
			writeError(w, http.StatusInternalServerError, "TEST_START_FAILED", err.Error(), nil)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"test_id": testID})
}

func (d *Deps) handleListTests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	f := usecase.TestFilter{Q: q, Status: status, Limit: limit, Offset: offset}
	items, total, err := d.Svc.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TESTS_LIST_FAILED", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

// handleTestByID dispatches /api/tests/{id} and its subresources.
// POST /api/tests/stop is routed here as well and stops every running test.
func (d *Deps) handleTestByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tests/")
	parts := strings.Split(path, "/")
	testID := parts[0]
	if testID == "" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	if testID == "stop" && len(parts) == 1 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST", nil)
			return
		}
		n := d.Svc.StopAll(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"stopped": n})
		return
	}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodDelete:
			if !d.requireTest(w, r, testID) {
				return
			}
			if err := d.Svc.Delete(r.Context(), testID); err != nil {
				writeError(w, http.StatusInternalServerError, "TEST_DELETE_FAILED", err.Error(), map[string]any{"id": testID})
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			t, ok, err := d.Svc.Get(r.Context(), testID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "TEST_GET_FAILED", err.Error(), map[string]any{"id": testID})
				return
			}
			if !ok {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "test not found", map[string]any{"id": testID})
				return
			}
			writeJSON(w, http.StatusOK, t)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET/DELETE", nil)
		}
		return
	}
	switch parts[1] {
	case "results":
		if !d.requireTest(w, r, testID) {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 100
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		items, total, err := d.Svc.Results(r.Context(), testID, offset, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "RESULTS_LIST_FAILED", err.Error(), map[string]any{"id": testID})
			return
		}
		next := ""
		if offset+limit < total {
			next = strconv.Itoa(offset + limit)
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total, "next": next})
	case "report":
		b, ok, err := d.Reports.Read(testID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "REPORT_READ_FAILED", err.Error(), map[string]any{"id": testID})
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "report not generated yet", map[string]any{"id": testID})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=test_report_"+testID+".json")
		_, _ = w.Write(b)
	case "har":
		t, ok, err := d.Svc.Get(r.Context(), testID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "TEST_GET_FAILED", err.Error(), map[string]any{"id": testID})
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "test not found", map[string]any{"id": testID})
			return
		}
		exportHARForTest(w, t)
	case "stop":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST", nil)
			return
		}
		ack, err := d.Svc.Stop(r.Context(), testID)
		if err != nil {
			if errors.Is(err, usecase.ErrTestNotFound) {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "test not found", map[string]any{"id": testID})
				return
			}
			writeError(w, http.StatusInternalServerError, "TEST_STOP_FAILED", err.Error(), map[string]any{"id": testID})
			return
		}
		// ack=false means the test was already terminal; termination of a
		// signalled run still lands asynchronously.
		writeJSON(w, http.StatusAccepted, map[string]any{"test_id": testID, "stopping": ack})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	}
}

// requireTest writes a NOT_FOUND error and returns false when the test id
// does not resolve to a registered session.
func (d *Deps) requireTest(w http.ResponseWriter, r *http.Request, testID string) bool {
	_, ok, err := d.Svc.Get(r.Context(), testID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TEST_GET_FAILED", err.Error(), map[string]any{"id": testID})
		return false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "test not found", map[string]any{"id": testID})
		return false
	}
	return true
}
