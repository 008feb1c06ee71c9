package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"load-tester/internal/domain"
)

func (d *Deps) handleScenarios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items := d.Scenarios.List()
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	case http.MethodPost:
		var sc domain.Scenario
		if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
			return
		}
		if err := d.Scenarios.Register(sc); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SCENARIO", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"name": sc.Name})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET/POST", nil)
	}
}

func (d *Deps) handleScenarioByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/scenarios/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	sc, ok := d.Scenarios.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "scenario not found", map[string]any{"name": name})
		return
	}
	writeJSON(w, http.StatusOK, sc)
}
