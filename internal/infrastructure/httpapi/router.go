package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"load-tester/internal/engine"
	"load-tester/internal/infrastructure/config"
	obs "load-tester/internal/infrastructure/observability"
	"load-tester/internal/usecase"
)

type Deps struct {
	Cfg       config.Config
	Logger    *zerolog.Logger
	Metrics   *obs.Metrics
	Svc       *usecase.TestService
	Scenarios *usecase.ScenarioService
	History   usecase.RunHistory // nil when history is disabled
	Reports   *engine.ReportWriter
	Monitor   *MonitorHub
}

func NewRouter(d *Deps) http.Handler {
	return withCORS(d.Cfg, buildBaseMux(d))
}

// buildBaseMux constructs the mux with all routes, without wrappers.
func buildBaseMux(d *Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    "load-tester",
			"version": obs.Version,
			"commit":  obs.Commit,
			"time":    time.Now().UTC(),
		})
	})

	// Load tests
	mux.HandleFunc("/api/tests", d.handleTests)
	// Single handler for /api/tests/* to avoid duplicate registrations
	mux.HandleFunc("/api/tests/", d.handleTestByID)

	// Scenario catalog
	mux.HandleFunc("/api/scenarios", d.handleScenarios)
	mux.HandleFunc("/api/scenarios/", d.handleScenarioByName)

	// Finished-run history (optional, backed by sqlite)
	mux.HandleFunc("/api/history", d.handleHistory)
	mux.HandleFunc("/api/history/", d.handleHistoryByID)

	// Monitor WS for live test progress
	mux.HandleFunc("/api/monitor/ws", d.Monitor.HandleWS)

	return mux
}

func withCORS(cfg config.Config, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
