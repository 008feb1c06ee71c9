package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"load-tester/internal/domain"
	"load-tester/internal/usecase"
)

// History persists finished runs and their periodic metric samples so they
// survive process restarts. The in-memory registry stays the source of
// truth while a test is live; History only sees sealed data.
type History struct {
	db *sql.DB
}

func NewHistory(dbPath string) (*History, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	h := &History{db: db}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		test_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		base_url TEXT NOT NULL,
		scenario TEXT NOT NULL,
		concurrent_users INTEGER NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		total_requests INTEGER NOT NULL,
		successful_requests INTEGER NOT NULL,
		failed_requests INTEGER NOT NULL,
		avg_response_time REAL NOT NULL,
		min_response_time REAL NOT NULL,
		max_response_time REAL NOT NULL,
		errors TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_time ON runs(start_time DESC);

	CREATE TABLE IF NOT EXISTS run_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		test_id TEXT NOT NULL,
		at DATETIME NOT NULL,
		total_requests INTEGER NOT NULL,
		successful_requests INTEGER NOT NULL,
		failed_requests INTEGER NOT NULL,
		avg_response_time REAL NOT NULL,
		min_response_time REAL NOT NULL,
		max_response_time REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_samples_test ON run_samples(test_id, at);
	`
	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

func (h *History) SaveRun(ctx context.Context, t domain.TestSession) error {
	errsJSON, err := json.Marshal(t.Metrics.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}
	var endTime any
	if t.EndTime != nil {
		endTime = *t.EndTime
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(test_id, status, base_url, scenario, concurrent_users, start_time, end_time,
		 total_requests, successful_requests, failed_requests,
		 avg_response_time, min_response_time, max_response_time, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, string(t.Status), t.Config.BaseURL, t.Config.Scenario.Name, t.Config.ConcurrentUsers,
		t.StartTime, endTime,
		t.Metrics.TotalRequests, t.Metrics.SuccessfulRequests, t.Metrics.FailedRequests,
		t.Metrics.AvgResponseTime, t.Metrics.MinResponseTime, t.Metrics.MaxResponseTime, string(errsJSON))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (h *History) SaveSample(ctx context.Context, testID string, at time.Time, m domain.Metrics) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO run_samples
		(test_id, at, total_requests, successful_requests, failed_requests,
		 avg_response_time, min_response_time, max_response_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, testID, at, m.TotalRequests, m.SuccessfulRequests, m.FailedRequests,
		m.AvgResponseTime, m.MinResponseTime, m.MaxResponseTime)
	if err != nil {
		return fmt.Errorf("failed to save sample: %w", err)
	}
	return nil
}

func (h *History) ListRuns(ctx context.Context, limit, offset int) ([]usecase.RunSummary, int, error) {
	var total int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT test_id, status, base_url, scenario, concurrent_users, start_time, end_time,
		       total_requests, successful_requests, failed_requests,
		       avg_response_time, min_response_time, max_response_time, errors
		FROM runs
		ORDER BY start_time DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []usecase.RunSummary
	for rows.Next() {
		var (
			r       usecase.RunSummary
			status  string
			endTime sql.NullTime
			errsRaw string
		)
		if err := rows.Scan(&r.TestID, &status, &r.BaseURL, &r.Scenario, &r.Users,
			&r.StartTime, &endTime,
			&r.Metrics.TotalRequests, &r.Metrics.SuccessfulRequests, &r.Metrics.FailedRequests,
			&r.Metrics.AvgResponseTime, &r.Metrics.MinResponseTime, &r.Metrics.MaxResponseTime,
			&errsRaw); err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Status = domain.TestStatus(status)
		if endTime.Valid {
			t := endTime.Time
			r.EndTime = &t
		}
		if err := json.Unmarshal([]byte(errsRaw), &r.Metrics.Errors); err != nil {
			r.Metrics.Errors = []string{}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read runs: %w", err)
	}
	return out, total, nil
}

func (h *History) ListSamples(ctx context.Context, testID string) ([]usecase.MetricSample, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT at, total_requests, successful_requests, failed_requests,
		       avg_response_time, min_response_time, max_response_time
		FROM run_samples
		WHERE test_id = ?
		ORDER BY at
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var out []usecase.MetricSample
	for rows.Next() {
		var s usecase.MetricSample
		if err := rows.Scan(&s.At, &s.Metrics.TotalRequests, &s.Metrics.SuccessfulRequests,
			&s.Metrics.FailedRequests, &s.Metrics.AvgResponseTime,
			&s.Metrics.MinResponseTime, &s.Metrics.MaxResponseTime); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.Metrics.Errors = []string{}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	return out, nil
}
