package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"load-tester/internal/domain"
)

// Report is the document persisted for every finished test: the sealed
// metrics, the configuration that produced them and the complete timeline.
type Report struct {
	TestID             string                `json:"test_id"`
	Summary            domain.Metrics        `json:"summary"`
	LatencyPercentiles LatencySummary        `json:"latency_percentiles"`
	Configuration      domain.TestConfig     `json:"configuration"`
	Timeline           []domain.ActionResult `json:"timeline"`
	GeneratedAt        time.Time             `json:"generated_at"`
}

type ReportWriter struct {
	dir string
}

func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

// Write persists the report for a sealed session and returns its path.
func (w *ReportWriter) Write(t domain.TestSession) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports directory: %w", err)
	}
	rep := Report{
		TestID:             t.ID,
		Summary:            t.Metrics,
		LatencyPercentiles: Percentiles(t.Results),
		Configuration:      t.Config,
		Timeline:           t.Results,
		GeneratedAt:        time.Now(),
	}
	if rep.Timeline == nil {
		rep.Timeline = []domain.ActionResult{}
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(w.dir, reportFilename(t.ID))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Read returns the raw report document for a test id. Absence is reported
// separately from IO failure so callers can answer 404 versus 500.
func (w *ReportWriter) Read(testID string) ([]byte, bool, error) {
	if !safeReportID(testID) {
		return nil, false, nil
	}
	b, err := os.ReadFile(filepath.Join(w.dir, reportFilename(testID)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func reportFilename(testID string) string {
	return "test_report_" + testID + ".json"
}

// ids arrive from URL paths; file access must stay inside the reports dir
func safeReportID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
