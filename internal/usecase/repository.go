package usecase

import (
	"context"
	"time"

	"load-tester/internal/domain"
)

type TestRepository interface {
	CreateTest(ctx context.Context, t domain.TestSession) error
	GetTest(ctx context.Context, id string) (domain.TestSession, bool, error)
	ListTests(ctx context.Context, f TestFilter) ([]domain.TestSession, int, error)
	DeleteTest(ctx context.Context, id string) error
	ClearTests(ctx context.Context) (int, error)
	AppendResults(ctx context.Context, id string, rs []domain.ActionResult) error
	ListResults(ctx context.Context, id string, offset, limit int) ([]domain.ActionResult, int, error)
	UpdateMetrics(ctx context.Context, id string, m domain.Metrics) error
	SetStatus(ctx context.Context, id string, to domain.TestStatus, endedAt *time.Time, errMsg *string) error
}

// ScenarioCatalog holds the named scenarios a test config may refer to.
type ScenarioCatalog interface {
	GetScenario(name string) (domain.Scenario, bool)
	ListScenarios() []domain.Scenario
	PutScenario(sc domain.Scenario) error
}

// TestRunner drives a created session to a terminal state in the
// background. Start must return as soon as the run is scheduled.
type TestRunner interface {
	Start(ctx context.Context, t domain.TestSession) error
	Stop(id string) bool
	StopAll() int
}

// RunHistory persists finished runs and their periodic metric samples
// across restarts. A nil RunHistory means history is disabled.
type RunHistory interface {
	SaveRun(ctx context.Context, t domain.TestSession) error
	SaveSample(ctx context.Context, testID string, at time.Time, m domain.Metrics) error
	ListRuns(ctx context.Context, limit, offset int) ([]RunSummary, int, error)
	ListSamples(ctx context.Context, testID string) ([]MetricSample, error)
}

type TestFilter struct {
	Q      string // substring match on id, target URL or scenario name
	Status string
	Limit  int
	Offset int
}

type RunSummary struct {
	TestID    string            `json:"test_id"`
	Status    domain.TestStatus `json:"status"`
	BaseURL   string            `json:"base_url"`
	Scenario  string            `json:"scenario"`
	Users     int               `json:"concurrent_users"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
	Metrics   domain.Metrics    `json:"metrics"`
}

type MetricSample struct {
	At      time.Time      `json:"at"`
	Metrics domain.Metrics `json:"metrics"`
}
