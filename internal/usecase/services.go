package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"load-tester/internal/domain"
	"load-tester/pkg/shared/id"
)

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrInvalidConfig    = errors.New("invalid test config")
	ErrRegistryFull     = errors.New("test registry full")
	ErrTestNotFound     = errors.New("test not found")
)

type TestServiceOptions struct {
	MaxUsers          int // validation cap for concurrent_users, 0 disables
	DefaultTimeoutSec int // request timeout applied when the config omits one
}

type TestService struct {
	tests   TestRepository
	catalog ScenarioCatalog
	runner  TestRunner
	opts    TestServiceOptions
}

func NewTestService(tests TestRepository, catalog ScenarioCatalog, runner TestRunner, opts TestServiceOptions) *TestService {
	return &TestService{tests: tests, catalog: catalog, runner: runner, opts: opts}
}

// StartTest validates the config, registers a new session and schedules the
// run. It returns the new test id as soon as the run is scheduled; progress
// is observed through Get/List, not through this call.
func (s *TestService) StartTest(ctx context.Context, cfg domain.TestConfig) (string, error) {
	if cfg.RequestTimeoutSeconds == 0 && s.opts.DefaultTimeoutSec > 0 {
		cfg.RequestTimeoutSeconds = s.opts.DefaultTimeoutSec
	}
	cfg.Normalize()
	if cfg.Scenario.Inline == nil && cfg.Scenario.Name != "" {
		sc, ok := s.catalog.GetScenario(cfg.Scenario.Name)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrScenarioNotFound, cfg.Scenario.Name)
		}
		cfg.Scenario.Inline = &sc
	}
	if err := cfg.Validate(s.opts.MaxUsers); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	testID := id.NewTest()
	sess := domain.TestSession{
		ID:        testID,
		Config:    cfg,
		Status:    domain.StatusCreated,
		StartTime: time.Now(),
		Metrics:   domain.Metrics{Errors: []string{}},
	}
	if err := s.tests.CreateTest(ctx, sess); err != nil {
		return "", err
	}
	if err := s.runner.Start(ctx, sess); err != nil {
		now := time.Now()
		msg := err.Error()
		_ = s.tests.SetStatus(ctx, testID, domain.StatusFailed, &now, &msg)
		return "", fmt.Errorf("launch test: %w", err)
	}
	return testID, nil
}

func (s *TestService) Get(ctx context.Context, testID string) (domain.TestSession, bool, error) {
	return s.tests.GetTest(ctx, testID)
}

func (s *TestService) List(ctx context.Context, f TestFilter) ([]domain.TestSession, int, error) {
	return s.tests.ListTests(ctx, f)
}

func (s *TestService) Results(ctx context.Context, testID string, offset, limit int) ([]domain.ActionResult, int, error) {
	return s.tests.ListResults(ctx, testID, offset, limit)
}

// Stop asks the runner to cancel a running test. The returned bool reports
// whether a running test was actually signalled; callers treat this as a
// best-effort acknowledgement, termination lands asynchronously.
func (s *TestService) Stop(ctx context.Context, testID string) (bool, error) {
	_, ok, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrTestNotFound
	}
	return s.runner.Stop(testID), nil
}

func (s *TestService) StopAll(ctx context.Context) int {
	return s.runner.StopAll()
}

func (s *TestService) Delete(ctx context.Context, testID string) error {
	s.runner.Stop(testID)
	return s.tests.DeleteTest(ctx, testID)
}

func (s *TestService) Clear(ctx context.Context) (int, error) {
	s.runner.StopAll()
	return s.tests.ClearTests(ctx)
}

type ScenarioService struct {
	catalog ScenarioCatalog
}

func NewScenarioService(catalog ScenarioCatalog) *ScenarioService {
	return &ScenarioService{catalog: catalog}
}

func (s *ScenarioService) Get(name string) (domain.Scenario, bool) {
	return s.catalog.GetScenario(name)
}

func (s *ScenarioService) List() []domain.Scenario {
	return s.catalog.ListScenarios()
}

func (s *ScenarioService) Register(sc domain.Scenario) error {
	sc.Normalize()
	if err := sc.Validate(); err != nil {
		return err
	}
	return s.catalog.PutScenario(sc)
}
