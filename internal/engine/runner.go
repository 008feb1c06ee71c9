package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"load-tester/internal/domain"
	obs "load-tester/internal/infrastructure/observability"
	"load-tester/internal/usecase"
)

// Notifier receives test lifecycle events for fan-out to live listeners.
type Notifier interface {
	Notify(event, testID string, data any)
}

type RunnerDeps struct {
	Tests    usecase.TestRepository
	Reports  *ReportWriter
	History  usecase.RunHistory // optional
	Notifier Notifier           // optional
	Metrics  *obs.Metrics       // optional
	Logger   *zerolog.Logger
}

type RunnerOptions struct {
	MetricsInterval time.Duration
	JoinTimeout     time.Duration
	PreviewMaxBytes int
	RecentErrors    int
}

// Runner owns the background execution of tests: one orchestration
// goroutine per running test plus one goroutine per virtual user.
type Runner struct {
	deps RunnerDeps
	opts RunnerOptions

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRunner(deps RunnerDeps, opts RunnerOptions) *Runner {
	if opts.MetricsInterval <= 0 {
		opts.MetricsInterval = 5 * time.Second
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 30 * time.Second
	}
	if opts.RecentErrors <= 0 {
		opts.RecentErrors = 10
	}
	return &Runner{
		deps:    deps,
		opts:    opts,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start schedules a created session and returns once its orchestration
// goroutine is launched. The run deliberately ignores the caller's context:
// it outlives the request that started it and ends with the test deadline
// or an explicit Stop.
func (r *Runner) Start(_ context.Context, t domain.TestSession) error {
	if t.Config.Scenario.Inline == nil {
		return fmt.Errorf("test %s: scenario is not resolved", t.ID)
	}
	runCtx, cancel := context.WithDeadline(context.Background(), time.Now().Add(t.Config.Duration()))

	r.mu.Lock()
	if _, exists := r.cancels[t.ID]; exists {
		r.mu.Unlock()
		cancel()
		return fmt.Errorf("test %s is already running", t.ID)
	}
	r.cancels[t.ID] = cancel
	r.mu.Unlock()

	go r.run(runCtx, t)
	return nil
}

// Stop cancels a running test. Workers observe the cancellation at their
// next action boundary; in-flight calls complete within the request timeout.
func (r *Runner) Stop(testID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[testID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	r.notify("test_stopped", testID, nil)
	return true
}

func (r *Runner) StopAll() int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.cancels))
	cancels := make([]context.CancelFunc, 0, len(r.cancels))
	for testID, cancel := range r.cancels {
		ids = append(ids, testID)
		cancels = append(cancels, cancel)
	}
	r.mu.Unlock()
	for i, cancel := range cancels {
		cancel()
		r.notify("test_stopped", ids[i], nil)
	}
	return len(cancels)
}

func (r *Runner) run(ctx context.Context, t domain.TestSession) {
	defer r.release(t.ID)

	cfg := t.Config
	sc := *cfg.Scenario.Inline
	logger := r.deps.Logger.With().Str("test", t.ID).Logger()

	if err := r.deps.Tests.SetStatus(context.Background(), t.ID, domain.StatusRunning, nil, nil); err != nil {
		r.fail(t.ID, &logger, err)
		return
	}
	if m := r.deps.Metrics; m != nil {
		m.ActiveTests.Inc()
		defer m.ActiveTests.Dec()
	}
	r.notify("test_started", t.ID, map[string]any{
		"base_url":         cfg.BaseURL,
		"scenario":         sc.Name,
		"concurrent_users": cfg.ConcurrentUsers,
		"duration":         cfg.DurationSeconds,
	})
	logger.Info().Str("scenario", sc.Name).Int("users", cfg.ConcurrentUsers).
		Int("duration_s", cfg.DurationSeconds).Dur("ramp", cfg.RampUp()).
		Msg("test started")

	exec := NewExecutor(cfg.RequestTimeout(), cfg.ConcurrentUsers, r.opts.PreviewMaxBytes)
	sink := func(res domain.ActionResult) {
		if err := r.deps.Tests.AppendResults(context.Background(), t.ID, []domain.ActionResult{res}); err != nil {
			// a straggler past the seal, drop it
			logger.Debug().Err(err).Msg("result dropped")
			return
		}
		if m := r.deps.Metrics; m != nil {
			outcome := "success"
			if !res.Success {
				outcome = "failure"
			}
			m.ActionsTotal.WithLabelValues(sc.Name, outcome).Inc()
			m.ActionDuration.WithLabelValues(sc.Name).Observe(res.ResponseTime)
		}
	}

	// worker i starts at (ramp / users) * i, worker 0 immediately
	var step time.Duration
	if cfg.ConcurrentUsers > 0 {
		step = cfg.RampUp() / time.Duration(cfg.ConcurrentUsers)
	}
	var wg sync.WaitGroup
	for i := 0; i < cfg.ConcurrentUsers; i++ {
		w := NewWorker(i, sc, cfg.BaseURL, step*time.Duration(i), exec, sink, &logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m := r.deps.Metrics; m != nil {
				m.ActiveWorkers.Inc()
				defer m.ActiveWorkers.Dec()
			}
			w.Run(ctx)
		}()
	}

	ticker := time.NewTicker(r.opts.MetricsInterval)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			r.updateMetrics(t.ID, &logger)
		case <-ctx.Done():
			break loop
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.opts.JoinTimeout):
		logger.Warn().Dur("join_timeout", r.opts.JoinTimeout).
			Msg("workers still busy past the join timeout, sealing anyway")
	}

	r.finalize(t.ID, &logger)
}

func (r *Runner) updateMetrics(testID string, logger *zerolog.Logger) {
	snap, ok, err := r.deps.Tests.GetTest(context.Background(), testID)
	if err != nil || !ok {
		return
	}
	m := Aggregate(snap.Results, r.opts.RecentErrors)
	if err := r.deps.Tests.UpdateMetrics(context.Background(), testID, m); err != nil {
		logger.Warn().Err(err).Msg("metrics update failed")
		return
	}
	r.notify("metrics_updated", testID, m)
	if h := r.deps.History; h != nil {
		if err := h.SaveSample(context.Background(), testID, time.Now(), m); err != nil {
			logger.Warn().Err(err).Msg("history sample failed")
		}
	}
}

func (r *Runner) finalize(testID string, logger *zerolog.Logger) {
	snap, ok, err := r.deps.Tests.GetTest(context.Background(), testID)
	if err != nil || !ok {
		return
	}
	final := Aggregate(snap.Results, r.opts.RecentErrors)
	if err := r.deps.Tests.UpdateMetrics(context.Background(), testID, final); err != nil {
		logger.Warn().Err(err).Msg("final metrics update failed")
	}
	now := time.Now()
	if err := r.deps.Tests.SetStatus(context.Background(), testID, domain.StatusCompleted, &now, nil); err != nil {
		logger.Error().Err(err).Msg("sealing failed")
		return
	}
	snap.Status = domain.StatusCompleted
	snap.EndTime = &now
	snap.Metrics = final

	if r.deps.Reports != nil {
		if path, err := r.deps.Reports.Write(snap); err != nil {
			logger.Error().Err(err).Msg("report write failed")
		} else {
			logger.Info().Str("report", path).Msg("report written")
		}
	}
	if h := r.deps.History; h != nil {
		if err := h.SaveRun(context.Background(), snap); err != nil {
			logger.Warn().Err(err).Msg("history save failed")
		}
	}
	if m := r.deps.Metrics; m != nil {
		m.TestsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	}
	r.notify("test_completed", testID, final)
	logger.Info().Int("total", final.TotalRequests).
		Int("successful", final.SuccessfulRequests).Int("failed", final.FailedRequests).
		Msg("test completed")
}

func (r *Runner) fail(testID string, logger *zerolog.Logger, cause error) {
	now := time.Now()
	msg := cause.Error()
	if err := r.deps.Tests.SetStatus(context.Background(), testID, domain.StatusFailed, &now, &msg); err != nil {
		logger.Error().Err(err).Msg("failed-status update failed")
	}
	if m := r.deps.Metrics; m != nil {
		m.TestsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	}
	r.notify("test_failed", testID, map[string]string{"error": msg})
	logger.Error().Err(cause).Msg("test failed")
}

func (r *Runner) release(testID string) {
	r.mu.Lock()
	if cancel, ok := r.cancels[testID]; ok {
		cancel()
		delete(r.cancels, testID)
	}
	r.mu.Unlock()
}

func (r *Runner) notify(event, testID string, data any) {
	if r.deps.Notifier != nil {
		r.deps.Notifier.Notify(event, testID, data)
	}
}
