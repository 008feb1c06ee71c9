package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"load-tester/internal/adapters/storage/memory"
	"load-tester/internal/domain"
)

type notifierEvent struct {
	Event string
	ID    string
	Data  any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifierEvent
}

func (n *recordingNotifier) Notify(event, testID string, data any) {
	n.mu.Lock()
	n.events = append(n.events, notifierEvent{event, testID, data})
	n.mu.Unlock()
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Event == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) waitFor(t *testing.T, event string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if n.count(event) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("event %q never arrived", event)
}

func intPtr(n int) *int { return &n }

func newRunSession(id, baseURL string, users, durationSec int) domain.TestSession {
	sc := domain.Scenario{
		Name: "ping",
		Actions: []domain.Action{
			{Name: "ping", Method: "GET", Endpoint: "/api/ping", Delay: 0.01},
		},
	}
	return domain.TestSession{
		ID: id,
		Config: domain.TestConfig{
			BaseURL:               baseURL,
			Scenario:              domain.ScenarioRef{Name: sc.Name, Inline: &sc},
			ConcurrentUsers:       users,
			DurationSeconds:       durationSec,
			RampUpSeconds:         intPtr(0),
			RequestTimeoutSeconds: 5,
		},
		Status:    domain.StatusCreated,
		StartTime: time.Now(),
	}
}

func okStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForStatus(t *testing.T, store *memory.Store, id string, want domain.TestStatus, timeout time.Duration) domain.TestSession {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap, ok, err := store.GetTest(context.Background(), id)
		if err != nil {
			t.Fatalf("get test: %v", err)
		}
		if ok && snap.Status == want {
			return snap
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("test %s never reached %s", id, want)
	return domain.TestSession{}
}

func TestRunnerRunsToCompletion(t *testing.T) {
	t.Parallel()

	srv := okStub(t)
	store := memory.NewStore(10)
	notifier := &recordingNotifier{}
	reports := NewReportWriter(t.TempDir())
	logger := discardLogger()
	runner := NewRunner(RunnerDeps{
		Tests:    store,
		Reports:  reports,
		Notifier: notifier,
		Logger:   logger,
	}, RunnerOptions{MetricsInterval: 200 * time.Millisecond, JoinTimeout: 5 * time.Second})

	sess := newRunSession("t-complete", srv.URL, 3, 1)
	if err := store.CreateTest(context.Background(), sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := runner.Start(context.Background(), sess); err != nil {
		t.Fatalf("start: %v", err)
	}

	notifier.waitFor(t, "test_completed", 10*time.Second)

	snap := waitForStatus(t, store, sess.ID, domain.StatusCompleted, 2*time.Second)
	if snap.EndTime == nil {
		t.Fatal("end time not set")
	}
	m := snap.Metrics
	if m.TotalRequests == 0 {
		t.Fatal("no requests recorded")
	}
	if m.TotalRequests != m.SuccessfulRequests+m.FailedRequests {
		t.Fatalf("counts do not add up: %+v", m)
	}
	if m.FailedRequests != 0 {
		t.Fatalf("failures against an always-200 server: %+v", m)
	}

	// sealed sessions refuse further results
	err := store.AppendResults(context.Background(), sess.ID, []domain.ActionResult{{Action: "late"}})
	if err == nil {
		t.Fatal("append after seal must fail")
	}

	if notifier.count("test_started") != 1 {
		t.Fatalf("test_started count = %d", notifier.count("test_started"))
	}
	if notifier.count("metrics_updated") == 0 {
		t.Fatal("no live metrics events during the run")
	}

	raw, ok, err := reports.Read(sess.ID)
	if err != nil || !ok {
		t.Fatalf("report read: ok=%v err=%v", ok, err)
	}
	var rep Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		t.Fatalf("report decode: %v", err)
	}
	if rep.TestID != sess.ID {
		t.Fatalf("report test id = %q", rep.TestID)
	}
	if rep.Summary.TotalRequests != m.TotalRequests {
		t.Fatalf("report summary %d != sealed metrics %d", rep.Summary.TotalRequests, m.TotalRequests)
	}
	if len(rep.Timeline) != m.TotalRequests {
		t.Fatalf("timeline has %d entries, metrics counted %d", len(rep.Timeline), m.TotalRequests)
	}
}

func TestRunnerSingleUserStartsImmediately(t *testing.T) {
	t.Parallel()

	srv := okStub(t)
	store := memory.NewStore(10)
	runner := NewRunner(RunnerDeps{
		Tests:  store,
		Logger: discardLogger(),
	}, RunnerOptions{MetricsInterval: 200 * time.Millisecond, JoinTimeout: 5 * time.Second})

	// the ramp is far longer than the run: traffic appears only because
	// worker 0's offset is zero
	sc := domain.Scenario{
		Name:    "ping",
		Actions: []domain.Action{{Name: "ping", Method: "GET", Endpoint: "/api/ping", Delay: 0.01}},
	}
	sess := domain.TestSession{
		ID: "t-solo",
		Config: domain.TestConfig{
			BaseURL:               srv.URL,
			Scenario:              domain.ScenarioRef{Name: sc.Name, Inline: &sc},
			ConcurrentUsers:       1,
			DurationSeconds:       1,
			RampUpSeconds:         intPtr(60),
			RequestTimeoutSeconds: 5,
		},
		Status:    domain.StatusCreated,
		StartTime: time.Now(),
	}
	if err := store.CreateTest(context.Background(), sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := runner.Start(context.Background(), sess); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := waitForStatus(t, store, sess.ID, domain.StatusCompleted, 10*time.Second)
	if snap.Metrics.TotalRequests == 0 {
		t.Fatal("single worker never started inside its own ramp window")
	}
	for _, res := range snap.Results {
		if res.UserID != 0 {
			t.Fatalf("result from user %d in a single-user run", res.UserID)
		}
	}
}

func TestRunnerRampStaggersWorkers(t *testing.T) {
	t.Parallel()

	srv := okStub(t)
	store := memory.NewStore(10)
	runner := NewRunner(RunnerDeps{
		Tests:  store,
		Logger: discardLogger(),
	}, RunnerOptions{MetricsInterval: 200 * time.Millisecond, JoinTimeout: 5 * time.Second})

	// step = 20s / 2 workers = 10s: the second worker is still waiting out
	// its offset when the 1s deadline seals the run
	sc := domain.Scenario{
		Name:    "ping",
		Actions: []domain.Action{{Name: "ping", Method: "GET", Endpoint: "/api/ping", Delay: 0.01}},
	}
	sess := domain.TestSession{
		ID: "t-stagger",
		Config: domain.TestConfig{
			BaseURL:               srv.URL,
			Scenario:              domain.ScenarioRef{Name: sc.Name, Inline: &sc},
			ConcurrentUsers:       2,
			DurationSeconds:       1,
			RampUpSeconds:         intPtr(20),
			RequestTimeoutSeconds: 5,
		},
		Status:    domain.StatusCreated,
		StartTime: time.Now(),
	}
	if err := store.CreateTest(context.Background(), sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := runner.Start(context.Background(), sess); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := waitForStatus(t, store, sess.ID, domain.StatusCompleted, 10*time.Second)
	if snap.Metrics.TotalRequests == 0 {
		t.Fatal("worker 0 produced no traffic")
	}
	for _, res := range snap.Results {
		if res.UserID != 0 {
			t.Fatalf("user %d ran before its 10s offset", res.UserID)
		}
	}
}

func TestRunnerStopEndsRunEarly(t *testing.T) {
	t.Parallel()

	srv := okStub(t)
	store := memory.NewStore(10)
	notifier := &recordingNotifier{}
	runner := NewRunner(RunnerDeps{
		Tests:    store,
		Notifier: notifier,
		Logger:   discardLogger(),
	}, RunnerOptions{MetricsInterval: 100 * time.Millisecond, JoinTimeout: 5 * time.Second})

	sess := newRunSession("t-stop", srv.URL, 2, 30)
	if err := store.CreateTest(context.Background(), sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := runner.Start(context.Background(), sess); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitForStatus(t, store, sess.ID, domain.StatusRunning, 2*time.Second)
	time.Sleep(300 * time.Millisecond)

	began := time.Now()
	if !runner.Stop(sess.ID) {
		t.Fatal("stop returned false for a running test")
	}
	snap := waitForStatus(t, store, sess.ID, domain.StatusCompleted, 10*time.Second)
	if elapsed := time.Since(began); elapsed > 8*time.Second {
		t.Fatalf("seal took %v after stop", elapsed)
	}
	if snap.EndTime == nil {
		t.Fatal("end time not set")
	}
	if notifier.count("test_stopped") != 1 {
		t.Fatalf("test_stopped count = %d", notifier.count("test_stopped"))
	}

	// the cancel entry is released just after the seal, so a later stop
	// finds nothing; poll past that window
	drain := time.Now().Add(2 * time.Second)
	for runner.Stop(sess.ID) {
		if !time.Now().Before(drain) {
			t.Fatal("cancel entry never released")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunnerJoinTimeoutSealsWithStragglers(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(unblock)

	store := memory.NewStore(10)
	runner := NewRunner(RunnerDeps{
		Tests:  store,
		Logger: discardLogger(),
	}, RunnerOptions{MetricsInterval: 100 * time.Millisecond, JoinTimeout: 200 * time.Millisecond})

	// the only worker is stuck in a call far longer than deadline+join,
	// so the seal must happen without it
	sc := domain.Scenario{
		Name:    "stall",
		Actions: []domain.Action{{Name: "stall", Method: "GET", Endpoint: "/slow"}},
	}
	sess := domain.TestSession{
		ID: "t-join",
		Config: domain.TestConfig{
			BaseURL:               srv.URL,
			Scenario:              domain.ScenarioRef{Name: sc.Name, Inline: &sc},
			ConcurrentUsers:       1,
			DurationSeconds:       1,
			RampUpSeconds:         intPtr(0),
			RequestTimeoutSeconds: 30,
		},
		Status:    domain.StatusCreated,
		StartTime: time.Now(),
	}
	if err := store.CreateTest(context.Background(), sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := runner.Start(context.Background(), sess); err != nil {
		t.Fatalf("start: %v", err)
	}

	// a 10s wait bounds the whole run: deadline 1s + join 200ms, while the
	// stuck call would hold the worker for 30s
	snap := waitForStatus(t, store, sess.ID, domain.StatusCompleted, 10*time.Second)
	if snap.Metrics.TotalRequests != 0 || len(snap.Results) != 0 {
		t.Fatalf("sealed with %d results", len(snap.Results))
	}

	// let the stalled call finish; its result arrives past the seal and
	// must be dropped
	unblock()
	time.Sleep(300 * time.Millisecond)
	snap, _, _ = store.GetTest(context.Background(), sess.ID)
	if len(snap.Results) != 0 {
		t.Fatalf("straggler result landed after the seal: %d", len(snap.Results))
	}
}

func TestRunnerRejectsUnresolvedScenario(t *testing.T) {
	t.Parallel()

	runner := NewRunner(RunnerDeps{
		Tests:  memory.NewStore(10),
		Logger: discardLogger(),
	}, RunnerOptions{})

	sess := domain.TestSession{
		ID: "t-unresolved",
		Config: domain.TestConfig{
			BaseURL:  "http://localhost:1",
			Scenario: domain.ScenarioRef{Name: "named-only"},
		},
	}
	if err := runner.Start(context.Background(), sess); err == nil {
		t.Fatal("start accepted a scenario without inline actions")
	}
}

func TestRunnerRejectsDuplicateStart(t *testing.T) {
	t.Parallel()

	srv := okStub(t)
	store := memory.NewStore(10)
	runner := NewRunner(RunnerDeps{
		Tests:  store,
		Logger: discardLogger(),
	}, RunnerOptions{MetricsInterval: time.Second, JoinTimeout: 5 * time.Second})

	sess := newRunSession("t-dup", srv.URL, 1, 30)
	if err := store.CreateTest(context.Background(), sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := runner.Start(context.Background(), sess); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := runner.Start(context.Background(), sess); err == nil {
		t.Fatal("second start of the same test must fail")
	}

	runner.Stop(sess.ID)
	waitForStatus(t, store, sess.ID, domain.StatusCompleted, 10*time.Second)
}

func TestRunnerStopAllCancelsEverything(t *testing.T) {
	t.Parallel()

	srv := okStub(t)
	store := memory.NewStore(10)
	notifier := &recordingNotifier{}
	runner := NewRunner(RunnerDeps{
		Tests:    store,
		Notifier: notifier,
		Logger:   discardLogger(),
	}, RunnerOptions{MetricsInterval: time.Second, JoinTimeout: 5 * time.Second})

	for _, id := range []string{"t-all-1", "t-all-2"} {
		sess := newRunSession(id, srv.URL, 1, 30)
		if err := store.CreateTest(context.Background(), sess); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if err := runner.Start(context.Background(), sess); err != nil {
			t.Fatalf("start %s: %v", id, err)
		}
		waitForStatus(t, store, id, domain.StatusRunning, 2*time.Second)
	}

	if n := runner.StopAll(); n != 2 {
		t.Fatalf("stopped %d tests, want 2", n)
	}
	for _, id := range []string{"t-all-1", "t-all-2"} {
		waitForStatus(t, store, id, domain.StatusCompleted, 10*time.Second)
	}
	if notifier.count("test_stopped") != 2 {
		t.Fatalf("test_stopped count = %d", notifier.count("test_stopped"))
	}

	drain := time.Now().Add(2 * time.Second)
	for runner.StopAll() != 0 {
		if !time.Now().Before(drain) {
			t.Fatal("cancel registry never drained")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
