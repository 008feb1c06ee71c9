package engine

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"load-tester/internal/domain"
	"load-tester/pkg/shared/id"
	"load-tester/pkg/shared/redact"
)

// WorkerState tracks the lifecycle of one virtual user.
type WorkerState int32

const (
	StateWaiting WorkerState = iota
	StateActive
	StateFinished
)

func (s WorkerState) String() string {
	switch s {
	case StateWaiting:
		return "waiting-to-start"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Worker is one virtual user. It sleeps out its ramp offset, then loops the
// scenario's actions in order until the run context expires, feeding every
// result into the sink. Its learned-values map is private: one user's auth
// token never leaks to another.
type Worker struct {
	ID         int
	Scenario   domain.Scenario
	BaseURL    string
	StartDelay time.Duration
	Exec       *Executor
	Sink       func(domain.ActionResult)
	Logger     *zerolog.Logger

	learned map[string]string
	state   atomic.Int32
}

func NewWorker(userID int, sc domain.Scenario, baseURL string, startDelay time.Duration, exec *Executor, sink func(domain.ActionResult), logger *zerolog.Logger) *Worker {
	return &Worker{
		ID:         userID,
		Scenario:   sc,
		BaseURL:    baseURL,
		StartDelay: startDelay,
		Exec:       exec,
		Sink:       sink,
		Logger:     logger,
		learned: map[string]string{
			"user_id":   strconv.Itoa(userID),
			"device_id": id.New(),
		},
	}
}

func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Run drives the worker to finished. The context carries both the global
// test deadline and explicit cancellation; it is checked before every
// action, so a long scenario never overruns the deadline by more than one
// in-flight call. Action failures never abort the loop.
func (w *Worker) Run(ctx context.Context) {
	defer w.state.Store(int32(StateFinished))

	if w.StartDelay > 0 {
		select {
		case <-time.After(w.StartDelay):
		case <-ctx.Done():
			return
		}
	}
	w.state.Store(int32(StateActive))

	for {
		for _, action := range w.Scenario.Actions {
			if ctx.Err() != nil {
				return
			}
			w.runAction(action)
			if d := action.DelayDuration(); d > 0 {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *Worker) runAction(a domain.Action) {
	res := NewResolver(w.learned)
	req := Request{
		Action:   a.Name,
		Method:   a.Method,
		URL:      joinURL(w.BaseURL, res.String(a.Endpoint)),
		Payload:  res.Payload(a.Payload),
		Headers:  res.Headers(a.Headers),
		Expected: a.ExpectedStatus,
		UserID:   w.ID,
	}
	if un := res.Unresolved(); len(un) > 0 {
		w.Logger.Debug().Int("user", w.ID).Str("action", a.Name).
			Strs("unresolved", un).Msg("placeholders resolved to empty values")
	}

	result, body := w.Exec.Do(req)
	if result.Success {
		for key, expr := range a.Extract {
			v, err := ExtractString(body, expr)
			if err != nil {
				w.Logger.Debug().Int("user", w.ID).Str("action", a.Name).
					Str("key", key).Err(err).Msg("extraction failed")
				continue
			}
			w.learned[key] = v
		}
	} else {
		w.Logger.Debug().Int("user", w.ID).Str("action", a.Name).
			Int("status", result.StatusCode).Str("error", result.Error).
			Interface("headers", redact.RedactValues(req.Headers)).
			Str("body", clip(redact.RedactJSON(string(body)), 512)).
			Msg("action failed")
	}
	w.Sink(result)
}

func joinURL(base, endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
