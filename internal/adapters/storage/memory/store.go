package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"load-tester/internal/domain"
	"load-tester/internal/usecase"
)

type testEntry struct {
	session   domain.TestSession
	createdAt time.Time
}

// Store is the in-memory test session registry. Sessions stay queryable
// after they finish; capacity pressure evicts the oldest terminal session,
// never a running one.
type Store struct {
	mu sync.RWMutex
	// insertion order of test ids
	order []string
	items map[string]*testEntry

	maxTests int
}

func NewStore(maxTests int) *Store {
	return &Store{
		order:    make([]string, 0, maxTests),
		items:    make(map[string]*testEntry, maxTests),
		maxTests: maxTests,
	}
}

// TestRepository
func (s *Store) CreateTest(ctx context.Context, t domain.TestSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[t.ID]; ok {
		return fmt.Errorf("test %s already exists", t.ID)
	}
	if s.maxTests > 0 && len(s.items) >= s.maxTests {
		if !s.evictOldestTerminalLocked() {
			return fmt.Errorf("%w: %d tests still running", usecase.ErrRegistryFull, len(s.items))
		}
	}
	s.items[t.ID] = &testEntry{session: t, createdAt: time.Now()}
	s.order = append(s.order, t.ID)
	return nil
}

func (s *Store) GetTest(ctx context.Context, id string) (domain.TestSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return domain.TestSession{}, false, nil
	}
	return copySession(e.session, true), true, nil
}

func (s *Store) DeleteTest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; ok {
		delete(s.items, id)
		for i, tid := range s.order {
			if tid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (s *Store) ClearTests(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	s.items = make(map[string]*testEntry, s.maxTests)
	s.order = s.order[:0]
	return n, nil
}

func (s *Store) ListTests(ctx context.Context, f usecase.TestFilter) ([]domain.TestSession, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.TestSession, 0, len(s.items))
	for _, tid := range s.order { // preserve insertion order
		e := s.items[tid]
		if e == nil {
			continue
		}
		if f.Status != "" && string(e.session.Status) != f.Status {
			continue
		}
		if f.Q != "" && !matchesQuery(e.session, f.Q) {
			continue
		}
		// list rows omit the timeline, results go through ListResults
		results = append(results, copySession(e.session, false))
	}
	total := len(results)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return results[start:end], total, nil
}

// AppendResults grows the session timeline. Appends to a terminal session
// are rejected so a sealed timeline can never change underneath a reader.
func (s *Store) AppendResults(ctx context.Context, id string, rs []domain.ActionResult) error {
	if len(rs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return fmt.Errorf("test %s not found", id)
	}
	if e.session.Status.Terminal() {
		return fmt.Errorf("test %s is %s, results are sealed", id, e.session.Status)
	}
	e.session.Results = append(e.session.Results, rs...)
	return nil
}

func (s *Store) ListResults(ctx context.Context, id string, offset, limit int) ([]domain.ActionResult, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return nil, 0, fmt.Errorf("test %s not found", id)
	}
	total := len(e.session.Results)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]domain.ActionResult, end-start)
	copy(out, e.session.Results[start:end])
	return out, total, nil
}

func (s *Store) UpdateMetrics(ctx context.Context, id string, m domain.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return fmt.Errorf("test %s not found", id)
	}
	m.Errors = append([]string(nil), m.Errors...)
	e.session.Metrics = m
	return nil
}

// SetStatus applies a forward status transition. Setting the current status
// again is a no-op; anything else that is not a legal forward step fails.
func (s *Store) SetStatus(ctx context.Context, id string, to domain.TestStatus, endedAt *time.Time, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return fmt.Errorf("test %s not found", id)
	}
	if e.session.Status == to {
		return nil
	}
	if !e.session.Status.CanTransition(to) {
		return fmt.Errorf("test %s: illegal status transition %s -> %s", id, e.session.Status, to)
	}
	e.session.Status = to
	if endedAt != nil {
		t := *endedAt
		e.session.EndTime = &t
	}
	if errMsg != nil {
		m := *errMsg
		e.session.Error = &m
	}
	return nil
}

// evictOldestTerminalLocked drops the oldest finished session and reports
// whether anything could be evicted.
func (s *Store) evictOldestTerminalLocked() bool {
	for i, tid := range s.order {
		e := s.items[tid]
		if e == nil {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return true
		}
		if e.session.Status.Terminal() {
			delete(s.items, tid)
			s.order = append(s.order[:i], s.order[i+1:]...)
			return true
		}
	}
	return false
}

func copySession(t domain.TestSession, withResults bool) domain.TestSession {
	out := t
	if withResults {
		out.Results = append([]domain.ActionResult(nil), t.Results...)
	} else {
		out.Results = nil
	}
	out.Metrics.Errors = append([]string(nil), t.Metrics.Errors...)
	if t.Config.RampUpSeconds != nil {
		ramp := *t.Config.RampUpSeconds
		out.Config.RampUpSeconds = &ramp
	}
	if t.EndTime != nil {
		ts := *t.EndTime
		out.EndTime = &ts
	}
	if t.Error != nil {
		msg := *t.Error
		out.Error = &msg
	}
	return out
}

func matchesQuery(t domain.TestSession, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(t.ID), q) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Config.BaseURL), q) {
		return true
	}
	return strings.Contains(strings.ToLower(t.Config.Scenario.Name), q)
}
