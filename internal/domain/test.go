package domain

import (
	"errors"
	"fmt"
	"time"
)

type TestStatus string

const (
	StatusCreated   TestStatus = "created"
	StatusRunning   TestStatus = "running"
	StatusCompleted TestStatus = "completed"
	StatusFailed    TestStatus = "failed"
)

func (s TestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving to the given status is a legal
// forward step. Transitions never go backwards and terminal states are
// sealed for good.
func (s TestStatus) CanTransition(to TestStatus) bool {
	switch s {
	case StatusCreated:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

const (
	DefaultConcurrentUsers       = 10
	DefaultDurationSeconds       = 300
	DefaultRampUpSeconds         = 60
	DefaultRequestTimeoutSeconds = 10
)

type TestConfig struct {
	BaseURL         string      `json:"base_url"`
	Scenario        ScenarioRef `json:"scenario"`
	ConcurrentUsers int         `json:"concurrent_users,omitempty"`
	DurationSeconds int         `json:"duration,omitempty"`

	// A pointer so an explicit 0 (start everyone at once) survives decoding,
	// unlike the other knobs where 0 is not a legal value.
	RampUpSeconds         *int `json:"ramp_up_time,omitempty"`
	RequestTimeoutSeconds int  `json:"request_timeout,omitempty"`
}

// Normalize fills the zero-valued knobs with the stock defaults.
func (c *TestConfig) Normalize() {
	if c.ConcurrentUsers == 0 {
		c.ConcurrentUsers = DefaultConcurrentUsers
	}
	if c.DurationSeconds == 0 {
		c.DurationSeconds = DefaultDurationSeconds
	}
	if c.RampUpSeconds == nil {
		ramp := DefaultRampUpSeconds
		c.RampUpSeconds = &ramp
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if c.Scenario.Inline != nil {
		c.Scenario.Inline.Normalize()
	}
}

func (c TestConfig) Validate(maxUsers int) error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.Scenario.IsZero() {
		return errors.New("scenario is required")
	}
	if c.Scenario.Inline != nil {
		if err := c.Scenario.Inline.Validate(); err != nil {
			return err
		}
	}
	if c.ConcurrentUsers < 1 {
		return errors.New("concurrent_users must be >= 1")
	}
	if maxUsers > 0 && c.ConcurrentUsers > maxUsers {
		return fmt.Errorf("concurrent_users must be <= %d", maxUsers)
	}
	if c.DurationSeconds < 1 {
		return errors.New("duration must be >= 1")
	}
	if c.RampUpSeconds != nil && *c.RampUpSeconds < 0 {
		return errors.New("ramp_up_time must be >= 0")
	}
	if c.RequestTimeoutSeconds < 1 {
		return errors.New("request_timeout must be >= 1")
	}
	return nil
}

func (c TestConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

func (c TestConfig) RampUp() time.Duration {
	if c.RampUpSeconds == nil {
		return time.Duration(DefaultRampUpSeconds) * time.Second
	}
	return time.Duration(*c.RampUpSeconds) * time.Second
}

func (c TestConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ActionResult is one executed action of one virtual user. ResponseTime is
// seconds; a transport failure is recorded as StatusCode 0 with Error set.
type ActionResult struct {
	Action       string    `json:"action"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	StatusCode   int       `json:"status_code"`
	ResponseTime float64   `json:"response_time"`
	Success      bool      `json:"success"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       int       `json:"user_id"`
	Error        string    `json:"error,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"` // TIMEOUT | DNS | CONNECT | ...
	BodyPreview  string    `json:"response_body,omitempty"`
}

type Metrics struct {
	TotalRequests      int      `json:"total_requests"`
	SuccessfulRequests int      `json:"successful_requests"`
	FailedRequests     int      `json:"failed_requests"`
	AvgResponseTime    float64  `json:"avg_response_time"`
	MinResponseTime    float64  `json:"min_response_time"`
	MaxResponseTime    float64  `json:"max_response_time"`
	Errors             []string `json:"errors"`
}

type TestSession struct {
	ID        string         `json:"id"`
	Config    TestConfig     `json:"config"`
	Status    TestStatus     `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Error     *string        `json:"error,omitempty"`
	Results   []ActionResult `json:"results,omitempty"`
	Metrics   Metrics        `json:"metrics"`
}
