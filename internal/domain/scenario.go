package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StatusSet is the set of response codes an action accepts. It unmarshals
// from a single number or an array of numbers; an empty set accepts 200.
type StatusSet []int

func (s StatusSet) Matches(code int) bool {
	if len(s) == 0 {
		return code == 200
	}
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

func (s *StatusSet) UnmarshalJSON(b []byte) error {
	var one int
	if err := json.Unmarshal(b, &one); err == nil {
		*s = StatusSet{one}
		return nil
	}
	var many []int
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("expected_status must be a number or an array of numbers")
	}
	*s = StatusSet(many)
	return nil
}

func (s StatusSet) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]int(s))
}

type Action struct {
	Name           string            `json:"name"`
	Method         string            `json:"method,omitempty"` // defaults to GET
	Endpoint       string            `json:"endpoint"`
	Payload        map[string]any    `json:"payload,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Delay          float64           `json:"delay,omitempty"` // seconds to pause after the action
	ExpectedStatus StatusSet         `json:"expected_status,omitempty"`
	Extract        map[string]string `json:"extract,omitempty"` // learned key -> JSONPath into the response body
}

func (a Action) DelayDuration() time.Duration {
	return time.Duration(a.Delay * float64(time.Second))
}

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

func (a *Action) Normalize() {
	if a.Method == "" {
		a.Method = "GET"
	}
	a.Method = strings.ToUpper(a.Method)
}

func (a Action) Validate() error {
	if a.Name == "" {
		return errors.New("action name is required")
	}
	if !allowedMethods[strings.ToUpper(a.Method)] && a.Method != "" {
		return fmt.Errorf("action %q: unsupported method %q", a.Name, a.Method)
	}
	if a.Endpoint == "" {
		return fmt.Errorf("action %q: endpoint is required", a.Name)
	}
	if a.Delay < 0 {
		return fmt.Errorf("action %q: delay must be >= 0", a.Name)
	}
	for _, c := range a.ExpectedStatus {
		if c < 100 || c > 599 {
			return fmt.Errorf("action %q: expected status %d out of range", a.Name, c)
		}
	}
	return nil
}

type Scenario struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Actions     []Action `json:"actions"`
}

func (s *Scenario) Normalize() {
	for i := range s.Actions {
		s.Actions[i].Normalize()
	}
}

func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("scenario %q: at least one action is required", s.Name)
	}
	for _, a := range s.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	return nil
}

// ScenarioRef points at a scenario either by catalog name or inline.
// It unmarshals from a plain string ("quick_match") or a full object.
type ScenarioRef struct {
	Name   string
	Inline *Scenario
}

func (r *ScenarioRef) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		r.Name = name
		r.Inline = nil
		return nil
	}
	var sc Scenario
	if err := json.Unmarshal(b, &sc); err != nil {
		return fmt.Errorf("scenario must be a name or a scenario object")
	}
	r.Inline = &sc
	r.Name = sc.Name
	return nil
}

func (r ScenarioRef) MarshalJSON() ([]byte, error) {
	if r.Inline != nil {
		return json.Marshal(r.Inline)
	}
	return json.Marshal(r.Name)
}

func (r ScenarioRef) IsZero() bool {
	return r.Name == "" && r.Inline == nil
}
