// Package client is a small Go client for the load-tester REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client { return &Client{BaseURL: baseURL, HTTP: http.DefaultClient} }

// StartRequest mirrors the POST /api/tests body. Scenario takes either a
// catalog name (string) or an inline scenario object. RampUpTime is a
// pointer: leave it nil for the server default, use Int(0) to start all
// users at once.
type StartRequest struct {
	BaseURL         string `json:"base_url"`
	Scenario        any    `json:"scenario"`
	ConcurrentUsers int    `json:"concurrent_users,omitempty"`
	Duration        int    `json:"duration,omitempty"`
	RampUpTime      *int   `json:"ramp_up_time,omitempty"`
	RequestTimeout  int    `json:"request_timeout,omitempty"`
}

// Int points at v, for the optional numeric fields.
func Int(v int) *int { return &v }

type Metrics struct {
	TotalRequests      int64    `json:"total_requests"`
	SuccessfulRequests int64    `json:"successful_requests"`
	FailedRequests     int64    `json:"failed_requests"`
	AvgResponseTime    float64  `json:"avg_response_time"`
	MinResponseTime    float64  `json:"min_response_time"`
	MaxResponseTime    float64  `json:"max_response_time"`
	Errors             []string `json:"errors"`
}

type Test struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     *string    `json:"error,omitempty"`
	Results   []Result   `json:"results,omitempty"`
	Metrics   Metrics    `json:"metrics"`
}

type Result struct {
	Action       string    `json:"action"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	StatusCode   int       `json:"status_code"`
	ResponseTime float64   `json:"response_time"`
	Success      bool      `json:"success"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       int       `json:"user_id"`
	Error        string    `json:"error,omitempty"`
}

func (c *Client) StartTest(req StartRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Post(c.BaseURL+"/api/tests", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", apiErrorOf(resp)
	}
	var out struct {
		TestID string `json:"test_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.TestID, nil
}

func (c *Client) GetTest(id string) (Test, error) {
	resp, err := c.HTTP.Get(fmt.Sprintf("%s/api/tests/%s", c.BaseURL, id))
	if err != nil {
		return Test{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Test{}, apiErrorOf(resp)
	}
	var t Test
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (c *Client) ListTests(limit, offset int) ([]Test, int, error) {
	resp, err := c.HTTP.Get(fmt.Sprintf("%s/api/tests?limit=%d&offset=%d", c.BaseURL, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, apiErrorOf(resp)
	}
	var out struct {
		Items []Test `json:"items"`
		Total int    `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, err
	}
	return out.Items, out.Total, nil
}

func (c *Client) Results(id string, offset, limit int) ([]Result, int, error) {
	resp, err := c.HTTP.Get(fmt.Sprintf("%s/api/tests/%s/results?offset=%d&limit=%d", c.BaseURL, id, offset, limit))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, apiErrorOf(resp)
	}
	var out struct {
		Items []Result `json:"items"`
		Total int      `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, err
	}
	return out.Items, out.Total, nil
}

// StopTest requests cancellation; the test finishes asynchronously. The
// returned bool tells whether a running test was actually signalled.
func (c *Client) StopTest(id string) (bool, error) {
	resp, err := c.HTTP.Post(fmt.Sprintf("%s/api/tests/%s/stop", c.BaseURL, id), "application/json", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return false, apiErrorOf(resp)
	}
	var out struct {
		Stopping bool `json:"stopping"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Stopping, nil
}

func (c *Client) StopAll() (int, error) {
	resp, err := c.HTTP.Post(c.BaseURL+"/api/tests/stop", "application/json", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, apiErrorOf(resp)
	}
	var out struct {
		Stopped int `json:"stopped"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Stopped, nil
}

func (c *Client) DeleteTest(id string) error {
	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/tests/%s", c.BaseURL, id), nil)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiErrorOf(resp)
	}
	return nil
}

func apiErrorOf(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Error.Code != "" {
		return fmt.Errorf("%s: %s", body.Error.Code, body.Error.Message)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
}
