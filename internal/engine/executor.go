package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"load-tester/internal/domain"
)

const (
	tcpDialTimeout        = 5 * time.Second
	tcpKeepAliveInterval  = 30 * time.Second
	tlsHandshakeTimeout   = 5 * time.Second
	idleConnTimeout       = 90 * time.Second
	expectContinueTimeout = 1 * time.Second

	// response bodies are read fully for extraction, capped to keep a
	// misbehaving target from holding the whole payload in memory
	maxBodyBytes = 1 << 20
)

// Request is one fully resolved action call: placeholders are already
// substituted, the URL is absolute.
type Request struct {
	Action   string
	Method   string
	URL      string
	Payload  map[string]any
	Headers  map[string]string
	Expected domain.StatusSet
	UserID   int
}

// Executor performs single HTTP calls and converts every outcome,
// including transport failures, into an ActionResult. It never returns an
// error: a failed call is data.
type Executor struct {
	client     *http.Client
	previewMax int
}

// NewExecutor builds an executor whose connection pool is sized for the
// given worker count. The timeout bounds each call end to end.
func NewExecutor(timeout time.Duration, concurrency, previewMax int) *Executor {
	if concurrency < 1 {
		concurrency = 1
	}
	transport := &http.Transport{
		MaxIdleConns:        concurrency,
		MaxIdleConnsPerHost: concurrency,
		MaxConnsPerHost:     concurrency * 2,
		IdleConnTimeout:     idleConnTimeout,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   tcpDialTimeout,
			KeepAlive: tcpKeepAliveInterval,
		}).DialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: expectContinueTimeout,
	}
	return &Executor{
		client:     &http.Client{Transport: transport, Timeout: timeout},
		previewMax: previewMax,
	}
}

// Do executes one call and returns the result plus the full response body
// for extraction. The call is bounded by the client timeout rather than a
// caller context, so an in-flight request is allowed to complete even while
// the surrounding run is being cancelled.
func (e *Executor) Do(req Request) (domain.ActionResult, []byte) {
	result := domain.ActionResult{
		Action: req.Action,
		Method: req.Method,
		URL:    req.URL,
		UserID: req.UserID,
	}

	var bodyReader io.Reader
	if req.Payload != nil {
		b, err := json.Marshal(req.Payload)
		if err != nil {
			result.Timestamp = time.Now()
			result.Error = fmt.Sprintf("encode payload: %v", err)
			result.ErrorCode = "ERROR"
			return result, nil
		}
		bodyReader = bytes.NewReader(b)
	}

	start := time.Now()
	httpReq, err := http.NewRequest(req.Method, req.URL, bodyReader)
	if err != nil {
		result.Timestamp = time.Now()
		result.Error = fmt.Sprintf("build request: %v", err)
		result.ErrorCode = "ERROR"
		return result, nil
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", fmt.Sprintf("LoadTester-User-%d", req.UserID))
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		result.ResponseTime = time.Since(start).Seconds()
		result.Timestamp = time.Now()
		// status 0 marks a transport failure
		result.StatusCode = 0
		result.Error = err.Error()
		result.ErrorCode = classifyNetError(err.Error())
		return result, nil
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	result.ResponseTime = time.Since(start).Seconds()
	result.Timestamp = time.Now()
	result.StatusCode = resp.StatusCode
	if e.previewMax > 0 {
		if len(body) > e.previewMax {
			result.BodyPreview = string(body[:e.previewMax])
		} else {
			result.BodyPreview = string(body)
		}
	}
	if readErr != nil {
		result.Error = fmt.Sprintf("read response body: %v", readErr)
		result.ErrorCode = classifyNetError(readErr.Error())
		return result, nil
	}

	if req.Expected.Matches(resp.StatusCode) {
		result.Success = true
	} else {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return result, body
}

// Rough classification of network errors for result rows.
func classifyNetError(msg string) string {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "context deadline exceeded") || strings.Contains(m, "timeout"):
		return "TIMEOUT"
	case strings.Contains(m, "no such host") || strings.Contains(m, "server misbehaving"):
		return "DNS"
	case strings.Contains(m, "x509") || strings.Contains(m, "certificate") || strings.Contains(m, "tls"):
		return "TLS"
	case strings.Contains(m, "connection refused") || strings.Contains(m, "cannot assign"):
		return "CONNECT"
	case strings.Contains(m, "connection reset") || strings.Contains(m, "reset by peer"):
		return "RST"
	case strings.Contains(m, "before full header") || strings.Contains(m, "unexpected eof") || strings.Contains(m, "early eof") || strings.Contains(m, "eof"):
		return "EOF"
	case strings.Contains(m, "request canceled") || strings.Contains(m, "client canceled"):
		return "CANCEL"
	default:
		return "ERROR"
	}
}
