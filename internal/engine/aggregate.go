package engine

import (
	"github.com/montanaflynn/stats"

	"load-tester/internal/domain"
)

// Aggregate recomputes Metrics from a results snapshot in a single pass.
// It is a pure function of the snapshot: recomputing over the same results
// yields identical output. Response times <= 0 (transport failures) are
// excluded from the latency figures but still counted as requests.
func Aggregate(results []domain.ActionResult, recentErrors int) domain.Metrics {
	m := domain.Metrics{Errors: []string{}}

	var sum float64
	var timed int
	for _, r := range results {
		m.TotalRequests++
		if r.Success {
			m.SuccessfulRequests++
		} else {
			msg := r.Error
			if msg == "" {
				msg = "Unknown error"
			}
			m.Errors = append(m.Errors, msg)
			if recentErrors > 0 && len(m.Errors) > recentErrors {
				m.Errors = m.Errors[1:]
			}
		}
		if r.ResponseTime > 0 {
			sum += r.ResponseTime
			timed++
			if timed == 1 || r.ResponseTime < m.MinResponseTime {
				m.MinResponseTime = r.ResponseTime
			}
			if r.ResponseTime > m.MaxResponseTime {
				m.MaxResponseTime = r.ResponseTime
			}
		}
	}
	m.FailedRequests = m.TotalRequests - m.SuccessfulRequests
	if timed > 0 {
		m.AvgResponseTime = sum / float64(timed)
	}
	return m
}

type LatencySummary struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Percentiles summarizes the positive response times of a results snapshot.
// An empty snapshot yields all zeroes.
func Percentiles(results []domain.ActionResult) LatencySummary {
	times := make([]float64, 0, len(results))
	for _, r := range results {
		if r.ResponseTime > 0 {
			times = append(times, r.ResponseTime)
		}
	}
	if len(times) == 0 {
		return LatencySummary{}
	}
	pct := func(q float64) float64 {
		v, err := stats.Percentile(times, q)
		if err != nil {
			return 0
		}
		return v
	}
	return LatencySummary{P50: pct(50), P90: pct(90), P95: pct(95), P99: pct(99)}
}
