package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"load-tester/internal/domain"
	obs "load-tester/internal/infrastructure/observability"
)

// Minimal HAR 1.2 structs for export
type harLog struct {
	Version string     `json:"version"`
	Creator harName    `json:"creator"`
	Entries []harEntry `json:"entries"`
}
type harName struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
type harEntry struct {
	StartedDateTime time.Time   `json:"startedDateTime"`
	Time            int64       `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
}
type harRequest struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	HeadersSize int    `json:"headersSize"`
	BodySize    int    `json:"bodySize"`
}
type harResponse struct {
	Status      int    `json:"status"`
	StatusText  string `json:"statusText"`
	HeadersSize int    `json:"headersSize"`
	BodySize    int    `json:"bodySize"`
}

// exportHARForTest renders every recorded action of a session as a HAR
// entry. Header and body sizes are not captured per request, so they are
// reported as unknown per the HAR convention.
func exportHARForTest(w http.ResponseWriter, t domain.TestSession) {
	entries := make([]harEntry, 0, len(t.Results))
	for _, res := range t.Results {
		entries = append(entries, harEntry{
			StartedDateTime: res.Timestamp,
			Time:            int64(res.ResponseTime * 1000),
			Request:         harRequest{Method: res.Method, URL: res.URL, HeadersSize: -1, BodySize: -1},
			Response:        harResponse{Status: res.StatusCode, StatusText: http.StatusText(res.StatusCode), HeadersSize: -1, BodySize: -1},
		})
	}
	har := struct {
		Log harLog `json:"log"`
	}{Log: harLog{Version: "1.2", Creator: harName{Name: "load-tester", Version: obs.Version}, Entries: entries}}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=load_test_"+t.ID+".har")
	_ = json.NewEncoder(w).Encode(har)
}
