package redact

import (
	"encoding/json"
	"strings"
)

var sensitiveKeys = []string{"authorization", "cookie", "access_token", "id_token", "auth_token", "token", "session", "apikey", "password"}

// RedactJSON masks sensitive fields in a JSON string best-effort.
// Non-JSON input is returned unchanged.
func RedactJSON(s string) string {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	redactNode(&v)
	b, err := json.Marshal(v)
	if err != nil {
		return s
	}
	return string(b)
}

// RedactValues masks sensitive entries of a flat string map, returning a copy.
func RedactValues(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = "***"
		} else {
			out[k] = v
		}
	}
	return out
}

func redactNode(n *any) {
	switch t := (*n).(type) {
	case map[string]any:
		for k, v := range t {
			if isSensitiveKey(k) {
				t[k] = "***"
				continue
			}
			vv := any(v)
			redactNode(&vv)
			t[k] = vv
		}
	case []any:
		for i := range t {
			vv := any(t[i])
			redactNode(&vv)
			t[i] = vv
		}
	}
}

func isSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if k == s {
			return true
		}
	}
	return false
}
