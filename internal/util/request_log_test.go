package util

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")

	h := WithRequestLog("web", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
		_, _ = w.Write([]byte("moved"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/subjects", nil)
	req = req.WithContext(ContextWithLogger(req.Context(), logger))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "http_request" || entry["service"] != "web" || entry["path"] != "/subjects" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["status"] != float64(http.StatusSeeOther) || entry["bytes"] != float64(5) {
		t.Fatalf("unexpected status/bytes: %v", entry)
	}
}

func TestWithRequestLogServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")
	h := WithRequestLog("", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithLogger(req.Context(), logger))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "ERROR" || entry["service"] != "unknown" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestWithRequestLogCarriesRequestIDOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")
	h := WithRequestID(WithRequestLog("web", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	req = req.WithContext(ContextWithLogger(req.Context(), logger))
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := bytes.TrimSpace(buf.Bytes())
	if n := bytes.Count(line, []byte(`"request_id"`)); n != 1 {
		t.Fatalf("request_id appears %d times in %s", n, line)
	}
	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["request_id"] != "req-42" {
		t.Fatalf("unexpected request_id: %v", entry["request_id"])
	}
}
