package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(slog.LevelDebug)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(slog.LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose int
		want    slog.Level
	}{
		{"trace", 0, LevelTrace},
		{"debug", 0, slog.LevelDebug},
		{"info", 0, slog.LevelInfo},
		{"warning", 0, slog.LevelWarn},
		{"error", 0, slog.LevelError},
		{"", 1, slog.LevelDebug},
		{"", 3, LevelTrace},
		{"bogus", 0, slog.LevelInfo},
		{"error", 2, slog.LevelError},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.name, tt.verbose); got != tt.want {
			t.Errorf("ParseLevel(%q, %d) = %v, want %v", tt.name, tt.verbose, got, tt.want)
		}
	}
}

func TestCompactHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(h).With("dataset", "people.json")

	logger.Warn("skipped entry", "reason", "missing id", "count", 2)

	line := buf.String()
	if !strings.HasPrefix(line, "[WARN]  ") {
		t.Errorf("expected WARN prefix, got %q", line)
	}
	if !strings.Contains(line, `skipped entry | dataset=people.json reason="missing id" count=2`) {
		t.Errorf("unexpected attribute formatting: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("expected newline terminator, got %q", line)
	}
}

func TestCompactHandler_SpecialKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, nil))

	logger.Error("merge failed",
		"requestID", "0123456789abcdef",
		"durationMs", int64(12),
		"error", errors.New("boom"),
	)

	line := buf.String()
	for _, want := range []string{"[ERROR]", "req=01234567", "duration=12ms", `error="boom"`} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
}

func TestCompactHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, nil))

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered at the default level, got %q", buf.String())
	}
}

func TestCompactHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, nil)).WithGroup("merge")

	logger.Info("done", "nodes", 3)

	if !strings.Contains(buf.String(), "merge.nodes=3") {
		t.Errorf("expected grouped key, got %q", buf.String())
	}
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" {
		t.Error("expected empty request ID on a bare context")
	}

	ctx = WithRequestID(ctx, "abc")
	if got := GetRequestID(ctx); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

func TestTraceLevel(t *testing.T) {
	buf := captureLogs(t)

	Trace("per-node detail")
	if buf.Len() != 0 {
		t.Errorf("expected trace to be filtered at debug level, got %q", buf.String())
	}

	SetLevel(LevelTrace)
	Trace("per-node detail")
	if !strings.HasPrefix(buf.String(), "[TRACE]") {
		t.Errorf("expected TRACE prefix, got %q", buf.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	buf := captureLogs(t)

	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected request ID in handler context")
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/node/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
	if !strings.Contains(buf.String(), "request rejected") {
		t.Errorf("expected rejected request log, got %q", buf.String())
	}
}

func TestRequestIDMiddleware_KeepsIncomingID(t *testing.T) {
	captureLogs(t)

	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("expected incoming request ID to be kept, got %q", got)
	}
}

func TestSetJSONOutput(t *testing.T) {
	buf := captureLogs(t)
	SetJSONOutput(true)
	t.Cleanup(func() { SetJSONOutput(false) })

	Info("ready", "nodes", 4, "elapsed", time.Duration(0))

	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"nodes":4`) {
		t.Errorf("expected JSON log line, got %q", buf.String())
	}
}
