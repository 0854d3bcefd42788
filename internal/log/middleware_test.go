package log

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddleware_LogsCompletionWithStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf})

	var seen *Logger
	h := Middleware(logger,
		func(*http.Request) string { return "req-1" },
		func(*http.Request) string { return "10.0.0.1" },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/charts/monthly?scope=reports", nil))

	if seen == nil || seen.Component() != ComponentHTTP {
		t.Fatalf("expected request logger in context, got %+v", seen)
	}
	out := buf.String()
	for _, want := range []string{"HTTP request started", "HTTP request completed", "request_id=req-1", "status_code=418", "level=WARN", "client_ip=10.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLogger_ComponentIsStampedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).WithComponent(ComponentStorage)
	logger.Info("hello")
	if got := strings.Count(buf.String(), "component="); got != 1 {
		t.Fatalf("component written %d times: %s", got, buf.String())
	}
	if !strings.Contains(buf.String(), "component=storage") {
		t.Fatalf("missing component: %s", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if l.Component() != "unknown" {
		t.Fatalf("Component() = %q", l.Component())
	}
}
