package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Format: "json", Output: &buf})
	l.InfoContext(context.Background(), "hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentHTTP || rec["k"] != "v" {
		t.Fatalf("unexpected record %v", rec)
	}

	buf.Reset()
	l = New(Config{Level: slog.LevelWarn, Component: ComponentApp, Format: "text", Output: &buf})
	l.InfoContext(context.Background(), "filtered")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	buf.Reset()
	l = New(Config{Level: slog.LevelInfo, Component: ComponentApp, Format: "tint", Output: &buf})
	l.InfoContext(context.Background(), "colored")
	if !strings.Contains(buf.String(), "colored") {
		t.Fatalf("tint output missing message: %q", buf.String())
	}
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Format: "json", Output: &buf})

	ctx := WithLogger(context.Background(), base.With(FieldRequestID, "req-1"))
	FromContext(ctx).InfoContext(ctx, "inside")

	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Fatalf("request id missing: %q", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l.Component() != "unknown" {
		t.Fatalf("got component %q", l.Component())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}))

	req := httptest.NewRequest(http.MethodPost, "/api/expenses?x=1", nil)
	sl.LogHTTPEnd(context.Background(), req, 500, 12, "10.0.0.1")
	if !strings.Contains(buf.String(), `"level":"ERROR"`) || !strings.Contains(buf.String(), `"status_code":500`) {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	sl.LogExpensesWritten(context.Background(), OpCreate, "ana@example.com", 3)
	if !strings.Contains(buf.String(), `"count":3`) || !strings.Contains(buf.String(), `"component":"expense"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "failed", errors.New("boom"), ComponentStorage, OpList, nil)
	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
