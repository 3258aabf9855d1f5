package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Handler: slog.NewTextHandler(&buf, nil), Component: ComponentRegistry})
	l.Info("Record appended", FieldCollection, "out")

	out := buf.String()
	if !strings.Contains(out, "component=registry") || !strings.Contains(out, "collection=out") {
		t.Fatalf("unexpected log line %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentStorage).Warn("x")
	if !strings.Contains(buf.String(), "component=storage") {
		t.Fatalf("component not replaced: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentHTTP).
		WithOperation(OpAppend).
		WithCollection("in", 3).
		WithError(errors.New("boom"))
	if f[FieldIndex] != 3 || f[FieldError] != "boom" || f[FieldCollection] != "in" {
		t.Fatalf("unexpected fields %v", f)
	}
	if len(f.ToSlice()) != len(f)*2 {
		t.Fatalf("ToSlice length mismatch")
	}
	if _, ok := NewFields().WithCollection("out", -1)[FieldIndex]; ok {
		t.Fatalf("negative index must be omitted")
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	l := Discard()
	var got *Logger
	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got == nil || got.Component() != "test" {
		t.Fatalf("logger not propagated: %+v", got)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
