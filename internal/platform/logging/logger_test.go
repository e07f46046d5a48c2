package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNewWritesServiceFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(Options{Level: LevelInfo, Service: "kingsroom-ingest", Version: "1.0.0", Output: &buf})
	logger.Info("saved game", "game_id", "g-1", "error", errors.New("boom"))
	logger.Debug("hidden")

	out := buf.String()
	for _, want := range []string{`"service":"kingsroom-ingest"`, `"version":"1.0.0"`, `"game_id":"g-1"`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry should be filtered: %s", out)
	}
}

func TestContextVariantAddsTraceIDs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(Options{Level: LevelDebug, Output: &buf})

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.With("job_id", "job-1").InfoContext(ctx, "tick")
	out := buf.String()
	if !strings.Contains(out, `"trace_id":"0102030405060708090a0b0c0d0e0f10"`) {
		t.Fatalf("missing trace id: %s", out)
	}
	if !strings.Contains(out, `"job_id":"job-1"`) {
		t.Fatalf("missing child field: %s", out)
	}
}

func TestOddArgsKeepLastKey(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(Options{Level: LevelInfo, Output: &buf}).Warn("odd", "dangling")
	if !strings.Contains(buf.String(), `"dangling":null`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestMirrorReceivesEnabledEntries(t *testing.T) {
	var got []string
	SetMirror(func(_ context.Context, level Level, msg string, _ ...any) {
		got = append(got, level.String()+":"+msg)
	})
	t.Cleanup(func() { SetMirror(nil) })

	var buf bytes.Buffer
	logger := New(Options{Level: LevelInfo, Output: &buf})
	logger.Debug("skipped")
	logger.WarnContext(context.Background(), "retrying fetch")

	if len(got) != 1 || got[0] != "warn:retrying fetch" {
		t.Fatalf("unexpected mirrored entries %v", got)
	}
}
