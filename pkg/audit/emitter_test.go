package audit

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// captureEmitter records every event it receives.
type captureEmitter struct {
	events []Event
	err    error
}

func (c *captureEmitter) Emit(ev Event) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func TestNopEmitter(t *testing.T) {
	if err := (NopEmitter{}).Emit(NewVerifyCompleted("host_a", true, 1)); err != nil {
		t.Errorf("NopEmitter should never fail: %v", err)
	}
}

func TestRecorderFanOut(t *testing.T) {
	a := &captureEmitter{}
	b := &captureEmitter{}
	rec := NewRecorder(nil, a, b)

	rec.Record(NewTrustChanged("host_a", false))

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("both backends should receive the event: %d, %d", len(a.events), len(b.events))
	}
	if a.events[0].Type != EventTrustChanged {
		t.Errorf("unexpected event: %+v", a.events[0])
	}
}

func TestRecorderBackendFailureIsolated(t *testing.T) {
	failing := &captureEmitter{err: errors.New("socket gone")}
	healthy := &captureEmitter{}
	rec := NewRecorder(slog.Default(), failing, healthy)

	// Must not panic or skip the healthy backend.
	rec.Record(NewVerifyFailed("host_a", "boom"))

	if len(healthy.events) != 1 {
		t.Error("healthy backend should still receive the event")
	}
}

func TestRecorderNilReceiver(t *testing.T) {
	var rec *Recorder
	rec.Record(NewVerifyCompleted("host_a", true, 1)) // must not panic
}

func TestLogEmitter(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	e := &LogEmitter{Logger: logger}
	if err := e.Emit(NewVerifyFailed("host_a", "classifier said no")); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "verify.failed") {
		t.Errorf("event type missing from log output: %s", out)
	}
	if !strings.Contains(out, "host_a") {
		t.Errorf("host id missing from log output: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("warning severity should log at WARN: %s", out)
	}
}
