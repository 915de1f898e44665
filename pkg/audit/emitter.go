// Package audit records security-relevant verification events. Events flow
// to pluggable backends; emit failures are logged and never propagate into
// the verification path.
package audit

import (
	"log/slog"
)

// EventEmitter accepts structured audit events for recording.
type EventEmitter interface {
	Emit(Event) error
}

// NopEmitter discards all events. Use when no audit backend is configured.
type NopEmitter struct{}

// Emit discards the event.
func (NopEmitter) Emit(Event) error { return nil }

// Recorder fans audit events out to one or more EventEmitter backends.
// A backend failure is logged and does not affect the other backends.
type Recorder struct {
	backends []EventEmitter
	logger   *slog.Logger
}

// NewRecorder creates a recorder that forwards events to the given backends.
// If logger is nil, slog.Default() is used for error reporting.
func NewRecorder(logger *slog.Logger, backends ...EventEmitter) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		backends: backends,
		logger:   logger,
	}
}

// Record writes the event to all backends. Errors are logged but do not
// propagate; audit failures must not block verification.
func (r *Recorder) Record(ev Event) {
	if r == nil {
		return
	}
	for _, b := range r.backends {
		if err := b.Emit(ev); err != nil {
			r.logger.Error("audit emit failed", "event", string(ev.Type), "error", err)
		}
	}
}

// LogEmitter writes events to a structured logger. This is the default
// backend when no syslog daemon is configured.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit logs the event at a level derived from its severity.
func (l *LogEmitter) Emit(ev Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"host_id", ev.HostID}
	for k, v := range ev.Details {
		attrs = append(attrs, k, v)
	}

	switch ev.Severity {
	case SeverityWarning:
		logger.Warn(string(ev.Type), attrs...)
	default:
		logger.Info(string(ev.Type), attrs...)
	}
	return nil
}
