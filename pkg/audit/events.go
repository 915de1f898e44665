package audit

import (
	"strconv"
	"time"
)

// Severity represents syslog severity levels per RFC 5424.
type Severity int

const (
	SeverityWarning Severity = 4
	SeverityNotice  Severity = 5
	SeverityInfo    Severity = 6
)

// String returns the human-readable name for a severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityNotice:
		return "NOTICE"
	case SeverityWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// EventType identifies a verification audit event.
type EventType string

const (
	EventVerifyCompleted EventType = "verify.completed"
	EventVerifyFailed    EventType = "verify.failed"
	EventTrustChanged    EventType = "trust.changed"
	EventHostUnreachable EventType = "host.unreachable"
	EventReportGenerated EventType = "report.generated"
	EventFlavorImported  EventType = "flavor.imported"
)

// AllEventTypes returns every defined event type for iteration and validation.
func AllEventTypes() []EventType {
	return []EventType{
		EventVerifyCompleted,
		EventVerifyFailed,
		EventTrustChanged,
		EventHostUnreachable,
		EventReportGenerated,
		EventFlavorImported,
	}
}

var severityMap = map[EventType]Severity{
	EventVerifyCompleted: SeverityInfo,
	EventVerifyFailed:    SeverityWarning,
	EventTrustChanged:    SeverityNotice,
	EventHostUnreachable: SeverityWarning,
	EventReportGenerated: SeverityInfo,
	EventFlavorImported:  SeverityNotice,
}

// SeverityFor returns the syslog severity for a given event type.
// Unknown event types return SeverityWarning (fail-secure: treat unknowns as concerning).
func SeverityFor(et EventType) Severity {
	if s, ok := severityMap[et]; ok {
		return s
	}
	return SeverityWarning
}

// Event represents a verification-relevant audit event with structured fields.
type Event struct {
	Type      EventType
	Severity  Severity
	Timestamp time.Time
	HostID    string
	Details   map[string]string // Event-specific fields
}

// NewVerifyCompleted creates a verify.completed event for a finished queue entry.
func NewVerifyCompleted(hostID string, trusted bool, groups int) Event {
	return Event{
		Type:      EventVerifyCompleted,
		Severity:  SeverityInfo,
		Timestamp: time.Now(),
		HostID:    hostID,
		Details: map[string]string{
			"trusted": strconv.FormatBool(trusted),
			"groups":  strconv.Itoa(groups),
		},
	}
}

// NewVerifyFailed creates a verify.failed event for a queue entry that errored.
func NewVerifyFailed(hostID, reason string) Event {
	return Event{
		Type:      EventVerifyFailed,
		Severity:  SeverityWarning,
		Timestamp: time.Now(),
		HostID:    hostID,
		Details: map[string]string{
			"reason": reason,
		},
	}
}

// NewTrustChanged creates a trust.changed event when a host's overall trust
// decision flips.
func NewTrustChanged(hostID string, trusted bool) Event {
	return Event{
		Type:      EventTrustChanged,
		Severity:  SeverityNotice,
		Timestamp: time.Now(),
		HostID:    hostID,
		Details: map[string]string{
			"trusted": strconv.FormatBool(trusted),
		},
	}
}

// NewHostUnreachable creates a host.unreachable event recording the
// classified connection state.
func NewHostUnreachable(hostID, state, reason string) Event {
	return Event{
		Type:      EventHostUnreachable,
		Severity:  SeverityWarning,
		Timestamp: time.Now(),
		HostID:    hostID,
		Details: map[string]string{
			"state":  state,
			"reason": reason,
		},
	}
}

// NewReportGenerated creates a report.generated event for a persisted signed report.
func NewReportGenerated(hostID, reportID string, expiresAt time.Time) Event {
	return Event{
		Type:      EventReportGenerated,
		Severity:  SeverityInfo,
		Timestamp: time.Now(),
		HostID:    hostID,
		Details: map[string]string{
			"report_id":  reportID,
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		},
	}
}

// NewFlavorImported creates a flavor.imported event for baseline ingestion.
func NewFlavorImported(flavorID, category, source string) Event {
	return Event{
		Type:      EventFlavorImported,
		Severity:  SeverityNotice,
		Timestamp: time.Now(),
		Details: map[string]string{
			"flavor_id": flavorID,
			"category":  category,
			"source":    source,
		},
	}
}
