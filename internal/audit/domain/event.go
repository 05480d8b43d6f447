package domain

import "time"

// Severity ranks events and alerts.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Unknown is recorded for a missing subject, IP or user agent.
const Unknown = "unknown"

// EventType names a security event.
type EventType string

const (
	EventUnauthorizedAccess  EventType = "UNAUTHORIZED_ACCESS"
	EventPrivilegeEscalation EventType = "PRIVILEGE_ESCALATION"
	EventDataBreach          EventType = "DATA_BREACH"
	EventEncryptionFailure   EventType = "ENCRYPTION_FAILURE"

	EventFailedLogin       EventType = "FAILED_LOGIN"
	EventInvalidToken      EventType = "INVALID_TOKEN"
	EventPermissionDenied  EventType = "PERMISSION_DENIED"
	EventRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"

	EventSuspiciousActivity EventType = "SUSPICIOUS_ACTIVITY"
	EventConfigChange       EventType = "CONFIG_CHANGE"
	EventAPIError           EventType = "API_ERROR"

	EventSuccessfulLogin EventType = "SUCCESSFUL_LOGIN"
	EventDataAccess      EventType = "DATA_ACCESS"
	EventAPICall         EventType = "API_CALL"

	EventLogout        EventType = "LOGOUT"
	EventSessionRevoke EventType = "SESSION_REVOKED"
)

var eventSeverity = map[EventType]Severity{
	EventUnauthorizedAccess:  SeverityCritical,
	EventPrivilegeEscalation: SeverityCritical,
	EventDataBreach:          SeverityCritical,
	EventEncryptionFailure:   SeverityCritical,

	EventFailedLogin:       SeverityHigh,
	EventInvalidToken:      SeverityHigh,
	EventPermissionDenied:  SeverityHigh,
	EventRateLimitExceeded: SeverityHigh,

	EventSuspiciousActivity: SeverityMedium,
	EventConfigChange:       SeverityMedium,
	EventAPIError:           SeverityMedium,

	EventSuccessfulLogin: SeverityLow,
	EventDataAccess:      SeverityLow,
	EventAPICall:         SeverityLow,
}

// Severity returns the fixed severity of t. Unclassified types are medium.
func (t EventType) Severity() Severity {
	if s, ok := eventSeverity[t]; ok {
		return s
	}
	return SeverityMedium
}

// Event is one stored audit event. Details are masked before the event is built.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Severity  Severity       `json:"severity"`
	Subject   string         `json:"userId"`
	IPAddress string         `json:"ipAddress"`
	UserAgent string         `json:"userAgent"`
	Details   map[string]any `json:"details"`
}

// EventFilter selects events. Zero fields match everything; set fields are
// combined with AND. Since and Until are inclusive.
type EventFilter struct {
	Type      EventType
	Severity  Severity
	Subject   string
	IPAddress string
	Since     time.Time
	Until     time.Time
}

// Matches reports whether e satisfies every set field of f.
func (f EventFilter) Matches(e *Event) bool {
	switch {
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.Severity != "" && e.Severity != f.Severity:
		return false
	case f.Subject != "" && e.Subject != f.Subject:
		return false
	case f.IPAddress != "" && e.IPAddress != f.IPAddress:
		return false
	case !f.Since.IsZero() && e.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && e.Timestamp.After(f.Until):
		return false
	}
	return true
}
