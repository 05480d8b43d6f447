package domain

import "time"

// AlertType names a detected pattern.
type AlertType string

const (
	AlertBruteForce         AlertType = "BRUTE_FORCE_ATTEMPT"
	AlertRateLimitAbuse     AlertType = "RATE_LIMIT_ABUSE"
	AlertLargeDataAccess    AlertType = "LARGE_DATA_ACCESS"
	AlertUnauthorizedAccess AlertType = "UNAUTHORIZED_ACCESS"
	AlertDataBreach         AlertType = "DATA_BREACH"
)

var alertSeverity = map[AlertType]Severity{
	AlertBruteForce:         SeverityCritical,
	AlertRateLimitAbuse:     SeverityHigh,
	AlertLargeDataAccess:    SeverityHigh,
	AlertUnauthorizedAccess: SeverityCritical,
	AlertDataBreach:         SeverityCritical,
}

// Severity returns the fixed severity of t. Unclassified types are medium.
func (t AlertType) Severity() Severity {
	if s, ok := alertSeverity[t]; ok {
		return s
	}
	return SeverityMedium
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const AlertActive AlertStatus = "active"

// Alert is raised by the detector. Acknowledged only moves from false to true.
type Alert struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Type           AlertType      `json:"type"`
	Severity       Severity       `json:"severity"`
	Subject        string         `json:"userId,omitempty"`
	IPAddress      string         `json:"ipAddress,omitempty"`
	Details        map[string]any `json:"details"`
	Status         AlertStatus    `json:"status"`
	Acknowledged   bool           `json:"acknowledged"`
	AcknowledgedBy string         `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt,omitempty"`
}

// AlertFilter selects alerts. Zero fields match everything; set fields are
// combined with AND. Since and Until are inclusive.
type AlertFilter struct {
	Type      AlertType
	Severity  Severity
	Status    AlertStatus
	Subject   string
	IPAddress string
	Since     time.Time
	Until     time.Time
}

// Matches reports whether a satisfies every set field of f.
func (f AlertFilter) Matches(a *Alert) bool {
	switch {
	case f.Type != "" && a.Type != f.Type:
		return false
	case f.Severity != "" && a.Severity != f.Severity:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.Subject != "" && a.Subject != f.Subject:
		return false
	case f.IPAddress != "" && a.IPAddress != f.IPAddress:
		return false
	case !f.Since.IsZero() && a.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && a.Timestamp.After(f.Until):
		return false
	}
	return true
}
