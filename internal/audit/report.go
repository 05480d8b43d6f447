package audit

import (
	"context"
	"sort"
	"time"

	"trustcore/internal/audit/domain"
)

// TopN is the length of the top subject and IP lists in a report.
const TopN = 10

// Report aggregates the events and alerts of a time window.
type Report struct {
	GeneratedAt      time.Time                `json:"generatedAt"`
	Period           Period                   `json:"period"`
	Summary          Summary                  `json:"summary"`
	EventsByType     map[domain.EventType]int `json:"eventsByType"`
	EventsBySeverity map[domain.Severity]int  `json:"eventsBySeverity"`
	TopSubjects      []Count                  `json:"topUsers"`
	TopIPAddresses   []Count                  `json:"topIPAddresses"`
	Alerts           []*domain.Alert          `json:"alerts"`
}

// Period is the inclusive report window.
type Period struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// Summary holds the headline counts of a report.
type Summary struct {
	TotalEvents      int                     `json:"totalEvents"`
	TotalAlerts      int                     `json:"totalAlerts"`
	CriticalAlerts   int                     `json:"criticalAlerts"`
	HighAlerts       int                     `json:"highAlerts"`
	AlertsBySeverity map[domain.Severity]int `json:"alertsBySeverity"`
}

// Count is one row of a top-N list.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// GenerateSecurityReport aggregates the events and alerts timestamped within
// [start, end]. Top lists are ordered by count; equal counts keep the order in
// which the key was first seen.
func (e *Engine) GenerateSecurityReport(ctx context.Context, start, end time.Time) (*Report, error) {
	events, err := e.events.List(ctx, domain.EventFilter{Since: start, Until: end})
	if err != nil {
		return nil, err
	}
	alerts, err := e.alerts.List(ctx, domain.AlertFilter{Since: start, Until: end})
	if err != nil {
		return nil, err
	}
	r := &Report{
		GeneratedAt:      e.now(),
		Period:           Period{Start: start, End: end},
		EventsByType:     make(map[domain.EventType]int),
		EventsBySeverity: make(map[domain.Severity]int),
		Alerts:           alerts,
		Summary: Summary{
			TotalEvents:      len(events),
			TotalAlerts:      len(alerts),
			AlertsBySeverity: make(map[domain.Severity]int),
		},
	}
	if r.Alerts == nil {
		r.Alerts = []*domain.Alert{}
	}
	for _, a := range alerts {
		r.Summary.AlertsBySeverity[a.Severity]++
	}
	r.Summary.CriticalAlerts = r.Summary.AlertsBySeverity[domain.SeverityCritical]
	r.Summary.HighAlerts = r.Summary.AlertsBySeverity[domain.SeverityHigh]

	subjects, ips := newCounter(), newCounter()
	// events are newest first; walk oldest first so first-seen order is chronological.
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		r.EventsByType[ev.Type]++
		r.EventsBySeverity[ev.Severity]++
		subjects.add(ev.Subject)
		ips.add(ev.IPAddress)
	}
	r.TopSubjects = subjects.top(TopN)
	r.TopIPAddresses = ips.top(TopN)
	return r, nil
}

type counter struct {
	order []string
	n     map[string]int
}

func newCounter() *counter { return &counter{n: make(map[string]int)} }

func (c *counter) add(k string) {
	if _, ok := c.n[k]; !ok {
		c.order = append(c.order, k)
	}
	c.n[k]++
}

func (c *counter) top(limit int) []Count {
	out := make([]Count, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, Count{Key: k, Count: c.n[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
