package audit

import (
	"sync"
	"time"

	"trustcore/internal/audit/domain"
)

// Thresholds configure the detector.
type Thresholds struct {
	FailedLoginAttempts int
	FailedLoginWindow   time.Duration
	RateLimitCalls      int // alert when a window holds more than this
	RateLimitWindow     time.Duration
	LargeDataSize       int64 // alert when a single read exceeds this many bytes
}

// DefaultThresholds returns the production detector settings.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FailedLoginAttempts: 5,
		FailedLoginWindow:   15 * time.Minute,
		RateLimitCalls:      100,
		RateLimitWindow:     time.Minute,
		LargeDataSize:       1_000_000,
	}
}

// Finding is an alert the detector wants raised.
type Finding struct {
	Type      domain.AlertType
	Subject   string
	IPAddress string
	Details   map[string]any
}

type loginKey struct {
	subject string
	ip      string
}

// Detector keeps per-key sliding windows of event timestamps. Every check
// appends, prunes and tests the window under one lock.
type Detector struct {
	th Thresholds

	mu     sync.Mutex
	failed map[loginKey][]time.Time
	calls  map[string][]time.Time
}

// NewDetector returns a Detector with the given thresholds.
func NewDetector(th Thresholds) *Detector {
	return &Detector{
		th:     th,
		failed: make(map[loginKey][]time.Time),
		calls:  make(map[string][]time.Time),
	}
}

// Check feeds one event to the detector and returns the findings it triggers.
func (d *Detector) Check(e *domain.Event, ectx domain.EventContext) []Finding {
	switch e.Type {
	case domain.EventFailedLogin:
		k := loginKey{e.Subject, e.IPAddress}
		d.mu.Lock()
		w := prune(append(d.failed[k], e.Timestamp), e.Timestamp, d.th.FailedLoginWindow)
		d.failed[k] = w
		n := len(w)
		d.mu.Unlock()
		if n >= d.th.FailedLoginAttempts {
			return []Finding{{
				Type:      domain.AlertBruteForce,
				Subject:   e.Subject,
				IPAddress: e.IPAddress,
				Details:   map[string]any{"userId": e.Subject, "ipAddress": e.IPAddress, "attempts": n},
			}}
		}
	case domain.EventAPICall:
		d.mu.Lock()
		w := prune(append(d.calls[e.IPAddress], e.Timestamp), e.Timestamp, d.th.RateLimitWindow)
		d.calls[e.IPAddress] = w
		n := len(w)
		d.mu.Unlock()
		if n > d.th.RateLimitCalls {
			return []Finding{{
				Type:      domain.AlertRateLimitAbuse,
				IPAddress: e.IPAddress,
				Details:   map[string]any{"ipAddress": e.IPAddress, "callCount": n},
			}}
		}
	case domain.EventDataAccess:
		var size int64
		switch da := ectx.(type) {
		case domain.DataAccessContext:
			size = da.DataSize
		case *domain.DataAccessContext:
			if da != nil {
				size = da.DataSize
			}
		}
		if size > d.th.LargeDataSize {
			return []Finding{{
				Type:    domain.AlertLargeDataAccess,
				Subject: e.Subject,
				Details: map[string]any{"userId": e.Subject, "dataSize": size},
			}}
		}
	}
	return nil
}

// Prune drops every window entry older than its window at now and removes
// keys left empty. It returns the number of keys removed.
func (d *Detector) Prune(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for k, w := range d.failed {
		if w = prune(w, now, d.th.FailedLoginWindow); len(w) == 0 {
			delete(d.failed, k)
			removed++
		} else {
			d.failed[k] = w
		}
	}
	for k, w := range d.calls {
		if w = prune(w, now, d.th.RateLimitWindow); len(w) == 0 {
			delete(d.calls, k)
			removed++
		} else {
			d.calls[k] = w
		}
	}
	return removed
}

// Keys returns the number of tracked window keys.
func (d *Detector) Keys() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.failed) + len(d.calls)
}

// prune keeps the timestamps strictly younger than window at now.
func prune(w []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := w[:0:0]
	for _, t := range w {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	return kept
}
