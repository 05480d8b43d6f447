package scheduler

import (
	"context"
	"time"
)

// TaskFunc is the unit of work. A returned error or panic is logged and recorded
// in the task status; it never stops the task's schedule or any other task.
type TaskFunc func(ctx context.Context) error

// TaskStatus is a snapshot of a registered task.
type TaskStatus struct {
	Name       string        `json:"name,omitempty"`
	Interval   time.Duration `json:"interval"`
	Running    bool          `json:"running,omitempty"`
	Runs       int           `json:"runs"`
	Failures   int           `json:"failures"`
	LastRun    time.Time     `json:"last_run"`
	LastResult string        `json:"last_result,omitempty"`
}
