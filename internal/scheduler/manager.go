// Package scheduler runs named periodic tasks, each on its own ticker, with
// failures isolated per task.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTaskTimeout bounds a single run of a task.
const DefaultTaskTimeout = 5 * time.Minute

// Manager owns a set of periodic tasks.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*task
	timeout time.Duration
	wg      sync.WaitGroup
	closed  bool
}

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	stop     chan struct{}

	mu         sync.Mutex
	running    bool
	runs       int
	failures   int
	lastRun    time.Time
	lastResult string
}

// NewManager returns an empty Manager. A zero timeout selects DefaultTaskTimeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Manager{tasks: make(map[string]*task), timeout: timeout}
}

// Register adds a task that runs every interval. Registering an existing name
// replaces the previous task and stops its ticker. A non-positive interval
// registers a task that only runs via Trigger or RunNow.
func (m *Manager) Register(name string, interval time.Duration, fn TaskFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("scheduler: closed")
	}
	if old, ok := m.tasks[name]; ok {
		close(old.stop)
	}
	t := &task{name: name, interval: interval, fn: fn, stop: make(chan struct{})}
	m.tasks[name] = t
	if interval > 0 {
		m.wg.Add(1)
		go m.loop(t)
	}
	return nil
}

// Cancel stops and removes the named task. It reports whether the task existed.
func (m *Manager) Cancel(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[name]
	if !ok {
		return false
	}
	close(t.stop)
	delete(m.tasks, name)
	return true
}

// Trigger runs the named task once in the background.
func (m *Manager) Trigger(name string) error {
	t, err := m.get(name)
	if err != nil {
		return err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(t)
	}()
	return nil
}

// RunNow runs the named task synchronously and returns its error.
func (m *Manager) RunNow(name string) error {
	t, err := m.get(name)
	if err != nil {
		return err
	}
	return m.run(t)
}

// ListStatus returns a snapshot of all tasks, sorted by name.
func (m *Manager) ListStatus() []TaskStatus {
	m.mu.Lock()
	list := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		list = append(list, t)
	}
	m.mu.Unlock()
	out := make([]TaskStatus, 0, len(list))
	for _, t := range list {
		t.mu.Lock()
		out = append(out, TaskStatus{
			Name:       t.name,
			Interval:   t.interval,
			Running:    t.running,
			Runs:       t.runs,
			Failures:   t.failures,
			LastRun:    t.lastRun,
			LastResult: t.lastResult,
		})
		t.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stop cancels every task and waits for in-flight runs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		for name, t := range m.tasks {
			close(t.stop)
			delete(m.tasks, name)
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) get(name string) (*task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[name]
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	return t, nil
}

func (m *Manager) loop(t *task) {
	defer m.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			_ = m.run(t)
		}
	}
}

// run executes one pass of t. Overlapping runs of the same task are skipped.
func (m *Manager) run(t *task) (err error) {
	l := log.With().Str("task", t.name).Logger()

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		l.Warn().Msg("task is already running, skipping execution")
		return nil
	}
	t.running = true
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		duration := time.Since(start)
		t.mu.Lock()
		t.running = false
		t.runs++
		t.lastRun = start
		if err != nil {
			t.failures++
			t.lastResult = "failed: " + err.Error()
		} else {
			t.lastResult = "success"
		}
		t.mu.Unlock()
		if err != nil {
			l.Error().Err(err).Dur("duration", duration).Msg("task failed")
		} else {
			l.Debug().Dur("duration", duration).Msg("task completed")
		}
	}()
	return t.fn(ctx)
}
