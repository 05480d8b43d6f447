package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManager_RunNowRecordsResult(t *testing.T) {
	m := NewManager(0)
	defer m.Stop()

	require.NoError(t, m.Register("ok", 0, func(ctx context.Context) error { return nil }))
	require.NoError(t, m.Register("fail", 0, func(ctx context.Context) error { return errors.New("boom") }))

	require.NoError(t, m.RunNow("ok"))
	require.EqualError(t, m.RunNow("fail"), "boom")

	st := m.ListStatus()
	require.Len(t, st, 2)
	require.Equal(t, "fail", st[0].Name)
	require.Equal(t, 1, st[0].Failures)
	require.Equal(t, "failed: boom", st[0].LastResult)
	require.Equal(t, "ok", st[1].Name)
	require.Equal(t, "success", st[1].LastResult)
}

func TestManager_PanicIsolated(t *testing.T) {
	m := NewManager(0)
	defer m.Stop()

	require.NoError(t, m.Register("panics", 0, func(ctx context.Context) error { panic("bad callback") }))
	var ran atomic.Bool
	require.NoError(t, m.Register("sibling", 0, func(ctx context.Context) error { ran.Store(true); return nil }))

	err := m.RunNow("panics")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad callback")
	require.NoError(t, m.RunNow("sibling"))
	require.True(t, ran.Load())
}

func TestManager_PeriodicAndCancel(t *testing.T) {
	m := NewManager(0)
	defer m.Stop()

	var failing, healthy atomic.Int32
	require.NoError(t, m.Register("failing", 5*time.Millisecond, func(ctx context.Context) error {
		failing.Add(1)
		return errors.New("always fails")
	}))
	require.NoError(t, m.Register("healthy", 5*time.Millisecond, func(ctx context.Context) error {
		healthy.Add(1)
		return nil
	}))

	require.Eventually(t, func() bool { return failing.Load() >= 3 && healthy.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.True(t, m.Cancel("healthy"))
	require.False(t, m.Cancel("healthy"))
	time.Sleep(20 * time.Millisecond)
	after := healthy.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, healthy.Load())
}

func TestManager_UnknownTask(t *testing.T) {
	m := NewManager(0)
	defer m.Stop()

	var nf TaskNotFoundError
	require.ErrorAs(t, m.RunNow("nope"), &nf)
	require.ErrorAs(t, m.Trigger("nope"), &nf)
	require.Equal(t, "task 'nope' not found", nf.Error())
}

func TestManager_RegisterAfterStop(t *testing.T) {
	m := NewManager(0)
	m.Stop()
	require.Error(t, m.Register("late", time.Second, func(ctx context.Context) error { return nil }))
}
