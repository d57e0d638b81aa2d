package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-site/pkg/logger"
)

func TestOnceSchedule_Next(t *testing.T) {
	at := time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC)

	t.Run("future time", func(t *testing.T) {
		s := &onceSchedule{at: at}
		assert.Equal(t, at, s.Next(at.Add(-time.Hour)))
		assert.Equal(t, at, s.Next(at.Add(-time.Minute)), "asked again before firing")
		assert.True(t, s.Next(at).IsZero(), "after firing")
	})

	t.Run("past time fires once", func(t *testing.T) {
		s := &onceSchedule{at: at}
		assert.Equal(t, at, s.Next(at.Add(time.Hour)))
		assert.True(t, s.Next(at.Add(time.Hour)).IsZero())
	})
}

func newStartedRunner(t *testing.T) *CronJobRunner {
	t.Helper()

	r := NewCronJobRunner(logger.NewNop())
	r.Start()
	t.Cleanup(r.Stop)
	return r
}

func TestCronJobRunner_FiresOnce(t *testing.T) {
	r := newStartedRunner(t)

	var fired atomic.Int32
	require.NoError(t, r.Schedule("close-item-1", time.Now().Add(50*time.Millisecond), func() {
		fired.Add(1)
	}))

	_, pending := r.Pending("close-item-1")
	assert.True(t, pending)

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestCronJobRunner_PastTimeFiresImmediately(t *testing.T) {
	r := newStartedRunner(t)

	var fired atomic.Int32
	require.NoError(t, r.Schedule("close-item-1", time.Now().Add(-time.Hour), func() {
		fired.Add(1)
	}))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestCronJobRunner_ReplaceKeepsOnlyLatest(t *testing.T) {
	r := newStartedRunner(t)

	var first, second atomic.Int32
	require.NoError(t, r.Schedule("close-item-1", time.Now().Add(50*time.Millisecond), func() {
		first.Add(1)
	}))
	runAt := time.Now().Add(150 * time.Millisecond)
	require.NoError(t, r.Schedule("close-item-1", runAt, func() {
		second.Add(1)
	}))

	assert.Equal(t, 1, r.Len())
	at, ok := r.Pending("close-item-1")
	require.True(t, ok)
	assert.Equal(t, runAt, at)

	require.Eventually(t, func() bool { return second.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestCronJobRunner_Cancel(t *testing.T) {
	r := newStartedRunner(t)

	var fired atomic.Int32
	require.NoError(t, r.Schedule("close-item-1", time.Now().Add(100*time.Millisecond), func() {
		fired.Add(1)
	}))

	assert.True(t, r.Cancel("close-item-1"))
	assert.False(t, r.Cancel("close-item-1"))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, fired.Load())
	assert.Zero(t, r.Len())
}

func TestCronJobRunner_ScheduledBeforeStart(t *testing.T) {
	r := NewCronJobRunner(logger.NewNop())

	var fired atomic.Int32
	require.NoError(t, r.Schedule("close-item-1", time.Now().Add(-time.Second), func() {
		fired.Add(1)
	}))

	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestCronJobRunner_RecoversFromPanics(t *testing.T) {
	r := newStartedRunner(t)

	var fired atomic.Int32
	require.NoError(t, r.Schedule("boom", time.Now(), func() { panic("boom") }))
	require.NoError(t, r.Schedule("after", time.Now().Add(50*time.Millisecond), func() {
		fired.Add(1)
	}))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
}
