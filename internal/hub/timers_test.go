package hub

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The manager's contract assumes an external mutex; these tests provide one
// so the wake callback and the test body never touch the table concurrently.
type lockedTimers struct {
	mu sync.Mutex
	tm *timerManager
}

func newLockedTimers(wake func()) *lockedTimers {
	lt := &lockedTimers{}
	lt.tm = newTimerManager(wake)
	return lt
}

func (lt *lockedTimers) with(fn func(*timerManager)) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	fn(lt.tm)
}

func TestAlarmFiresForEarliestDeadlineOnly(t *testing.T) {
	var wakes atomic.Int32
	lt := newLockedTimers(func() { wakes.Add(1) })

	lt.with(func(tm *timerManager) {
		tm.arm("c1", kindAdmission, time.Now().Add(30*time.Millisecond))
		tm.arm("c2", kindAdmission, time.Now().Add(time.Hour))
	})

	require.Eventually(t, func() bool { return wakes.Load() >= 1 },
		2*time.Second, 5*time.Millisecond)

	lt.with(func(tm *timerManager) {
		fired := tm.due(time.Now())
		require.Len(t, fired, 1)
		assert.Equal(t, "c1", fired[0].connID)

		// The far deadline is untouched and still pending.
		_, ok := tm.pending("c2", kindAdmission)
		assert.True(t, ok)
	})
}

func TestCancelAfterFireIsNoOp(t *testing.T) {
	var wakes atomic.Int32
	lt := newLockedTimers(func() { wakes.Add(1) })

	lt.with(func(tm *timerManager) {
		tm.arm("c1", kindIdle, time.Now().Add(10*time.Millisecond))
	})
	require.Eventually(t, func() bool { return wakes.Load() >= 1 },
		2*time.Second, 5*time.Millisecond)

	lt.with(func(tm *timerManager) {
		require.Len(t, tm.due(time.Now()), 1)
		assert.False(t, tm.cancel("c1", kindIdle), "cancelling a fired deadline is silent")
	})
}

func TestRearmSupersedesPendingDeadline(t *testing.T) {
	lt := newLockedTimers(func() {})

	now := time.Now()
	lt.with(func(tm *timerManager) {
		tm.arm("c1", kindIdle, now.Add(-time.Millisecond)) // already due
		tm.arm("c1", kindIdle, now.Add(time.Hour))         // extended before processing

		// A wake racing the extension finds nothing due: the stale deadline
		// was replaced, so it must not close the connection.
		assert.Empty(t, tm.due(time.Now()))

		at, ok := tm.pending("c1", kindIdle)
		require.True(t, ok)
		assert.Equal(t, now.Add(time.Hour), at)
	})
}

func TestAtMostOneDeadlinePerKind(t *testing.T) {
	lt := newLockedTimers(func() {})

	lt.with(func(tm *timerManager) {
		tm.arm("c1", kindIdle, time.Now().Add(time.Minute))
		tm.arm("c1", kindIdle, time.Now().Add(2*time.Minute))
		tm.arm("c1", kindAdmission, time.Now().Add(time.Minute))

		assert.Len(t, tm.deadlines["c1"], 2, "one per kind")
	})
}

func TestCancelAllClearsEveryKind(t *testing.T) {
	lt := newLockedTimers(func() {})

	lt.with(func(tm *timerManager) {
		tm.arm("c1", kindAdmission, time.Now().Add(time.Minute))
		tm.arm("c1", kindIdle, time.Now().Add(time.Minute))

		kinds := tm.cancelAll("c1")
		assert.ElementsMatch(t, []deadlineKind{kindAdmission, kindIdle}, kinds)

		_, ok := tm.earliest()
		assert.False(t, ok)
		assert.Nil(t, tm.alarm)
	})
}

func TestLoadReArmsFromAbsoluteTimestamps(t *testing.T) {
	var wakes atomic.Int32
	lt := newLockedTimers(func() { wakes.Add(1) })

	past := time.Now().Add(-time.Minute)
	lt.with(func(tm *timerManager) {
		tm.load([]firedDeadline{
			{connID: "c1", kind: kindIdle, at: past},
			{connID: "c2", kind: kindAdmission, at: time.Now().Add(time.Hour)},
		})
	})

	// A deadline that elapsed while suspended fires immediately on resume.
	require.Eventually(t, func() bool { return wakes.Load() >= 1 },
		2*time.Second, 5*time.Millisecond)

	lt.with(func(tm *timerManager) {
		fired := tm.due(time.Now())
		require.Len(t, fired, 1)
		assert.Equal(t, "c1", fired[0].connID)
		assert.Equal(t, past, fired[0].at)
	})
}
