package timer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/pomodash/internal/clock"
	pomoerrors "github.com/sadopc/pomodash/internal/errors"
)

type countingLock struct {
	acquired, released int
	failAcquire        bool
}

func (l *countingLock) Acquire() error {
	if l.failAcquire {
		return errors.New("no inhibitor")
	}
	l.acquired++
	return nil
}

func (l *countingLock) Release() error {
	l.released++
	return nil
}

var epoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newMachine(t *testing.T, opts ...Option) (*Machine, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	opts = append([]Option{WithClock(clk)}, opts...)
	return New(Default(1500), opts...), clk
}

func TestRemaining(t *testing.T) {
	end := epoch.Add(10 * time.Second)
	assert.Equal(t, 10, Remaining(end, epoch))
	assert.Equal(t, 10, Remaining(end, epoch.Add(400*time.Millisecond)))
	assert.Equal(t, 9, Remaining(end, epoch.Add(600*time.Millisecond)))
	assert.Equal(t, 0, Remaining(end, end))
	assert.Equal(t, 0, Remaining(end, end.Add(time.Hour)))
}

func TestRemaining_MonotonicNonIncreasing(t *testing.T) {
	end := epoch.Add(90 * time.Second)
	prev := Remaining(end, epoch)
	for d := time.Duration(0); d <= 100*time.Second; d += 137 * time.Millisecond {
		cur := Remaining(end, epoch.Add(d))
		require.LessOrEqual(t, cur, prev)
		require.GreaterOrEqual(t, cur, 0)
		prev = cur
	}
}

func TestDefaultIsPristine(t *testing.T) {
	s := Default(1500)
	assert.True(t, s.Pristine())
	assert.Equal(t, Focus, s.Mode)
	assert.Equal(t, 1, s.CurrentSession)
}

func TestStart_SetsDeadline(t *testing.T) {
	m, _ := newMachine(t)
	require.NoError(t, m.Start())

	assert.True(t, m.Running())
	require.NotNil(t, m.PhaseEnd())
	assert.Equal(t, epoch.Add(1500*time.Second), *m.PhaseEnd())
	assert.False(t, m.Pristine())
}

func TestStart_AlreadyRunning(t *testing.T) {
	m, _ := newMachine(t)
	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.Start(), pomoerrors.ErrAlreadyRunning)
}

func TestTick_DerivesFromDeadline(t *testing.T) {
	m, clk := newMachine(t)
	require.NoError(t, m.Start())

	// Missed ticks do not matter: one late tick lands on the right value.
	clk.Advance(10*time.Minute + 300*time.Millisecond)
	assert.False(t, m.Tick())
	assert.Equal(t, 900, m.State().TimeRemaining)
}

func TestTick_FiresOncePerExpiry(t *testing.T) {
	m, clk := newMachine(t)
	require.NoError(t, m.Start())

	clk.Advance(25 * time.Minute)
	assert.True(t, m.Tick())
	assert.Equal(t, 0, m.State().TimeRemaining)

	clk.Advance(time.Second)
	assert.False(t, m.Tick())
	assert.False(t, m.Tick())
}

func TestTick_IdleDoesNothing(t *testing.T) {
	m, clk := newMachine(t)
	clk.Advance(time.Hour)
	assert.False(t, m.Tick())
	assert.Equal(t, 1500, m.State().TimeRemaining)
}

func TestStop_FreezesRemaining(t *testing.T) {
	m, clk := newMachine(t)
	require.NoError(t, m.Start())
	clk.Advance(100 * time.Second)
	m.Tick()
	m.Stop()

	assert.False(t, m.Running())
	assert.Nil(t, m.PhaseEnd())
	assert.Equal(t, 1400, m.State().TimeRemaining)

	clk.Advance(time.Hour)
	m.Tick()
	assert.Equal(t, 1400, m.State().TimeRemaining)

	// Resume continues from the frozen value.
	require.NoError(t, m.Start())
	assert.Equal(t, clk.Now().Add(1400*time.Second), *m.PhaseEnd())
}

func TestReset(t *testing.T) {
	m, clk := newMachine(t)
	m.BeginPhase(Break, 3, 300)
	clk.Advance(10 * time.Second)

	m.Reset(3000)
	s := m.State()
	assert.Equal(t, Default(3000), s)
	assert.Nil(t, m.PhaseEnd())
}

func TestBeginPhase_StartsImmediately(t *testing.T) {
	m, clk := newMachine(t)
	m.BeginPhase(Break, 2, 300)

	s := m.State()
	assert.True(t, s.IsRunning)
	assert.Equal(t, Break, s.Mode)
	assert.Equal(t, 2, s.CurrentSession)
	assert.Equal(t, 300, s.SessionTotalTime)
	assert.Equal(t, clk.Now().Add(300*time.Second), *m.PhaseEnd())
}

func TestBeginPhase_RearmsExpiry(t *testing.T) {
	m, clk := newMachine(t)
	require.NoError(t, m.Start())
	clk.Advance(25 * time.Minute)
	require.True(t, m.Tick())
	m.Stop()

	m.BeginPhase(Break, 1, 60)
	clk.Advance(time.Minute)
	assert.True(t, m.Tick())
}

func TestSetDuration_OnlyWhilePristine(t *testing.T) {
	m, clk := newMachine(t)
	assert.True(t, m.SetDuration(3000))
	assert.Equal(t, 3000, m.State().SessionTotalTime)
	assert.Equal(t, 3000, m.State().TimeRemaining)

	require.NoError(t, m.Start())
	clk.Advance(5 * time.Second)
	m.Stop()
	assert.False(t, m.SetDuration(600))
	assert.Equal(t, 3000, m.State().SessionTotalTime)
}

func TestLoad_RunningRecomputes(t *testing.T) {
	m, clk := newMachine(t)
	end := clk.Now().Add(90 * time.Second)
	m.Load(State{Mode: Focus, CurrentSession: 2, TimeRemaining: 1500, SessionTotalTime: 1500, IsRunning: true}, &end)

	assert.True(t, m.Running())
	assert.Equal(t, 90, m.State().TimeRemaining)
	assert.Equal(t, 2, m.State().CurrentSession)
}

func TestLoad_PastDeadlineExpiresOnNextTick(t *testing.T) {
	m, clk := newMachine(t)
	end := clk.Now().Add(-time.Minute)
	m.Load(State{Mode: Focus, CurrentSession: 1, TimeRemaining: 30, SessionTotalTime: 1500, IsRunning: true}, &end)

	assert.Equal(t, 0, m.State().TimeRemaining)
	assert.True(t, m.Tick())
}

func TestLoad_PausedKeepsRemaining(t *testing.T) {
	m, _ := newMachine(t)
	m.Load(State{Mode: Break, CurrentSession: 3, TimeRemaining: 42, SessionTotalTime: 300}, nil)
	assert.False(t, m.Running())
	assert.Equal(t, 42, m.State().TimeRemaining)
}

func TestWakeLock_Lifecycle(t *testing.T) {
	lock := &countingLock{}
	m, _ := newMachine(t, WithWakeLock(lock))

	require.NoError(t, m.Start())
	assert.Equal(t, 1, lock.acquired)
	m.Stop()
	assert.Equal(t, 1, lock.released)

	m.BeginPhase(Break, 1, 60)
	m.Close()
	assert.Equal(t, 2, lock.acquired)
	assert.Equal(t, 2, lock.released)

	// Double release is not forwarded.
	m.Close()
	m.Stop()
	assert.Equal(t, 2, lock.released)
}

func TestWakeLock_FailureIsNonFatal(t *testing.T) {
	lock := &countingLock{failAcquire: true}
	m, _ := newMachine(t, WithWakeLock(lock))

	require.NoError(t, m.Start())
	assert.True(t, m.Running())
	m.Stop()
	assert.Equal(t, 0, lock.released)
}

func TestObserver_SeesEveryMutation(t *testing.T) {
	var seen []State
	var ends []*time.Time
	m, clk := newMachine(t, WithObserver(func(s State, end *time.Time) {
		seen = append(seen, s)
		ends = append(ends, end)
	}))

	require.NoError(t, m.Start())
	m.Tick() // no expiry, no notification
	clk.Advance(25 * time.Minute)
	m.Tick()
	m.Stop()

	require.Len(t, seen, 3)
	assert.True(t, seen[0].IsRunning)
	assert.NotNil(t, ends[0])
	assert.Equal(t, 0, seen[1].TimeRemaining)
	assert.False(t, seen[2].IsRunning)
	assert.Nil(t, ends[2])
}
