package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/pomodash/internal/clock"
	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/timer"
)

// memSlot is an in-process Slot.
type memSlot struct {
	data    []byte
	cleared int
	readErr error
}

func (m *memSlot) Read(context.Context) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.data == nil {
		return nil, errors.ErrSlotEmpty
	}
	return m.data, nil
}

func (m *memSlot) Write(_ context.Context, data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memSlot) Clear(context.Context) error {
	m.data = nil
	m.cleared++
	return nil
}

var epoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newStore(slot Slot) (*Store, *clock.Manual) {
	clk := clock.NewManual(epoch)
	return New(slot, WithClock(clk)), clk
}

func TestSave_PristineClearsSlot(t *testing.T) {
	slot := &memSlot{data: []byte(`{"stale":true}`)}
	s, _ := newStore(slot)

	require.NoError(t, s.Save(context.Background(), timer.Default(1500), nil))
	assert.Nil(t, slot.data)
	assert.Equal(t, 1, slot.cleared)
}

func TestSave_NonPristineAlwaysWrites(t *testing.T) {
	cases := map[string]timer.State{
		"paused mid-phase": {Mode: timer.Focus, CurrentSession: 1, TimeRemaining: 600, SessionTotalTime: 1500},
		"running":          {Mode: timer.Focus, CurrentSession: 1, TimeRemaining: 1500, SessionTotalTime: 1500, IsRunning: true},
		"expired":          {Mode: timer.Break, CurrentSession: 2, TimeRemaining: 0, SessionTotalTime: 300},
	}
	for name, st := range cases {
		t.Run(name, func(t *testing.T) {
			slot := &memSlot{}
			s, _ := newStore(slot)
			end := epoch.Add(time.Minute)
			require.NoError(t, s.Save(context.Background(), st, &end))
			assert.NotNil(t, slot.data)
		})
	}
}

func TestWireFormat(t *testing.T) {
	end := time.UnixMilli(1780000000123)
	data, err := Encode(timer.State{Mode: timer.Focus, CurrentSession: 2, TimeRemaining: 90, SessionTotalTime: 1500, IsRunning: true}, &end)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"savedAppState": {"mode":"focus","currentSession":2,"timeRemaining":90,"sessionTotalTime":1500,"isRunning":true},
		"savedPhaseEndTime": 1780000000123
	}`, string(data))

	data, err = Encode(timer.State{Mode: timer.Break, CurrentSession: 1, TimeRemaining: 10, SessionTotalTime: 300}, &end)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"savedPhaseEndTime":null`)
}

func TestRestore_Absent(t *testing.T) {
	s, _ := newStore(&memSlot{})
	res := s.Restore(context.Background(), timer.Default(1500))
	assert.False(t, res.Restored)
	assert.Equal(t, timer.Default(1500), res.State)
}

func TestRestore_CorruptIsClearedAndIgnored(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":          `{{{`,
		"bad mode":          `{"savedAppState":{"mode":"nap","currentSession":1,"timeRemaining":1,"sessionTotalTime":1},"savedPhaseEndTime":null}`,
		"zero session":      `{"savedAppState":{"mode":"focus","currentSession":0,"timeRemaining":1,"sessionTotalTime":1},"savedPhaseEndTime":null}`,
		"running no end":    `{"savedAppState":{"mode":"focus","currentSession":1,"timeRemaining":1,"sessionTotalTime":1,"isRunning":true},"savedPhaseEndTime":null}`,
		"negative duration": `{"savedAppState":{"mode":"focus","currentSession":1,"timeRemaining":-5,"sessionTotalTime":1},"savedPhaseEndTime":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			slot := &memSlot{data: []byte(raw)}
			s, _ := newStore(slot)
			res := s.Restore(context.Background(), timer.Default(1500))
			assert.False(t, res.Restored)
			assert.Equal(t, timer.Default(1500), res.State)
			assert.Nil(t, slot.data)
			assert.Equal(t, 1, slot.cleared)
		})
	}
}

func TestRestore_ReadErrorFallsBack(t *testing.T) {
	slot := &memSlot{data: []byte("x"), readErr: assert.AnError}
	s, _ := newStore(slot)
	res := s.Restore(context.Background(), timer.Default(60))
	assert.False(t, res.Restored)
	assert.Equal(t, 0, slot.cleared)
}

func TestRoundTrip_Paused(t *testing.T) {
	slot := &memSlot{}
	s, clk := newStore(slot)
	st := timer.State{Mode: timer.Focus, CurrentSession: 3, TimeRemaining: 777, SessionTotalTime: 1500}
	require.NoError(t, s.Save(context.Background(), st, nil))

	clk.Advance(3 * time.Hour)
	res := s.Restore(context.Background(), timer.Default(1500))
	require.True(t, res.Restored)
	assert.Equal(t, st, res.State)
	assert.Nil(t, res.PhaseEnd)
}

func TestRoundTrip_RunningWithinElapsed(t *testing.T) {
	slot := &memSlot{}
	s, clk := newStore(slot)
	end := clk.Now().Add(1500 * time.Second)
	st := timer.State{Mode: timer.Focus, CurrentSession: 1, TimeRemaining: 1500, SessionTotalTime: 1500, IsRunning: true}
	require.NoError(t, s.Save(context.Background(), st, &end))

	clk.Advance(100 * time.Second)
	res := s.Restore(context.Background(), timer.Default(1500))
	require.True(t, res.Restored)
	assert.True(t, res.State.IsRunning)
	assert.Equal(t, 1400, res.State.TimeRemaining)
	require.NotNil(t, res.PhaseEnd)
	assert.True(t, res.PhaseEnd.Equal(end))
}

func TestRestore_RunningPastDeadlineFloorsAtZero(t *testing.T) {
	slot := &memSlot{}
	s, clk := newStore(slot)
	end := clk.Now().Add(10 * time.Second)
	st := timer.State{Mode: timer.Break, CurrentSession: 1, TimeRemaining: 10, SessionTotalTime: 300, IsRunning: true}
	require.NoError(t, s.Save(context.Background(), st, &end))

	clk.Advance(time.Hour)
	res := s.Restore(context.Background(), timer.Default(1500))
	assert.Equal(t, 0, res.State.TimeRemaining)

	m := timer.New(timer.Default(1500), timer.WithClock(clk))
	m.Load(res.State, res.PhaseEnd)
	assert.True(t, m.Tick(), "restored overdue phase must expire on the next tick")
}

func TestObserver_FeedsSlot(t *testing.T) {
	slot := &memSlot{}
	s, clk := newStore(slot)
	m := timer.New(timer.Default(1500), timer.WithClock(clk), timer.WithObserver(s.Observer(context.Background())))

	require.NoError(t, m.Start())
	require.NotNil(t, slot.data)

	m.Reset(1500)
	assert.Nil(t, slot.data)
}

// ============================================================
// FileSlot
// ============================================================

func TestFileSlot_ReadWriteClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "timer.json")
	f := NewFileSlot(path, zerologNop())
	ctx := context.Background()

	_, err := f.Read(ctx)
	assert.ErrorIs(t, err, errors.ErrSlotEmpty)

	require.NoError(t, f.Write(ctx, []byte(`{"a":1}`)))
	data, err := f.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, f.Clear(ctx))
	require.NoError(t, f.Clear(ctx))
	_, err = f.Read(ctx)
	assert.ErrorIs(t, err, errors.ErrSlotEmpty)
}

func TestFileSlot_WatchReportsOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timer.json")
	mine := NewFileSlot(path, zerologNop())
	theirs := NewFileSlot(path, zerologNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := mine.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, mine.Write(ctx, []byte(`{"who":"me"}`)))
	require.NoError(t, theirs.Write(ctx, []byte(`{"who":"them"}`)))

	select {
	case data := <-changes:
		assert.Equal(t, `{"who":"them"}`, string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	for range changes {
	}
}

// ============================================================
// RedisSlot
// ============================================================

func TestRedisSlot(t *testing.T) {
	mr := miniredisRun(t)
	r := NewRedisSlot(mr.Addr(), "", 0, "")
	t.Cleanup(func() { r.Close() })
	ctx := context.Background()

	require.NoError(t, r.Ping(ctx))

	_, err := r.Read(ctx)
	assert.ErrorIs(t, err, errors.ErrSlotEmpty)

	require.NoError(t, r.Write(ctx, []byte(`{"x":1}`)))
	got, err := mr.Get(Key)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, got)

	data, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(data))

	require.NoError(t, r.Clear(ctx))
	assert.False(t, mr.Exists(Key))
}

func TestRedisSlot_RoundTripThroughStore(t *testing.T) {
	mr := miniredisRun(t)
	slot := NewRedisSlot(mr.Addr(), "", 0, "custom.key")
	t.Cleanup(func() { slot.Close() })
	s, _ := newStore(slot)

	st := timer.State{Mode: timer.Break, CurrentSession: 4, TimeRemaining: 30, SessionTotalTime: 300}
	require.NoError(t, s.Save(context.Background(), st, nil))
	assert.True(t, mr.Exists("custom.key"))

	res := s.Restore(context.Background(), timer.Default(1500))
	require.True(t, res.Restored)
	assert.Equal(t, st, res.State)
}

func TestRedisSlot_UnreachableFallsBack(t *testing.T) {
	slot := NewRedisSlot("127.0.0.1:1", "", 0, "")
	t.Cleanup(func() { slot.Close() })

	s, _ := newStore(slot)
	res := s.Restore(context.Background(), timer.Default(1500))
	assert.False(t, res.Restored)
}
