// Package snapshot persists the timer state across restarts.
//
// The blob lives in a single slot under a fixed key:
//
//	{"savedAppState": <timer.State>, "savedPhaseEndTime": <unix ms>|null}
//
// Pristine states are never persisted; saving one clears the slot.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/pomodash/internal/clock"
	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/timer"
)

// Key names the slot in every backend.
const Key = "pomodash.timer"

// Slot is a durable single-value storage location.
type Slot interface {
	// Read returns errors.ErrSlotEmpty when nothing is stored.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}

type blob struct {
	SavedAppState     timer.State `json:"savedAppState"`
	SavedPhaseEndTime *int64      `json:"savedPhaseEndTime"`
}

// Result is what Restore hands to the timer.
type Result struct {
	State    timer.State
	PhaseEnd *time.Time
	// Restored is false whenever defaults were used.
	Restored bool
}

type Store struct {
	slot   Slot
	clock  clock.Clock
	logger zerolog.Logger
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l.With().Str("component", "snapshot").Logger() }
}

func New(slot Slot, opts ...Option) *Store {
	s := &Store{slot: slot, clock: clock.RealClock{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes state, or clears the slot when state is pristine.
func (s *Store) Save(ctx context.Context, state timer.State, phaseEnd *time.Time) error {
	if state.Pristine() {
		return s.slot.Clear(ctx)
	}
	data, err := Encode(state, phaseEnd)
	if err != nil {
		return err
	}
	return s.slot.Write(ctx, data)
}

// Observer adapts Save to timer.WithObserver. Failures are logged.
func (s *Store) Observer(ctx context.Context) timer.Observer {
	return func(state timer.State, phaseEnd *time.Time) {
		if err := s.Save(ctx, state, phaseEnd); err != nil {
			s.logger.Warn().Err(err).Msg("save timer snapshot")
		}
	}
}

// Restore reads the slot. Absent, unreadable or corrupt snapshots yield
// defaults with Restored=false; a corrupt one is also cleared.
func (s *Store) Restore(ctx context.Context, defaults timer.State) Result {
	fallback := Result{State: defaults}

	data, err := s.slot.Read(ctx)
	if errors.Is(err, errors.ErrSlotEmpty) {
		return fallback
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("read timer snapshot")
		return fallback
	}

	res, err := s.Parse(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding timer snapshot")
		if err := s.slot.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("clear corrupt timer snapshot")
		}
		return fallback
	}
	return res
}

// Parse decodes data and brings a running state up to date with the clock.
func (s *Store) Parse(data []byte) (Result, error) {
	state, phaseEnd, err := Decode(data)
	if err != nil {
		return Result{}, err
	}
	if state.IsRunning {
		state.TimeRemaining = timer.Remaining(*phaseEnd, s.clock.Now())
	}
	return Result{State: state, PhaseEnd: phaseEnd, Restored: true}, nil
}

// Clear empties the slot.
func (s *Store) Clear(ctx context.Context) error {
	return s.slot.Clear(ctx)
}

// Encode renders the wire blob. phaseEnd is only recorded while running.
func Encode(state timer.State, phaseEnd *time.Time) ([]byte, error) {
	b := blob{SavedAppState: state}
	if state.IsRunning && phaseEnd != nil {
		ms := phaseEnd.UnixMilli()
		b.SavedPhaseEndTime = &ms
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses and validates the wire blob.
func Decode(data []byte) (timer.State, *time.Time, error) {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return timer.State{}, nil, fmt.Errorf("%w: %v", errors.ErrSnapshotCorrupt, err)
	}
	st := b.SavedAppState
	switch {
	case st.Mode != timer.Focus && st.Mode != timer.Break:
		return timer.State{}, nil, fmt.Errorf("%w: unknown mode %q", errors.ErrSnapshotCorrupt, st.Mode)
	case st.CurrentSession < 1:
		return timer.State{}, nil, fmt.Errorf("%w: session %d", errors.ErrSnapshotCorrupt, st.CurrentSession)
	case st.TimeRemaining < 0 || st.SessionTotalTime <= 0:
		return timer.State{}, nil, fmt.Errorf("%w: negative duration", errors.ErrSnapshotCorrupt)
	case st.IsRunning && b.SavedPhaseEndTime == nil:
		return timer.State{}, nil, fmt.Errorf("%w: running without deadline", errors.ErrSnapshotCorrupt)
	}

	var phaseEnd *time.Time
	if st.IsRunning {
		t := time.UnixMilli(*b.SavedPhaseEndTime)
		phaseEnd = &t
	}
	return st, phaseEnd, nil
}
