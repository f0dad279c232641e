// Package timer implements the focus/break phase state machine.
//
// While running, the remaining time is always derived from an absolute phase
// deadline, so a late or skipped tick never makes the timer drift.
package timer

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/pomodash/internal/clock"
	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/wakelock"
)

// Mode is the kind of phase being timed.
type Mode string

const (
	Focus Mode = "focus"
	Break Mode = "break"
)

// State is the serializable part of the machine. The JSON names are the
// snapshot wire format and must not change.
type State struct {
	Mode             Mode `json:"mode"`
	CurrentSession   int  `json:"currentSession"`
	TimeRemaining    int  `json:"timeRemaining"`
	SessionTotalTime int  `json:"sessionTotalTime"`
	IsRunning        bool `json:"isRunning"`
}

// Default is an idle first focus phase of focusSeconds.
func Default(focusSeconds int) State {
	return State{
		Mode:             Focus,
		CurrentSession:   1,
		TimeRemaining:    focusSeconds,
		SessionTotalTime: focusSeconds,
	}
}

// Pristine reports whether the state carries nothing worth persisting.
func (s State) Pristine() bool {
	return !s.IsRunning && s.TimeRemaining == s.SessionTotalTime
}

// Remaining computes whole seconds left until end, rounded and floored at 0.
func Remaining(end, now time.Time) int {
	secs := math.Round(end.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}

// Observer is notified after every mutation with the new state and the phase
// deadline (nil unless running).
type Observer func(State, *time.Time)

// Machine owns the timer state, the phase deadline, the wake lock and the
// expiry guard. It is not safe for concurrent use; callers serialize access
// through their event loop.
type Machine struct {
	clock     clock.Clock
	lock      wakelock.Lock
	logger    zerolog.Logger
	observers []Observer

	state    State
	phaseEnd *time.Time
	locked   bool
	expired  bool
}

// Option configures a Machine.
type Option func(*Machine)

func WithClock(c clock.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

func WithWakeLock(l wakelock.Lock) Option {
	return func(m *Machine) { m.lock = l }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.logger = l.With().Str("component", "timer").Logger() }
}

func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observers = append(m.observers, o) }
}

// New returns an idle machine holding initial.
func New(initial State, opts ...Option) *Machine {
	m := &Machine{
		clock:  clock.RealClock{},
		lock:   wakelock.Noop{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	initial.IsRunning = false
	m.state = initial
	return m
}

// State returns a copy of the current state.
func (m *Machine) State() State { return m.state }

// PhaseEnd returns the deadline of the running phase, or nil.
func (m *Machine) PhaseEnd() *time.Time {
	if m.phaseEnd == nil {
		return nil
	}
	t := *m.phaseEnd
	return &t
}

func (m *Machine) Running() bool { return m.state.IsRunning }

func (m *Machine) Pristine() bool { return m.state.Pristine() }

// Start runs the current phase from its frozen remaining time.
func (m *Machine) Start() error {
	if m.state.IsRunning {
		return errors.ErrAlreadyRunning
	}
	m.run(m.state.TimeRemaining)
	m.notify()
	return nil
}

// Stop pauses the timer, freezing TimeRemaining. Stopping an idle timer only
// makes sure the wake lock is released.
func (m *Machine) Stop() {
	wasRunning := m.state.IsRunning
	m.halt()
	if wasRunning {
		m.notify()
	}
}

// Tick recomputes TimeRemaining from the deadline. It returns true exactly
// once when a running phase reaches zero.
func (m *Machine) Tick() bool {
	if !m.state.IsRunning || m.phaseEnd == nil {
		return false
	}
	m.state.TimeRemaining = Remaining(*m.phaseEnd, m.clock.Now())
	if m.state.TimeRemaining > 0 || m.expired {
		return false
	}
	m.expired = true
	m.notify()
	return true
}

// Reset stops the timer and returns to an idle first focus phase.
func (m *Machine) Reset(focusSeconds int) {
	m.halt()
	m.state = Default(focusSeconds)
	m.expired = false
	m.notify()
}

// BeginPhase switches to the given phase and starts it immediately.
func (m *Machine) BeginPhase(mode Mode, session, seconds int) {
	m.halt()
	m.state = State{
		Mode:             mode,
		CurrentSession:   session,
		TimeRemaining:    seconds,
		SessionTotalTime: seconds,
	}
	m.run(seconds)
	m.notify()
}

// SetDuration retargets an idle, untouched phase. It reports whether the
// duration was applied.
func (m *Machine) SetDuration(seconds int) bool {
	if !m.state.Pristine() {
		return false
	}
	if m.state.SessionTotalTime == seconds {
		return true
	}
	m.state.TimeRemaining = seconds
	m.state.SessionTotalTime = seconds
	m.notify()
	return true
}

// Load adopts a restored state. A running state resumes against phaseEnd,
// with TimeRemaining recomputed from it.
func (m *Machine) Load(s State, phaseEnd *time.Time) {
	m.halt()
	m.expired = false
	if s.IsRunning && phaseEnd != nil {
		end := *phaseEnd
		s.TimeRemaining = Remaining(end, m.clock.Now())
		m.state = s
		m.phaseEnd = &end
		m.acquire()
	} else {
		s.IsRunning = false
		m.state = s
	}
	m.notify()
}

// Close releases the wake lock. The machine stays usable.
func (m *Machine) Close() {
	m.release()
}

func (m *Machine) run(seconds int) {
	end := m.clock.Now().Add(time.Duration(seconds) * time.Second)
	m.phaseEnd = &end
	m.state.IsRunning = true
	m.state.TimeRemaining = seconds
	m.expired = false
	m.acquire()
}

func (m *Machine) halt() {
	if m.state.IsRunning && m.phaseEnd != nil {
		m.state.TimeRemaining = Remaining(*m.phaseEnd, m.clock.Now())
	}
	m.state.IsRunning = false
	m.phaseEnd = nil
	m.release()
}

func (m *Machine) acquire() {
	if m.locked {
		return
	}
	if err := m.lock.Acquire(); err != nil {
		m.logger.Debug().Err(err).Msg("wake lock not acquired")
		return
	}
	m.locked = true
}

func (m *Machine) release() {
	if !m.locked {
		return
	}
	m.locked = false
	if err := m.lock.Release(); err != nil {
		m.logger.Debug().Err(err).Msg("wake lock release failed")
	}
}

func (m *Machine) notify() {
	end := m.PhaseEnd()
	for _, o := range m.observers {
		o(m.state, end)
	}
}
