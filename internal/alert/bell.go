// Package alert rings the terminal bell for phase transitions.
package alert

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	single = "\a"
	double = "\a\a"
)

// Bell emits a single bell when a phase starts and a repeating double bell
// while a completed phase waits for acknowledgement.
type Bell struct {
	out      io.Writer
	interval time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

type Option func(*Bell)

func WithLogger(l zerolog.Logger) Option {
	return func(b *Bell) { b.logger = l.With().Str("component", "alert").Logger() }
}

// New returns a Bell writing to out. A non-positive interval defaults to
// three seconds.
func New(out io.Writer, interval time.Duration, opts ...Option) *Bell {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	b := &Bell{out: out, interval: interval, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bell) PhaseStart() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.write(single)
}

// StartLoop begins the repeating alert. Calling it while a loop runs is a
// no-op.
func (b *Bell) StartLoop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return
	}
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.loop(b.stop, b.done)
}

// Stop cancels the loop and waits for it to exit. Safe to call when idle.
func (b *Bell) Stop() {
	b.mu.Lock()
	stop, done := b.stop, b.done
	b.stop, b.done = nil, nil
	b.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Active reports whether the repeating alert is running.
func (b *Bell) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stop != nil
}

func (b *Bell) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.ring()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.ring()
		}
	}
}

func (b *Bell) ring() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.write(double)
}

func (b *Bell) write(s string) {
	if b.out == nil {
		return
	}
	if _, err := io.WriteString(b.out, s); err != nil {
		b.logger.Debug().Err(err).Msg("bell write failed")
	}
}
