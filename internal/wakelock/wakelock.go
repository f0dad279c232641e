// Package wakelock keeps the host from idling or sleeping while a phase runs.
package wakelock

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/sadopc/pomodash/internal/errors"
)

// Lock is a resource held while the timer is running.
type Lock interface {
	Acquire() error
	Release() error
}

// Noop satisfies Lock without doing anything.
type Noop struct{}

func (Noop) Acquire() error { return nil }
func (Noop) Release() error { return nil }

// Inhibitor holds a systemd-inhibit child process for as long as the lock is
// acquired. Acquire and Release are idempotent.
type Inhibitor struct {
	mu   sync.Mutex
	cmd  *exec.Cmd
	why  string
	path string
}

// NewInhibitor returns an Inhibitor that annotates its inhibition with why.
func NewInhibitor(why string) *Inhibitor {
	return &Inhibitor{why: why, path: "systemd-inhibit"}
}

func (i *Inhibitor) Acquire() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cmd != nil {
		return nil
	}

	bin, err := exec.LookPath(i.path)
	if err != nil {
		return fmt.Errorf("wake lock unavailable: %w", err)
	}
	cmd := exec.Command(bin,
		"--what=idle:sleep",
		"--who=pomodash",
		"--why="+i.why,
		"--mode=block",
		"sleep", "infinity",
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start inhibitor: %w", err)
	}
	i.cmd = cmd
	go func() { _ = cmd.Wait() }()
	return nil
}

func (i *Inhibitor) Release() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cmd == nil {
		return nil
	}
	cmd := i.cmd
	i.cmd = nil
	return stopped(cmd.Process.Kill())
}

// stopped maps a kill error to nil when the inhibitor had already exited,
// as systemd-inhibit does immediately on hosts without logind.
func stopped(err error) error {
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return fmt.Errorf("stop inhibitor: %w", err)
}

// Held reports whether the inhibitor process is currently running.
func (i *Inhibitor) Held() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cmd != nil
}
