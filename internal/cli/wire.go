package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/pomodash/internal/alert"
	"github.com/sadopc/pomodash/internal/config"
	"github.com/sadopc/pomodash/internal/progress"
	"github.com/sadopc/pomodash/internal/session"
	"github.com/sadopc/pomodash/internal/snapshot"
	"github.com/sadopc/pomodash/internal/store"
	"github.com/sadopc/pomodash/internal/timer"
	"github.com/sadopc/pomodash/internal/wakelock"
)

// runtime holds the shared dependencies every command is built from.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger

	store  *store.Store
	snaps  *snapshot.Store
	engine *progress.Engine

	// fileSlot is set for the file backend and can be watched.
	fileSlot *snapshot.FileSlot
	closers  []io.Closer
}

func openRuntime(ctx context.Context, st *cliState) (*runtime, error) {
	cfg := st.cfg
	r := &runtime{cfg: cfg, logger: st.logger}

	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	r.closers = append(r.closers, db)
	if cfg.User.ID == "" {
		r.logger.Info().Msg("no user configured; running without persistence")
	}
	r.store = db.WithUser(cfg.User.ID)

	var slot snapshot.Slot
	switch cfg.Snapshot.Backend {
	case config.BackendRedis:
		rs := snapshot.NewRedisSlot(cfg.Snapshot.RedisAddr, "", 0, cfg.Snapshot.RedisKey)
		if err := rs.Ping(ctx); err != nil {
			r.logger.Warn().Err(err).Str("addr", cfg.Snapshot.RedisAddr).Msg("redis snapshot slot unreachable")
		}
		r.closers = append(r.closers, rs)
		slot = rs
	default:
		r.fileSlot = snapshot.NewFileSlot(cfg.Snapshot.Path, r.logger)
		slot = r.fileSlot
	}

	r.snaps = snapshot.New(slot, snapshot.WithLogger(r.logger))
	r.engine = progress.NewEngine(r.store, progress.WithLogger(r.logger))
	return r, nil
}

func (r *runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// sessionOptions separates the interactive timer from one-shot commands,
// which must not take a wake lock, ring, or rewrite the snapshot.
type sessionOptions struct {
	interactive bool
	bell        io.Writer
}

// newSession restores the timer and hydrates a coordinator from the store.
func (r *runtime) newSession(ctx context.Context, opts sessionOptions) (*session.Coordinator, error) {
	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("load settings; using defaults")
		settings = store.DefaultSettings()
	}

	res := r.snaps.Restore(ctx, timer.Default(settings.FocusMinutes*60))

	timerOpts := []timer.Option{timer.WithLogger(r.logger)}
	coordOpts := []session.Option{session.WithLogger(r.logger), session.WithSnapshots(r.snaps)}
	if opts.interactive {
		var lock wakelock.Lock = wakelock.Noop{}
		if r.cfg.Timer.WakeLock {
			lock = wakelock.NewInhibitor("pomodash focus session")
		}
		bell := opts.bell
		if bell == nil {
			bell = os.Stderr
		}
		timerOpts = append(timerOpts, timer.WithWakeLock(lock), timer.WithObserver(r.snaps.Observer(context.WithoutCancel(ctx))))
		coordOpts = append(coordOpts, session.WithAlert(alert.New(bell, r.cfg.Timer.AlertInterval, alert.WithLogger(r.logger))))
	}

	machine := timer.New(res.State, timerOpts...)
	if res.State.IsRunning {
		machine.Load(res.State, res.PhaseEnd)
	}

	tasks, err := r.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	now := time.Now()
	today := store.DateOf(now)
	from, to, err := store.DayBounds(today)
	if err != nil {
		return nil, err
	}
	history, err := r.store.ListHistory(ctx, store.TimeRange(from, to))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	daily, err := r.store.GetDailyLog(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("load daily log: %w", err)
	}

	coord := session.New(machine, r.store, r.engine, coordOpts...)
	coord.Hydrate(tasks, history, daily, settings, res.Restored)
	return coord, nil
}
