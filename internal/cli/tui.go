package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/pomodash/internal/tui"
)

// runTUI opens the timer UI until the user quits.
func runTUI(ctx context.Context, _ *cobra.Command) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, st)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	coord, err := rt.newSession(ctx, sessionOptions{interactive: true})
	if err != nil {
		return err
	}
	defer coord.Close()

	var watch <-chan []byte
	if rt.fileSlot != nil {
		watch, err = rt.fileSlot.Watch(ctx)
		if err != nil {
			st.logger.Warn().Err(err).Msg("snapshot watch unavailable")
			watch = nil
		}
	}

	app := tui.NewApp(ctx, tui.Deps{
		Store:        rt.store,
		Session:      coord,
		Engine:       rt.engine,
		Snapshots:    rt.snaps,
		Watch:        watch,
		Logger:       st.logger,
		TickInterval: st.cfg.Timer.TickInterval,
	})

	st.logger.Info().Str("user", st.cfg.User.ID).Msg("timer started")
	_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	// A signal ends the program without a quit key.
	coord.Flush(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("run timer: %w", err)
	}
	return nil
}
