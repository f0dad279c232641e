package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sadopc/pomodash/internal/session"
	"github.com/sadopc/pomodash/internal/timer"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the saved timer state",
		Long: `Print the timer as it would resume: phase, session number, time left,
the current task and today's session count against the daily goal.

The snapshot is read but never rewritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, cmd.OutOrStdout())
		},
	}
	parent.AddCommand(cmd)
}

func runStatus(ctx context.Context, _ *cobra.Command, w io.Writer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, st)
	if err != nil {
		return err
	}
	defer rt.Close()

	coord, err := rt.newSession(ctx, sessionOptions{})
	if err != nil {
		return err
	}
	defer coord.Close()

	_, err = io.WriteString(w, formatStatus(coord))
	return err
}

func formatStatus(c *session.Coordinator) string {
	state := c.State()
	title := cases.Title(language.English)

	run := "paused"
	switch {
	case state.IsRunning:
		run = "running"
	case state.Pristine():
		run = "idle"
	}

	out := fmt.Sprintf("%s %d  %s  (%s)\n",
		title.String(string(state.Mode)), state.CurrentSession, clock(state.TimeRemaining), run)
	if state.Mode == timer.Focus {
		if task := c.CurrentTask(); task != nil {
			out += fmt.Sprintf("Task:   %s\n", task.Text)
		}
	}

	daily, settings := c.Daily(), c.Settings()
	out += fmt.Sprintf("Today:  %d/%d sessions, %d min focused\n",
		daily.CompletedSessions, settings.DailyGoalSessions, daily.TotalFocusMinutes)
	return out
}

func clock(seconds int) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
