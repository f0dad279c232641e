package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// AddLogoutCommand adds the logout command to the root command.
func AddLogoutCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Stop the timer and clear the saved snapshot",
		Long: `Reset the timer to a fresh focus phase and clear the snapshot slot, so
no instance resumes the previous phase. Store data is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogout(cmd.Context(), cmd.OutOrStdout())
		},
	}
	parent.AddCommand(cmd)
}

func runLogout(ctx context.Context, w io.Writer) error {
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
	if err := coord.Logout(ctx); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	_, err = io.WriteString(w, "Timer reset; snapshot cleared\n")
	return err
}
