package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// AddRecalcCommand adds the recalc command to the root command.
func AddRecalcCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recompute every project and target from history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecalc(cmd.Context(), cmd.OutOrStdout())
		},
	}
	parent.AddCommand(cmd)
}

func runRecalc(ctx context.Context, w io.Writer) error {
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

	res, err := rt.engine.RecalculateAll(ctx)
	if err != nil {
		return fmt.Errorf("recalculate: %w", err)
	}

	for _, p := range res.Projects {
		if _, err := fmt.Fprintf(w, "project  %-24s %-9s %d\n", p.Name, p.Status, p.ProgressValue); err != nil {
			return err
		}
	}
	for _, tg := range res.Targets {
		if _, err := fmt.Fprintf(w, "target   %-24s %d/%d min\n", tg.Name, tg.ProgressMinutes, tg.TargetMinutes); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "Recalculated %d project(s), %d target(s)\n", len(res.Projects), len(res.Targets))
	return err
}
