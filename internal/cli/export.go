package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/pomodash/internal/export"
)

type exportOptions struct {
	dir string
}

// AddExportCommand adds the export command to the root command.
func AddExportCommand(parent *cobra.Command) {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:       "export [csv|json|yaml]",
		Short:     "Write focus history to a file",
		Long:      `Write every history record, labelled with its task, to pomodash-export-<date>.<format>.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(export.CSV), string(export.JSON), string(export.YAML)},
		RunE: func(cmd *cobra.Command, args []string) error {
			format := string(export.CSV)
			if len(args) == 1 {
				format = args[0]
			}
			return runExport(cmd.Context(), format, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "output directory (default home directory)")
	parent.AddCommand(cmd)
}

func runExport(ctx context.Context, format string, opts *exportOptions, w io.Writer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return err
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

	dir := opts.dir
	if dir == "" {
		if dir, err = os.UserHomeDir(); err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
	}

	path, err := export.History(ctx, rt.store, f, dir, time.Now())
	if err != nil {
		return err
	}
	st.logger.Debug().Str("path", path).Str("format", string(f)).Msg("history exported")
	_, err = fmt.Fprintf(w, "Exported to %s\n", path)
	return err
}
