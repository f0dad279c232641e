// Package cli provides the command-line interface for pomodash.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sadopc/pomodash/internal/config"
	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/logging"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// globalLogger stores the logger built in PersistentPreRunE.
// Access is protected by globalLoggerMu.
var (
	globalLogger   = zerolog.Nop() //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex    //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the logger built for the running command. Before the
// root command's PersistentPreRunE it discards everything.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

func setLogger(l zerolog.Logger) {
	globalLoggerMu.Lock()
	globalLogger = l
	globalLoggerMu.Unlock()
}

// cliState is what PersistentPreRunE hands to the running command.
type cliState struct {
	cfg    *config.Config
	logger zerolog.Logger
	closer io.Closer
}

type stateKey struct{}

func stateFrom(ctx context.Context) (*cliState, error) {
	st, ok := ctx.Value(stateKey{}).(*cliState)
	if !ok || st == nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "configuration not loaded")
	}
	return st, nil
}

// newRootCmd creates the root command. Invoked without a subcommand it runs
// the timer UI.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pomodash",
		Short: "A Pomodoro timer with tasks, projects and targets",
		Long: `pomodash runs focus and break phases in your terminal, counts completed
sessions against tasks, and rolls them up into project and tag targets.

Run without a subcommand to open the timer.

Examples:
  pomodash                  # open the timer
  pomodash status           # print the saved timer state
  pomodash export json      # write history to ~/pomodash-export-<date>.json
  pomodash recalc           # recompute every project and target`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), cmd)
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			verbose, quiet := v.GetBool("verbose"), v.GetBool("quiet")
			if verbose && quiet {
				return errors.Wrap(errors.ErrInvalidConfig, "verbose and quiet are mutually exclusive")
			}

			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, flags.ConfigPath)
			if err != nil {
				return err
			}

			// The timer UI owns the terminal, so it logs to the file alone.
			var console io.Writer
			if cmd != cmd.Root() {
				console = logging.ConsoleOutput(os.Stderr)
			}
			logger, closer, logErr := logging.New(logging.Options{
				Level:      cfg.Log.Level,
				Verbose:    verbose,
				Quiet:      quiet,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
				Console:    console,
			})
			if logErr != nil {
				logger.Warn().Err(logErr).Msg("log file unavailable")
			}
			logger = logger.With().Str("command", cmd.Name()).Logger()
			setLogger(logger)

			st := &cliState{cfg: cfg, logger: logger, closer: closer}
			cmd.SetContext(context.WithValue(logger.WithContext(ctx), stateKey{}, st))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			st, err := stateFrom(cmd.Context())
			if err != nil {
				return nil //nolint:nilerr // nothing was opened
			}
			return st.closer.Close()
		},
		// SilenceUsage prevents printing usage on error
		SilenceUsage: true,
	}

	AddGlobalFlags(cmd, flags)

	AddStatusCommand(cmd)
	AddExportCommand(cmd)
	AddRecalcCommand(cmd)
	AddLogoutCommand(cmd)
	AddCoachCommand(cmd)
	AddGoalsCommand(cmd)

	return cmd
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path == "" {
		return config.Load(ctx)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "config file %s: %v", path, err)
	}
	return config.LoadFromPath(ctx, path)
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	return cmd.ExecuteContext(ctx)
}
