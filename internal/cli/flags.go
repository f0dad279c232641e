package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sadopc/pomodash/internal/config"
)

// GlobalFlags holds flags available to all commands.
type GlobalFlags struct {
	// Verbose enables debug-level logging.
	Verbose bool
	// Quiet suppresses non-essential output (warn level only).
	Quiet bool
	// ConfigPath overrides ~/.config/pomodash/config.yaml.
	ConfigPath string
}

// AddGlobalFlags adds global flags to a command.
// These flags are available to all subcommands via PersistentFlags.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "config file (default ~/.config/pomodash/config.yaml)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// BindGlobalFlags binds global flags to Viper so POMODASH_VERBOSE and
// POMODASH_QUIET work as well as the flags.
func BindGlobalFlags(v *viper.Viper, cmd *cobra.Command) error {
	// Root().PersistentFlags() finds the flags even from a subcommand.
	rootFlags := cmd.Root().PersistentFlags()

	if err := v.BindPFlag("verbose", rootFlags.Lookup("verbose")); err != nil {
		return err
	}
	if err := v.BindPFlag("quiet", rootFlags.Lookup("quiet")); err != nil {
		return err
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	return nil
}
