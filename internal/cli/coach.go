package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/pomodash/internal/coach"
)

// AddCoachCommand adds the coach command to the root command.
func AddCoachCommand(parent *cobra.Command) {
	var temperature float64
	cmd := &cobra.Command{
		Use:   "coach <prompt>",
		Short: "Ask the productivity coach",
		Long: `Send a prompt to the configured OpenAI-compatible endpoint and print the
reply. The API key is read from the variable named by coach.api_key_env.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoach(cmd.Context(), strings.Join(args, " "), temperature, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0.7, "sampling temperature")
	parent.AddCommand(cmd)
}

func runCoach(ctx context.Context, prompt string, temperature float64, w io.Writer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}

	c, err := coach.New(coach.Config{
		BaseURL: st.cfg.Coach.BaseURL,
		Model:   st.cfg.Coach.Model,
		APIKey:  st.cfg.Coach.APIKey(),
	}, coach.WithLogger(st.logger), coach.WithTemperature(temperature))
	if err != nil {
		return err
	}

	reply, err := c.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, reply)
	return err
}
