package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/store"
)

// AddGoalsCommand adds the goals command and its subcommands. Goals and
// commitments are addressed by their position in the `goals` listing.
func AddGoalsCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List goals and today's commitments",
		Long: `List open and completed goals, then the commitments made for today.

Examples:
  pomodash goals                      # list
  pomodash goals add Ship v1 --by 2026-12-01
  pomodash goals done 1               # complete goal #1
  pomodash goals commit Review PRs    # commit to something today
  pomodash goals check 1              # toggle commitment #1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGoals(cmd.Context(), cmd.OutOrStdout())
		},
	}

	var by string
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				g := store.Goal{Title: strings.Join(args, " ")}
				if by != "" {
					day, err := time.ParseInLocation("2006-01-02", by, time.Local)
					if err != nil {
						return fmt.Errorf("--by: %w", err)
					}
					g.TargetDate = &day
				}
				if _, err := s.CreateGoal(ctx, g); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Added goal %q\n", g.Title)
				return err
			})
		},
	}
	add.Flags().StringVar(&by, "by", "", "target date (YYYY-MM-DD)")

	cmd.AddCommand(
		add,
		goalAction("done <n>", "Mark a goal completed", func(ctx context.Context, s *store.Store, n int) (string, error) {
			g, err := nthGoal(ctx, s, n)
			if err != nil {
				return "", err
			}
			return "Completed " + g.Title, s.CompleteGoal(ctx, g.ID)
		}),
		goalAction("rm <n>", "Delete a goal", func(ctx context.Context, s *store.Store, n int) (string, error) {
			g, err := nthGoal(ctx, s, n)
			if err != nil {
				return "", err
			}
			return "Deleted " + g.Title, s.DeleteGoal(ctx, g.ID)
		}),
		&cobra.Command{
			Use:   "commit <text>",
			Short: "Add a commitment for today",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
					text := strings.Join(args, " ")
					if _, err := s.CreateCommitment(ctx, text, time.Now()); err != nil {
						return err
					}
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "Committed to %q\n", text)
					return err
				})
			},
		},
		goalAction("check <n>", "Toggle a commitment for today", func(ctx context.Context, s *store.Store, n int) (string, error) {
			c, err := nthCommitment(ctx, s, n)
			if err != nil {
				return "", err
			}
			verb := "Done: "
			if c.Done {
				verb = "Reopened: "
			}
			return verb + c.Text, s.SetCommitmentDone(ctx, c.ID, !c.Done)
		}),
		goalAction("drop <n>", "Delete a commitment for today", func(ctx context.Context, s *store.Store, n int) (string, error) {
			c, err := nthCommitment(ctx, s, n)
			if err != nil {
				return "", err
			}
			return "Dropped " + c.Text, s.DeleteCommitment(ctx, c.ID)
		}),
	)
	parent.AddCommand(cmd)
}

// goalAction builds a subcommand taking a 1-based listing position.
func goalAction(use, short string, fn func(ctx context.Context, s *store.Store, n int) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return errors.Wrapf(errors.ErrNotFound, "position %q", args[0])
			}
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				msg, err := fn(ctx, s, n)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
				return err
			})
		},
	}
}

// withStore opens the runtime for the duration of fn. Writes need an
// identity.
func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	if st.cfg.User.ID == "" {
		return errors.Wrap(errors.ErrNoIdentity, "set user.id to keep goals")
	}
	return withStoreOrAnonymous(ctx, fn)
}

func nthGoal(ctx context.Context, s *store.Store, n int) (*store.Goal, error) {
	goals, err := s.ListGoals(ctx)
	if err != nil {
		return nil, err
	}
	if n > len(goals) {
		return nil, errors.Wrapf(errors.ErrNotFound, "goal #%d", n)
	}
	return &goals[n-1], nil
}

func nthCommitment(ctx context.Context, s *store.Store, n int) (*store.Commitment, error) {
	commitments, err := s.ListCommitments(ctx, store.DateOf(time.Now()))
	if err != nil {
		return nil, err
	}
	if n > len(commitments) {
		return nil, errors.Wrapf(errors.ErrNotFound, "commitment #%d", n)
	}
	return &commitments[n-1], nil
}

func runGoals(ctx context.Context, w io.Writer) error {
	return withStoreOrAnonymous(ctx, func(ctx context.Context, s *store.Store) error {
		goals, err := s.ListGoals(ctx)
		if err != nil {
			return err
		}
		commitments, err := s.ListCommitments(ctx, store.DateOf(time.Now()))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, formatGoals(goals, commitments))
		return err
	})
}

// withStoreOrAnonymous is withStore for read-only commands, which list
// nothing rather than fail without an identity.
func withStoreOrAnonymous(ctx context.Context, fn func(context.Context, *store.Store) error) error {
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
	return fn(ctx, rt.store)
}

func formatGoals(goals []store.Goal, commitments []store.Commitment) string {
	var b strings.Builder

	b.WriteString("Goals\n")
	if len(goals) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, g := range goals {
		mark := "[ ]"
		if g.CompletedAt != nil {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "  %d. %s %s", i+1, mark, g.Title)
		if g.TargetDate != nil {
			fmt.Fprintf(&b, "  (by %s)", g.TargetDate.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	b.WriteString("Today\n")
	if len(commitments) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, c := range commitments {
		mark := "[ ]"
		if c.Done {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "  %d. %s %s\n", i+1, mark, c.Text)
	}
	return b.String()
}
