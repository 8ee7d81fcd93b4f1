package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/anchor/internal/anchor"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "Show the lifecycle journal",
		Long: `Show recorded lifecycle transitions, oldest first, for one file or
for the whole project.

Example:
  anchor history paper.md
  anchor history --limit 20 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runHistory(opts, path, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "show at most this many recent events (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
	m := anchor.New(opts.Dir, nil)

	events, err := m.History(cmd.Context(), path, opts.Limit)
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"events": events})
	}
	if len(events) == 0 {
		fmt.Fprintln(formatter.Writer, "No history recorded.")
		return nil
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %-7s  %s  %s -> %s",
			ev.RecordedAt.Format(time.RFC3339), ev.Action, ev.Path, ev.FromStatus, ev.ToStatus)
		if ev.Message != "" {
			line += fmt.Sprintf("  %q", ev.Message)
		}
		if ev.Detail != "" && formatter.Verbose {
			line += "  (" + ev.Detail + ")"
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}
