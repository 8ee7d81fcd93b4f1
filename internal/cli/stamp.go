package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/anchor/internal/anchor"
)

// StampOptions holds flags for the stamp command.
type StampOptions struct {
	*RootOptions
	All     bool
	Message string
}

// NewStampCommand creates the stamp command.
func NewStampCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StampOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stamp [paths...]",
		Short: "Anchor files with timestamp proofs",
		Long: `Digest each file and submit the digest for timestamping.

Files whose content is unchanged since they were anchored are skipped.
With --all, the auto_anchor patterns from config.yml select the files.

Example:
  anchor stamp paper.md figures/plot.py -m "submitted draft"
  anchor stamp --all`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStamp(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "anchor every file selected by auto_anchor")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "note recorded in the history journal")

	return cmd
}

func runStamp(opts *StampOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.All && len(paths) > 0 {
		return NewExitError(ExitCommandError, "pass file paths or --all, not both")
	}
	if !opts.All && len(paths) == 0 {
		return NewExitError(ExitCommandError, "no files given: pass file paths or --all")
	}

	m, err := openManager(opts.RootOptions)
	if err != nil {
		return formatter.Fail(err)
	}

	var res *anchor.BatchResult
	if opts.All {
		formatter.VerboseLog("Selecting files by auto_anchor patterns")
		res, err = m.AnchorAuto(cmd.Context(), opts.Message)
	} else {
		formatter.VerboseLog("Anchoring %d file(s)", len(paths))
		res, err = m.AnchorAll(cmd.Context(), paths, opts.Message)
	}
	if err != nil {
		return formatter.Fail(err)
	}
	return writeBatch(formatter, res, "Anchored")
}
