package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// VerifyView is the JSON shape of a verification.
type VerifyView struct {
	FileView
	Attested        bool   `json:"attested"`
	ContentMatches  bool   `json:"content_matches"`
	ArtifactChanged bool   `json:"artifact_changed,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <path>",
		Short: "Verify a file against its timestamp proof",
		Long: `Check that a file's current content matches its anchored digest and
that the timestamp proof attests it. A pending proof is upgraded first.

Exits with status 1 when the file is not attested.

Example:
  anchor verify paper.md`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	m, err := openManager(opts)
	if err != nil {
		return formatter.Fail(err)
	}

	res, err := m.Verify(cmd.Context(), path)
	if err != nil {
		return formatter.Fail(err)
	}

	view := VerifyView{
		FileView:        newFileView(res.Path, res.Record),
		Attested:        res.Attested,
		ContentMatches:  res.ContentMatches,
		ArtifactChanged: res.ArtifactChanged,
		Reason:          res.Reason,
	}
	if formatter.Format == "json" {
		if err := formatter.Success(view); err != nil {
			return err
		}
	} else if res.Attested {
		fmt.Fprintf(formatter.Writer, "✓ %s is attested (anchored %s)\n", res.Path, view.AnchoredAt)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s is not attested: %s\n", res.Path, res.Reason)
	}
	if res.ArtifactChanged && formatter.Format != "json" {
		fmt.Fprintln(formatter.Writer, "  warning: proof artifact differs from the one last recorded in history")
	}

	if !res.Attested {
		return NewExitError(ExitFailure, fmt.Sprintf("%s is not attested", res.Path))
	}
	return nil
}
