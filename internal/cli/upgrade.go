package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/anchor/internal/anchor"
)

// NewUpgradeCommand creates the upgrade command.
func NewUpgradeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [path]",
		Short: "Check whether pending proofs are attested",
		Long: `Ask the timestamp service whether pending proofs are complete and
record confirmed ones. Without a path every pending file is checked.

Attestation can take hours; run upgrade again later for files that stay
pending.

Example:
  anchor upgrade
  anchor upgrade paper.md`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpgrade(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runUpgrade(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	m, err := openManager(opts)
	if err != nil {
		return formatter.Fail(err)
	}

	if len(args) == 0 {
		formatter.VerboseLog("Upgrading every pending proof")
		res, err := m.UpgradeAll(cmd.Context())
		if err != nil {
			return formatter.Fail(err)
		}
		return writeBatch(formatter, res, "Upgraded")
	}

	formatter.VerboseLog("Upgrading %s", args[0])
	out, err := m.Upgrade(cmd.Context(), args[0])
	if out == nil {
		return formatter.Fail(err)
	}
	return writeBatch(formatter, &anchor.BatchResult{Outcomes: []anchor.Outcome{*out}}, "Upgraded")
}
