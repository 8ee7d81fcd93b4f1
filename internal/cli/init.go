package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/anchor/internal/anchor"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Author string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize anchoring in a project",
		Long: `Create the .anchor state directory with an empty registry, the proofs
directory, and a default config.yml.

An existing state directory is never overwritten.

Example:
  anchor init --author "Jane Doe"
  anchor init --dir ./paper`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Author, "author", "", "author recorded in config.yml")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	m := anchor.New(opts.Dir, nil)

	if err := m.Init(opts.Author); err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"state_dir": m.StateDir()})
	}
	fmt.Fprintf(formatter.Writer, "Initialized anchor project in %s\n", m.StateDir())
	return nil
}
