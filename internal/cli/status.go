package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/anchor/internal/anchor"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show the proof status of tracked files",
		Long: `Show the proof status of one tracked file, or of every tracked file
with a marker for content changed or missing since it was anchored.

Example:
  anchor status
  anchor status paper.md --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runStatusFile(rootOpts, args[0], cmd)
			}
			return runStatusAll(rootOpts, cmd)
		},
	}

	return cmd
}

func runStatusFile(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	m := anchor.New(opts.Dir, nil)

	rec, err := m.CheckStatus(path)
	if err != nil {
		return formatter.Fail(err)
	}
	key, _ := m.ValidatePath(path)
	view := newFileView(key, rec)

	if formatter.Format == "json" {
		return formatter.Success(view)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "File:        %s\n", view.Path)
	fmt.Fprintf(w, "Status:      %s\n", view.Status)
	fmt.Fprintf(w, "Hash:        %s\n", view.Hash)
	fmt.Fprintf(w, "Anchored at: %s\n", view.AnchoredAt)
	if view.ConfirmedAt != "" {
		fmt.Fprintf(w, "Confirmed:   %s\n", view.ConfirmedAt)
	}
	if view.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", view.Error)
	}
	return nil
}

func runStatusAll(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	m := anchor.New(opts.Dir, nil)

	entries, err := m.StatusAll()
	if err != nil {
		return formatter.Fail(err)
	}

	views := make([]FileView, 0, len(entries))
	for _, e := range entries {
		v := newFileView(e.Path, e.Record)
		v.Modified = e.Modified
		v.Missing = e.Missing
		views = append(views, v)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"files": views})
	}
	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "No files anchored yet.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSTATUS\tHASH\tANCHORED\tNOTE")
	for _, v := range views {
		note := ""
		switch {
		case v.Missing:
			note = "missing"
		case v.Modified:
			note = "modified"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Path, v.Status, shortHash(v.Hash), v.AnchoredAt, note)
	}
	return tw.Flush()
}
