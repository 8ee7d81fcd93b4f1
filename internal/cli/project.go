package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/anchor/internal/anchor"
	"github.com/roach88/anchor/internal/config"
	"github.com/roach88/anchor/internal/timestamp"
)

// openManager builds a Manager for the project in opts.Dir, wiring the
// timestamp service and timeout from the project config. An uninitialized
// project gets the defaults so the operation itself reports
// NOT_INITIALIZED.
func openManager(opts *RootOptions) (*anchor.Manager, error) {
	cfg := config.Default("")
	loaded, err := anchor.New(opts.Dir, nil).Config()
	switch {
	case err == nil:
		cfg = loaded
	case !anchor.IsNotInitialized(err):
		return nil, err
	}

	timeout, err := cfg.Timestamp.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	newService := opts.NewService
	if newService == nil {
		newService = execService
	}
	return anchor.New(opts.Dir, newService(cfg),
		anchor.WithLogger(slog.Default()),
		anchor.WithTimeout(timeout),
	), nil
}

func execService(cfg *config.Config) timestamp.Service {
	return timestamp.NewExec(cfg.Timestamp.Command, cfg.Timestamp.Args...)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
