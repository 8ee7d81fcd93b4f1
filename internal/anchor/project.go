package anchor

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/roach88/anchor/internal/config"
	"github.com/roach88/anchor/internal/registry"
)

// Init creates the state directory with an empty registry, the proofs
// directory, and a default config. An existing state directory is left
// untouched and reported as ALREADY_INITIALIZED.
func (m *Manager) Init(author string) error {
	if err := os.Mkdir(m.stateDir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return newError(ErrCodeAlreadyInitialized, "",
				"state directory "+m.stateDir+" already exists", nil)
		}
		return ioFailure("", "cannot create state directory", err)
	}
	if err := os.Mkdir(m.ProofsDir(), 0o755); err != nil {
		return ioFailure("", "cannot create proofs directory", err)
	}
	if err := config.Write(m.stateDir, config.Default(author)); err != nil {
		return ioFailure("", "cannot write default config", err)
	}
	if err := registry.Save(m.stateDir, registry.New()); err != nil {
		return registryError(err)
	}
	m.logger.Info("initialized project", "state_dir", m.stateDir)
	return nil
}

// Config loads the project config. A project without a config file gets
// the defaults.
func (m *Manager) Config() (*config.Config, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(m.stateDir)
	if err != nil {
		return nil, newError(ErrCodeInvalidInput, "", "cannot load "+config.FilePath(m.stateDir), err)
	}
	return cfg, nil
}

// AutoPaths returns the files selected by the config's auto_anchor
// patterns, sorted.
func (m *Manager) AutoPaths() ([]string, error) {
	cfg, err := m.Config()
	if err != nil {
		return nil, err
	}
	paths, err := config.Select(m.root, cfg.AutoAnchor, MaxFilesToAnchor, StateDirName, ".git")
	switch {
	case errors.Is(err, config.ErrTooManyFiles):
		return nil, newError(ErrCodeInvalidInput, "", "auto_anchor patterns select too many files", err)
	case err != nil:
		return nil, ioFailure("", "cannot scan project", err)
	}
	return paths, nil
}

// AnchorAuto anchors every file selected by the config's auto_anchor
// patterns.
func (m *Manager) AnchorAuto(ctx context.Context, message string) (*BatchResult, error) {
	if err := ValidateMessage(message); err != nil {
		return nil, err
	}
	paths, err := m.AutoPaths()
	if err != nil {
		return nil, err
	}
	return m.AnchorAll(ctx, paths, message)
}
