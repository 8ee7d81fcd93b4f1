package anchor

import (
	"context"
	"path/filepath"

	"github.com/roach88/anchor/internal/digest"
	"github.com/roach88/anchor/internal/history"
	"github.com/roach88/anchor/internal/registry"
)

// StatusEntry is one row of StatusAll.
type StatusEntry struct {
	Path   string
	Record *registry.FileRecord

	// Modified is true when the file's current digest differs from the
	// anchored one.
	Modified bool

	// Missing is true when the file no longer exists or cannot be read.
	Missing bool
}

// CheckStatus returns a copy of the record for path.
func (m *Manager) CheckStatus(path string) (*registry.FileRecord, error) {
	key, err := m.ValidatePath(path)
	if err != nil {
		return nil, err
	}
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	reg, err := registry.Load(m.stateDir)
	if err != nil {
		return nil, registryError(err)
	}
	rec := reg.Get(key)
	if rec == nil {
		return nil, notAnchored(key)
	}
	return rec.Clone(), nil
}

// StatusAll returns every record sorted by path, with change detection
// against the files currently on disk.
func (m *Manager) StatusAll() ([]StatusEntry, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	reg, err := registry.Load(m.stateDir)
	if err != nil {
		return nil, registryError(err)
	}
	if n := reg.Len(); n > MaxFilesToAnchor {
		return nil, invalidInput("", "registry tracks %d files, maximum is %d per invocation", n, MaxFilesToAnchor)
	}

	entries := make([]StatusEntry, 0, reg.Len())
	for _, key := range reg.Paths() {
		rec := reg.Get(key)
		e := StatusEntry{Path: key, Record: rec.Clone()}
		sum, err := digest.File(m.absPath(key))
		if err != nil {
			m.logger.Debug("tracked file unreadable", "path", key, "error", err)
			e.Missing = true
		} else {
			e.Modified = sum != rec.Hash
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// History returns up to limit journal events for path, oldest first. An
// empty path returns events for every file.
func (m *Manager) History(ctx context.Context, path string, limit int) ([]history.Event, error) {
	key := ""
	if path != "" {
		k, err := m.ValidatePath(path)
		if err != nil {
			return nil, err
		}
		key = k
	}
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	if !m.journal {
		return nil, nil
	}
	store, err := history.Open(filepath.Join(m.stateDir, history.FileName))
	if err != nil {
		return nil, ioFailure(key, "cannot open history journal", err)
	}
	defer store.Close()

	events, err := store.List(ctx, key, limit)
	if err != nil {
		return nil, ioFailure(key, "cannot read history journal", err)
	}
	return events, nil
}
