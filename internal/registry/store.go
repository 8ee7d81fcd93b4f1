package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrCorrupt matches every CorruptError.
var ErrCorrupt = errors.New("registry corrupt")

// CorruptError reports a registry file that exists but cannot be used.
type CorruptError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry %s is corrupt: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("registry %s is corrupt: %s", e.Path, e.Reason)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCorrupt) true for any CorruptError.
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

// FilePath returns the registry file location inside dir.
func FilePath(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the registry from the state directory dir. A missing file
// yields an empty registry. Unparseable content or an unknown version is a
// *CorruptError; anything else is returned as a wrapped I/O error.
func Load(dir string) (*Registry, error) {
	path := FilePath(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return decode(path, data)
}

func decode(path string, data []byte) (*Registry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &CorruptError{Path: path, Reason: "empty file"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var reg Registry
	if err := dec.Decode(&reg); err != nil {
		return nil, &CorruptError{Path: path, Reason: "invalid JSON", Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &CorruptError{Path: path, Reason: "trailing content after registry object"}
	}
	if err := reg.validate(); err != nil {
		return nil, &CorruptError{Path: path, Reason: err.Error()}
	}
	if reg.Files == nil {
		reg.Files = map[string]*FileRecord{}
	}
	return &reg, nil
}

// Save replaces the registry file in dir with reg. The new content is
// written to a temporary file in the same directory, synced, and renamed
// into place, so readers see either the old or the new registry.
func Save(dir string, reg *Registry) error {
	if reg == nil {
		return errors.New("save registry: nil registry")
	}
	if reg.Version == "" {
		reg.Version = Version
	}
	if reg.Files == nil {
		reg.Files = map[string]*FileRecord{}
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	data = append(data, '\n')

	if err := WriteFileAtomic(FilePath(dir), data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to path via temp file, fsync and rename,
// then syncs the parent directory. The directory must already exist.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems refuse fsync on directories; the rename already happened.
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
