// Package registry persists the mapping from tracked file paths to their
// anchor records.
//
// The registry lives in a single JSON file inside the anchor state
// directory:
//
//	{
//	  "version": "1.0",
//	  "files": {
//	    "src/main.py": {"hash": "<hex64>", "anchored_at": "<RFC 3339>", "status": "pending"}
//	  }
//	}
//
// Callers load the registry at the start of an operation, mutate the
// in-memory copy, and save it once at the end. The file on disk is the
// only source of truth; in-memory copies are never reused across
// operations.
package registry

import (
	"fmt"
	"sort"

	"github.com/roach88/anchor/internal/digest"
)

// Version is the only registry schema version this package reads or writes.
const Version = "1.0"

// FileName is the registry file name inside the state directory.
const FileName = "registry.json"

// Status is the proof lifecycle state of a tracked file. A path with no
// record is untracked; untracked is never stored.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"

	// StatusUntracked is reported for paths without a record.
	StatusUntracked Status = "untracked"
)

// Valid reports whether s may appear in a stored record.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// FileRecord is the registry entry for one tracked file.
type FileRecord struct {
	// Hash is the hex SHA-256 of the content submitted for anchoring.
	Hash string `json:"hash"`

	// AnchoredAt is the submission time. Kept as the stored string so
	// timestamps written by other tools round-trip unchanged.
	AnchoredAt string `json:"anchored_at"`

	Status Status `json:"status"`

	// ConfirmedAt is set when the proof became fully attested.
	ConfirmedAt string `json:"confirmed_at,omitempty"`

	// Error holds the last failure reason of a failed record.
	Error string `json:"error,omitempty"`

	// Proof overrides the artifact name derived from the path. Only set
	// when the derived name was already owned by another path.
	Proof string `json:"proof,omitempty"`
}

// Clone returns a copy of r.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Registry is the persisted root object.
type Registry struct {
	Version string                 `json:"version"`
	Files   map[string]*FileRecord `json:"files"`
}

// New returns an empty registry at the current version.
func New() *Registry {
	return &Registry{
		Version: Version,
		Files:   map[string]*FileRecord{},
	}
}

// Get returns the record for path, or nil when the path is untracked.
func (r *Registry) Get(path string) *FileRecord {
	return r.Files[path]
}

// Put stores rec under path.
func (r *Registry) Put(path string, rec *FileRecord) {
	if r.Files == nil {
		r.Files = map[string]*FileRecord{}
	}
	r.Files[path] = rec
}

// Paths returns all tracked paths in lexical order.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.Files))
	for p := range r.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of tracked files.
func (r *Registry) Len() int {
	return len(r.Files)
}

// validate checks a freshly decoded registry.
func (r *Registry) validate() error {
	if r.Version != Version {
		return fmt.Errorf("unsupported registry version %q (want %q)", r.Version, Version)
	}
	for path, rec := range r.Files {
		if rec == nil {
			return fmt.Errorf("file %q: null record", path)
		}
		if !rec.Status.Valid() {
			return fmt.Errorf("file %q: invalid status %q", path, rec.Status)
		}
		if !digest.IsValid(rec.Hash) {
			return fmt.Errorf("file %q: malformed hash %q", path, rec.Hash)
		}
	}
	return nil
}
