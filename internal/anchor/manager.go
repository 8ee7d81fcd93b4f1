package anchor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/anchor/internal/digest"
	"github.com/roach88/anchor/internal/history"
	"github.com/roach88/anchor/internal/proofname"
	"github.com/roach88/anchor/internal/registry"
	"github.com/roach88/anchor/internal/timestamp"
)

const (
	// StateDirName is the state directory inside the project root.
	StateDirName = ".anchor"

	// ProofsDirName holds proof artifacts inside the state directory.
	ProofsDirName = "proofs"

	// MaxMessageLength bounds anchor messages, in runes.
	MaxMessageLength = 1024

	// MaxFilesToAnchor bounds every bulk operation.
	MaxFilesToAnchor = 10000

	// DefaultTimeout bounds each call to the timestamp service.
	DefaultTimeout = 30 * time.Second
)

// Clock supplies wall time for anchored_at and confirmed_at.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Manager runs the proof lifecycle for one project.
type Manager struct {
	root     string
	stateDir string
	service  timestamp.Service
	clock    Clock
	logger   *slog.Logger
	timeout  time.Duration
	journal  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTimeout bounds each timestamp service call. Non-positive values keep
// the default.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithHistory enables or disables the history journal. Enabled by default.
func WithHistory(enabled bool) Option {
	return func(m *Manager) { m.journal = enabled }
}

// New returns a Manager for the project rooted at root. svc may be nil
// for callers that only read status; operations that need the timestamp
// service then fail with ErrCodeCollaboratorUnavailable.
func New(root string, svc timestamp.Service, opts ...Option) *Manager {
	m := &Manager{
		root:     root,
		stateDir: filepath.Join(root, StateDirName),
		service:  svc,
		clock:    systemClock{},
		logger:   slog.Default(),
		timeout:  DefaultTimeout,
		journal:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the project root.
func (m *Manager) Root() string { return m.root }

// StateDir returns the state directory.
func (m *Manager) StateDir() string { return m.stateDir }

// ProofsDir returns the proof artifact directory.
func (m *Manager) ProofsDir() string { return filepath.Join(m.stateDir, ProofsDirName) }

// ArtifactPath returns the on-disk location of the artifact named name.
func (m *Manager) ArtifactPath(name string) string {
	return filepath.Join(m.ProofsDir(), proofname.FileName(name))
}

func (m *Manager) now() string {
	return m.clock.Now().UTC().Format(time.RFC3339)
}

// session is the in-memory registry owned by one operation.
type session struct {
	m       *Manager
	reg     *registry.Registry
	journal *history.Store
	names   map[string]string // artifact name -> owning key
	dirty   bool
}

func (m *Manager) checkInitialized() error {
	info, err := os.Stat(m.stateDir)
	if errors.Is(err, fs.ErrNotExist) {
		return newError(ErrCodeNotInitialized, "",
			"no anchor state directory at "+m.stateDir+"; run 'anchor init' first", nil)
	}
	if err != nil {
		return ioFailure("", "cannot access state directory", err)
	}
	if !info.IsDir() {
		return newError(ErrCodeNotInitialized, "", m.stateDir+" is not a directory", nil)
	}
	return nil
}

func (m *Manager) open() (*session, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	reg, err := registry.Load(m.stateDir)
	if err != nil {
		return nil, registryError(err)
	}
	s := &session{m: m, reg: reg}
	if m.journal {
		j, err := history.Open(filepath.Join(m.stateDir, history.FileName))
		if err != nil {
			m.logger.Warn("history journal unavailable", "error", err)
		} else {
			s.journal = j
		}
	}
	return s, nil
}

func (s *session) close() {
	if err := s.journal.Close(); err != nil {
		s.m.logger.Warn("closing history journal", "error", err)
	}
}

// save flushes the registry if anything changed.
func (s *session) save() error {
	if !s.dirty {
		return nil
	}
	if err := registry.Save(s.m.stateDir, s.reg); err != nil {
		return registryError(err)
	}
	s.dirty = false
	return nil
}

func (s *session) put(key string, rec *registry.FileRecord) {
	s.reg.Put(key, rec)
	if s.names != nil {
		s.names[s.artifactName(key, rec)] = key
	}
	s.dirty = true
}

// artifactName returns the artifact name used by key. Existing records
// keep their name; a new key gets the sanitized path, disambiguated when
// another key already owns it.
func (s *session) artifactName(key string, rec *registry.FileRecord) string {
	if rec != nil {
		if rec.Proof != "" {
			return rec.Proof
		}
		return proofname.Sanitize(key)
	}
	if s.names == nil {
		s.names = make(map[string]string, s.reg.Len())
		for k, r := range s.reg.Files {
			s.names[s.artifactName(k, r)] = k
		}
	}
	return proofname.ArtifactName(key, func(name string) bool {
		owner, ok := s.names[name]
		return ok && owner != key
	})
}

// record appends a journal event. Journal failures are logged only.
func (s *session) record(ctx context.Context, ev history.Event) {
	if s.journal == nil {
		return
	}
	ev.RecordedAt = s.m.clock.Now()
	if _, err := s.journal.Record(ctx, ev); err != nil {
		s.m.logger.Warn("history journal write failed", "path", ev.Path, "error", err)
	}
}

func (m *Manager) readArtifact(key, name string) ([]byte, error) {
	data, err := os.ReadFile(m.ArtifactPath(name))
	if err != nil {
		return nil, ioFailure(key, "cannot read proof artifact", err)
	}
	if len(data) == 0 {
		return nil, ioFailure(key, "proof artifact is empty", nil)
	}
	return data, nil
}

func (m *Manager) writeArtifact(name string, data []byte) error {
	if err := os.MkdirAll(m.ProofsDir(), 0o755); err != nil {
		return err
	}
	return registry.WriteFileAtomic(m.ArtifactPath(name), data, 0o644)
}

// installChecker is implemented by services that can report up front
// whether they are usable at all.
type installChecker interface {
	Available() bool
}

func (m *Manager) requireService(key string) error {
	if m.service == nil {
		return newError(ErrCodeCollaboratorUnavailable, key, "no timestamp service configured", nil)
	}
	if c, ok := m.service.(installChecker); ok && !c.Available() {
		return newError(ErrCodeCollaboratorUnavailable, key, "timestamp tool is not installed", timestamp.ErrNotInstalled)
	}
	return nil
}

func (m *Manager) submit(ctx context.Context, raw []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.service.Submit(ctx, raw)
}

func (m *Manager) upgrade(ctx context.Context, proof []byte) (bool, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.service.Upgrade(ctx, proof)
}

func (m *Manager) verify(ctx context.Context, proof, raw []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.service.Verify(ctx, proof, raw)
}

// timedOut reports whether err is our own per-call deadline rather than
// the caller cancelling parent.
func timedOut(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}

func (m *Manager) absPath(key string) string {
	return filepath.Join(m.root, filepath.FromSlash(key))
}

func fingerprint(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return digest.Fingerprint(data)
}
