package anchor

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"github.com/roach88/anchor/internal/digest"
	"github.com/roach88/anchor/internal/history"
	"github.com/roach88/anchor/internal/proofname"
	"github.com/roach88/anchor/internal/registry"
	"github.com/roach88/anchor/internal/timestamp"
)

// Action describes what an operation did to one file.
type Action string

const (
	ActionSubmitted    Action = "submitted"
	ActionUnchanged    Action = "unchanged"
	ActionConfirmed    Action = "confirmed"
	ActionStillPending Action = "pending"
	ActionFailed       Action = "failed"
	ActionSkipped      Action = "skipped"
)

// Outcome is the per-file result of an anchor or upgrade.
type Outcome struct {
	Path   string
	Action Action
	// Record is a copy of the file's record after the operation; nil when
	// the file never got one.
	Record *registry.FileRecord
	// Err is non-nil when this file could not be processed.
	Err error
}

// BatchResult collects per-file outcomes of a bulk operation.
type BatchResult struct {
	Outcomes []Outcome
}

// Failed returns the outcomes that carry an error.
func (b *BatchResult) Failed() []Outcome {
	var out []Outcome
	for _, o := range b.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Count returns how many outcomes have action a.
func (b *BatchResult) Count(a Action) int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Action == a {
			n++
		}
	}
	return n
}

// ValidateMessage enforces MaxMessageLength.
func ValidateMessage(message string) error {
	if n := utf8.RuneCountInString(message); n > MaxMessageLength {
		return invalidInput("", "message is %d characters, maximum is %d", n, MaxMessageLength)
	}
	return nil
}

// validateKeys checks every path and returns the deduplicated registry
// keys in input order. Any bad path rejects the whole request.
func (m *Manager) validateKeys(paths []string) ([]string, error) {
	if len(paths) > MaxFilesToAnchor {
		return nil, invalidInput("", "%d files requested, maximum is %d per invocation", len(paths), MaxFilesToAnchor)
	}
	seen := make(map[string]bool, len(paths))
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		key, err := m.ValidatePath(p)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}

// ValidatePath returns the registry key for path, or an INVALID_INPUT
// error when path is absolute, escapes the project root, or points into
// the state directory.
func (m *Manager) ValidatePath(path string) (string, error) {
	key, err := registry.ValidatePath(m.root, path)
	if err != nil {
		return "", newError(ErrCodeInvalidInput, path, "invalid path", err)
	}
	if key == StateDirName || len(key) > len(StateDirName) && key[:len(StateDirName)+1] == StateDirName+"/" {
		return "", invalidInput(key, "files inside %s cannot be anchored", StateDirName)
	}
	return key, nil
}

// AnchorFile anchors one file. Unchanged pending or confirmed content is
// a no-op. A per-file failure is returned as the error.
func (m *Manager) AnchorFile(ctx context.Context, path, message string) (*Outcome, error) {
	if err := ValidateMessage(message); err != nil {
		return nil, err
	}
	key, err := m.ValidatePath(path)
	if err != nil {
		return nil, err
	}
	if err := m.requireService(key); err != nil {
		return nil, err
	}

	s, err := m.open()
	if err != nil {
		return nil, err
	}
	defer s.close()

	out := m.anchorOne(ctx, s, key, message)
	if err := s.save(); err != nil {
		return nil, err
	}
	if out.Err != nil {
		return &out, out.Err
	}
	return &out, nil
}

// AnchorAll anchors every path. The request is rejected as a whole when it
// exceeds MaxFilesToAnchor, carries an oversized message, or names an
// invalid path. Otherwise each file is processed independently and the
// registry is saved once at the end.
func (m *Manager) AnchorAll(ctx context.Context, paths []string, message string) (*BatchResult, error) {
	if err := ValidateMessage(message); err != nil {
		return nil, err
	}
	keys, err := m.validateKeys(paths)
	if err != nil {
		return nil, err
	}
	if err := m.requireService(""); err != nil {
		return nil, err
	}

	s, err := m.open()
	if err != nil {
		return nil, err
	}
	defer s.close()

	result := &BatchResult{Outcomes: make([]Outcome, 0, len(keys))}
	for _, key := range keys {
		if ctx.Err() != nil {
			result.Outcomes = append(result.Outcomes, Outcome{
				Path: key, Action: ActionSkipped, Record: s.reg.Get(key).Clone(),
				Err: collaboratorError(key, "anchor", ctx.Err()),
			})
			continue
		}
		result.Outcomes = append(result.Outcomes, m.anchorOne(ctx, s, key, message))
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	m.logger.Info("anchor batch finished",
		"files", len(keys),
		"submitted", result.Count(ActionSubmitted),
		"unchanged", result.Count(ActionUnchanged),
		"failed", len(result.Failed()))
	return result, nil
}

func (m *Manager) anchorOne(ctx context.Context, s *session, key, message string) Outcome {
	prev := s.reg.Get(key)
	from := statusOf(prev)

	sum, err := digest.File(m.absPath(key))
	if err != nil {
		// An unreadable file leaves its record as it was.
		return Outcome{Path: key, Action: ActionFailed, Record: prev.Clone(),
			Err: ioFailure(key, "cannot read file", err)}
	}

	if prev != nil && prev.Hash == sum &&
		(prev.Status == registry.StatusPending || prev.Status == registry.StatusConfirmed) {
		m.logger.Debug("content unchanged, skipping submission", "path", key, "status", prev.Status)
		return Outcome{Path: key, Action: ActionUnchanged, Record: prev.Clone()}
	}

	name := s.artifactName(key, prev)
	rec := &registry.FileRecord{Hash: sum, AnchoredAt: m.now()}
	if name != proofname.Sanitize(key) {
		rec.Proof = name
	}
	raw, err := digest.Decode(sum)
	if err != nil {
		return Outcome{Path: key, Action: ActionFailed, Record: prev.Clone(),
			Err: ioFailure(key, "digest decode", err)}
	}

	proof, err := m.submit(ctx, raw)
	if err != nil {
		m.logger.Warn("submission failed", "path", key, "error", err)
		return s.failSubmission(ctx, key, prev, rec, message, err.Error(),
			collaboratorError(key, "submit", err))
	}

	if err := m.writeArtifact(name, proof); err != nil {
		return s.failSubmission(ctx, key, prev, rec, message, "proof artifact not saved: "+err.Error(),
			ioFailure(key, "cannot write proof artifact", err))
	}

	rec.Status = registry.StatusPending
	if err := s.apply(ctx, key, from, rec, history.Event{
		Action:              "submit",
		Message:             message,
		ArtifactFingerprint: fingerprint(proof),
	}); err != nil {
		return Outcome{Path: key, Action: ActionFailed, Record: prev.Clone(), Err: err}
	}
	m.logger.Info("anchored file", "path", key, "hash", sum, "from", from)
	return Outcome{Path: key, Action: ActionSubmitted, Record: rec.Clone()}
}

// failSubmission records a submission that did not produce a stored proof.
// A confirmed record keeps its digest, status and artifact: its proof still
// attests the content it was anchored with. Any other record becomes failed
// with the attempted digest.
func (s *session) failSubmission(ctx context.Context, key string, prev, rec *registry.FileRecord, message, detail string, cause *Error) Outcome {
	if prev != nil && prev.Status == registry.StatusConfirmed {
		s.record(ctx, history.Event{
			Path:       key,
			Action:     "submit",
			FromStatus: string(prev.Status),
			ToStatus:   string(prev.Status),
			Hash:       rec.Hash,
			Message:    message,
			Detail:     detail,
		})
		return Outcome{Path: key, Action: ActionFailed, Record: prev.Clone(), Err: cause}
	}

	rec.Status = registry.StatusFailed
	rec.Error = detail
	if err := s.apply(ctx, key, statusOf(prev), rec, history.Event{Action: "submit", Message: message, Detail: detail}); err != nil {
		return Outcome{Path: key, Action: ActionFailed, Record: prev.Clone(), Err: err}
	}
	return Outcome{Path: key, Action: ActionFailed, Record: rec.Clone(), Err: cause}
}

// apply validates the transition, stores rec and journals it. A
// disallowed transition leaves the registry untouched.
func (s *session) apply(ctx context.Context, key string, from registry.Status, rec *registry.FileRecord, ev history.Event) error {
	if err := checkTransition(from, rec.Status); err != nil {
		return newError(ErrCodeInternal, key, "record not updated", err)
	}
	s.put(key, rec)
	ev.Path = key
	ev.FromStatus = string(from)
	ev.ToStatus = string(rec.Status)
	ev.Hash = rec.Hash
	s.record(ctx, ev)
	return nil
}

// Upgrade asks the timestamp service whether a pending proof is attested
// yet and records the result. Confirmed and failed records are returned
// unchanged.
func (m *Manager) Upgrade(ctx context.Context, path string) (*Outcome, error) {
	key, err := m.ValidatePath(path)
	if err != nil {
		return nil, err
	}

	s, err := m.open()
	if err != nil {
		return nil, err
	}
	defer s.close()

	if s.reg.Get(key) == nil {
		return nil, notAnchored(key)
	}
	if err := m.requireService(key); err != nil {
		return nil, err
	}
	out := m.upgradeOne(ctx, s, key)
	if err := s.save(); err != nil {
		return nil, err
	}
	if out.Err != nil {
		return &out, out.Err
	}
	return &out, nil
}

// UpgradeAll upgrades every pending record, saving once at the end.
func (m *Manager) UpgradeAll(ctx context.Context) (*BatchResult, error) {
	s, err := m.open()
	if err != nil {
		return nil, err
	}
	defer s.close()

	var pending []string
	for _, key := range s.reg.Paths() {
		if s.reg.Get(key).Status == registry.StatusPending {
			pending = append(pending, key)
		}
	}
	if len(pending) > MaxFilesToAnchor {
		return nil, invalidInput("", "%d pending files, maximum is %d per invocation", len(pending), MaxFilesToAnchor)
	}
	if len(pending) > 0 {
		if err := m.requireService(""); err != nil {
			return nil, err
		}
	}

	result := &BatchResult{Outcomes: make([]Outcome, 0, len(pending))}
	for _, key := range pending {
		result.Outcomes = append(result.Outcomes, m.upgradeOne(ctx, s, key))
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) upgradeOne(ctx context.Context, s *session, key string) Outcome {
	prev := s.reg.Get(key)
	switch prev.Status {
	case registry.StatusConfirmed:
		return Outcome{Path: key, Action: ActionUnchanged, Record: prev.Clone()}
	case registry.StatusFailed:
		return Outcome{Path: key, Action: ActionSkipped, Record: prev.Clone()}
	}

	name := s.artifactName(key, prev)
	proof, err := m.readArtifact(key, name)
	if err != nil {
		return Outcome{Path: key, Action: ActionSkipped, Record: prev.Clone(), Err: err}
	}

	complete, updated, err := m.upgrade(ctx, proof)
	switch {
	case err == nil:
	case errors.Is(err, timestamp.ErrRejected):
		rec := prev.Clone()
		rec.Status = registry.StatusFailed
		rec.Error = err.Error()
		if aerr := s.apply(ctx, key, prev.Status, rec, history.Event{Action: "upgrade", Detail: err.Error()}); aerr != nil {
			return Outcome{Path: key, Action: ActionSkipped, Record: prev.Clone(), Err: aerr}
		}
		m.logger.Warn("proof rejected", "path", key, "error", err)
		return Outcome{Path: key, Action: ActionFailed, Record: rec.Clone()}
	case timedOut(ctx, err):
		m.logger.Warn("upgrade timed out, proof stays pending", "path", key, "timeout", m.timeout)
		return Outcome{Path: key, Action: ActionStillPending, Record: prev.Clone()}
	default:
		return Outcome{Path: key, Action: ActionSkipped, Record: prev.Clone(),
			Err: collaboratorError(key, "upgrade", err)}
	}

	if len(updated) == 0 {
		updated = proof
	}
	if !bytes.Equal(updated, proof) {
		if err := m.writeArtifact(name, updated); err != nil {
			return Outcome{Path: key, Action: ActionSkipped, Record: prev.Clone(),
				Err: ioFailure(key, "cannot write upgraded proof artifact", err)}
		}
	}
	if !complete {
		m.logger.Debug("proof not yet attested", "path", key)
		return Outcome{Path: key, Action: ActionStillPending, Record: prev.Clone()}
	}

	rec := prev.Clone()
	rec.Status = registry.StatusConfirmed
	rec.ConfirmedAt = m.now()
	rec.Error = ""
	if err := s.apply(ctx, key, prev.Status, rec, history.Event{
		Action:              "upgrade",
		ArtifactFingerprint: fingerprint(updated),
	}); err != nil {
		return Outcome{Path: key, Action: ActionSkipped, Record: prev.Clone(), Err: err}
	}
	m.logger.Info("proof confirmed", "path", key)
	return Outcome{Path: key, Action: ActionConfirmed, Record: rec.Clone()}
}
