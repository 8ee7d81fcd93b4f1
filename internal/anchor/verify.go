package anchor

import (
	"context"

	"github.com/roach88/anchor/internal/digest"
	"github.com/roach88/anchor/internal/registry"
)

// VerifyResult reports whether a tracked file's current content is proven.
type VerifyResult struct {
	Path string

	// Attested is true only when the current content matches the anchored
	// digest and the timestamp service accepts the completed proof.
	Attested bool

	// Status is the record status after any upgrade attempt.
	Status registry.Status

	// ContentMatches is false when the file changed since it was anchored.
	ContentMatches bool

	// ArtifactChanged is true when the proof artifact differs from the one
	// the journal last recorded for this path.
	ArtifactChanged bool

	// Reason explains a negative result.
	Reason string

	Record *registry.FileRecord
}

// Verify checks the proof for path. A pending proof is upgraded first; a
// file whose content changed since anchoring is reported unattested
// without contacting the timestamp service.
func (m *Manager) Verify(ctx context.Context, path string) (*VerifyResult, error) {
	key, err := m.ValidatePath(path)
	if err != nil {
		return nil, err
	}

	s, err := m.open()
	if err != nil {
		return nil, err
	}
	defer s.close()

	rec := s.reg.Get(key)
	if rec == nil {
		return nil, notAnchored(key)
	}
	res := &VerifyResult{Path: key}

	sum, err := digest.File(m.absPath(key))
	if err != nil {
		return nil, ioFailure(key, "cannot read file", err)
	}
	res.ContentMatches = sum == rec.Hash
	if !res.ContentMatches {
		res.Status = rec.Status
		res.Record = rec.Clone()
		res.Reason = "file content changed since it was anchored"
		return res, nil
	}

	if rec.Status == registry.StatusPending {
		if err := m.requireService(key); err != nil {
			return nil, err
		}
		out := m.upgradeOne(ctx, s, key)
		if err := s.save(); err != nil {
			return nil, err
		}
		if out.Err != nil {
			return nil, out.Err
		}
		rec = s.reg.Get(key)
	}
	res.Status = rec.Status
	res.Record = rec.Clone()

	switch rec.Status {
	case registry.StatusPending:
		res.Reason = "proof is not attested yet"
		return res, nil
	case registry.StatusFailed:
		res.Reason = "anchoring failed"
		if rec.Error != "" {
			res.Reason += ": " + rec.Error
		}
		return res, nil
	}

	if err := m.requireService(key); err != nil {
		return nil, err
	}
	name := s.artifactName(key, rec)
	proof, err := m.readArtifact(key, name)
	if err != nil {
		return nil, err
	}
	if s.journal != nil {
		last, err := s.journal.LastFingerprint(ctx, key)
		if err != nil {
			m.logger.Warn("history lookup failed", "path", key, "error", err)
		} else if last != "" && last != fingerprint(proof) {
			res.ArtifactChanged = true
		}
	}

	raw, err := digest.Decode(rec.Hash)
	if err != nil {
		return nil, newError(ErrCodeRegistryCorrupt, key, "stored hash is not a valid digest", err)
	}
	ok, err := m.verify(ctx, proof, raw)
	switch {
	case err == nil:
	case timedOut(ctx, err):
		m.logger.Warn("verification timed out", "path", key, "timeout", m.timeout)
		res.Reason = "verification timed out"
		return res, nil
	default:
		return nil, collaboratorError(key, "verify", err)
	}

	res.Attested = ok
	if !ok {
		res.Reason = "timestamp service did not accept the proof"
	}
	m.logger.Debug("verified proof", "path", key, "attested", ok)
	return res, nil
}
