package testutil

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roach88/anchor/internal/timestamp"
)

const fakeProofPrefix = "fake-proof:"

// FakeTimestamper is an in-memory timestamp.Service.
//
// Proofs are readable strings "fake-proof:<hex>:pending" and
// "fake-proof:<hex>:complete". A digest becomes attested once Attest is
// called for it; Reject makes every later upgrade fail permanently.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeTimestamper struct {
	mu       sync.Mutex
	attested map[string]bool
	rejected map[string]bool
	calls    map[string]int

	// SubmitErr, UpgradeErr and VerifyErr are returned by the matching
	// call when set.
	SubmitErr  error
	UpgradeErr error
	VerifyErr  error

	// Delay makes every call block until it elapses or the context ends.
	Delay time.Duration

	// Missing makes Available report false.
	Missing bool
}

var _ timestamp.Service = (*FakeTimestamper)(nil)

// NewFakeTimestamper returns a fake that attests nothing yet.
func NewFakeTimestamper() *FakeTimestamper {
	return &FakeTimestamper{
		attested: map[string]bool{},
		rejected: map[string]bool{},
		calls:    map[string]int{},
	}
}

// Attest marks the hex digest as fully attested.
func (f *FakeTimestamper) Attest(hexDigest string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attested[hexDigest] = true
}

// Reject marks the hex digest as permanently rejected.
func (f *FakeTimestamper) Reject(hexDigest string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[hexDigest] = true
}

// Available reports whether the fake pretends to be installed.
func (f *FakeTimestamper) Available() bool {
	return !f.Missing
}

// Calls returns how often op ("submit", "upgrade", "verify") was called.
func (f *FakeTimestamper) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeTimestamper) begin(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	delay := f.Delay
	f.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeTimestamper) Submit(ctx context.Context, digest []byte) ([]byte, error) {
	if err := f.begin(ctx, "submit"); err != nil {
		return nil, err
	}
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	return FakeProof(hex.EncodeToString(digest), false), nil
}

func (f *FakeTimestamper) Upgrade(ctx context.Context, proof []byte) (bool, []byte, error) {
	if err := f.begin(ctx, "upgrade"); err != nil {
		return false, nil, err
	}
	if f.UpgradeErr != nil {
		return false, nil, f.UpgradeErr
	}
	digest, complete, err := parseFakeProof(proof)
	if err != nil {
		return false, nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case complete:
		return true, proof, nil
	case f.rejected[digest]:
		return false, nil, fmt.Errorf("%w: digest %s expired", timestamp.ErrRejected, digest)
	case f.attested[digest]:
		return true, FakeProof(digest, true), nil
	}
	return false, proof, nil
}

func (f *FakeTimestamper) Verify(ctx context.Context, proof, digest []byte) (bool, error) {
	if err := f.begin(ctx, "verify"); err != nil {
		return false, err
	}
	if f.VerifyErr != nil {
		return false, f.VerifyErr
	}
	proven, complete, err := parseFakeProof(proof)
	if err != nil {
		return false, err
	}
	return complete && proven == hex.EncodeToString(digest), nil
}

// FakeProof builds the artifact bytes the fake produces for hexDigest.
func FakeProof(hexDigest string, complete bool) []byte {
	state := "pending"
	if complete {
		state = "complete"
	}
	return []byte(fakeProofPrefix + hexDigest + ":" + state)
}

func parseFakeProof(proof []byte) (string, bool, error) {
	s := string(proof)
	if !strings.HasPrefix(s, fakeProofPrefix) {
		return "", false, fmt.Errorf("%w: malformed fake proof %q", timestamp.ErrUnavailable, s)
	}
	parts := strings.Split(strings.TrimPrefix(s, fakeProofPrefix), ":")
	if len(parts) != 2 {
		return "", false, fmt.Errorf("%w: malformed fake proof %q", timestamp.ErrUnavailable, s)
	}
	return parts[0], parts[1] == "complete", nil
}
