// Package timestamp defines the boundary to the external timestamping
// service that turns a digest into a verifiable proof.
//
// The service is treated as unreliable: calls may fail, time out, or
// report that a proof is not attested yet. Nothing here implements the
// timestamping protocol itself.
package timestamp

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable reports that the service could not be reached or
	// answered with an error. Retrying later may succeed.
	ErrUnavailable = errors.New("timestamp service unavailable")

	// ErrNotInstalled reports that the helper command is missing. It
	// matches ErrUnavailable as well.
	ErrNotInstalled = &notInstalledError{}

	// ErrRejected reports that a submission was permanently rejected or
	// expired and will never be attested.
	ErrRejected = errors.New("timestamp submission rejected")
)

type notInstalledError struct{}

func (*notInstalledError) Error() string { return "timestamp tool not installed" }

func (*notInstalledError) Is(target error) bool { return target == ErrUnavailable }

// Service is the three-operation contract of a timestamping backend.
type Service interface {
	// Submit commits a raw digest and returns the initial, incomplete
	// proof artifact.
	Submit(ctx context.Context, digest []byte) ([]byte, error)

	// Upgrade asks whether proof is now fully attested. It returns the
	// possibly updated artifact; complete is true once attestation is
	// final. A permanent failure is reported as ErrRejected.
	Upgrade(ctx context.Context, proof []byte) (complete bool, updated []byte, err error)

	// Verify reports whether proof attests digest.
	Verify(ctx context.Context, proof, digest []byte) (bool, error)
}
