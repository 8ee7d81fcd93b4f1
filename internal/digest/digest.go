// Package digest computes content digests for anchored files.
//
// File digests are SHA-256, hex-encoded in lowercase. They depend only on
// the file's bytes, never on its name or metadata, so two byte-identical
// files always share a digest.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Size is the length in bytes of a file digest.
const Size = sha256.Size

// HexLen is the length of a hex-encoded file digest.
const HexLen = 2 * Size

// File streams the file at path through SHA-256 and returns the
// lowercase hex digest. The file is never held in memory as a whole.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return sum, nil
}

// Reader digests everything readable from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes digests an in-memory buffer. Same result as File on identical content.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Decode converts a hex digest back to raw bytes, rejecting anything that
// is not exactly Size bytes long.
func Decode(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("digest: invalid hex %q: %w", s, err)
	}
	if len(raw) != Size {
		return nil, fmt.Errorf("digest: expected %d bytes, got %d", Size, len(raw))
	}
	return raw, nil
}

// IsValid reports whether s is a well-formed lowercase hex file digest.
func IsValid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// artifactDomainKey keys BLAKE3 for proof artifact fingerprints. ASCII
// domain name zero-padded to 32 bytes.
var artifactDomainKey = [32]byte{
	'a', 'n', 'c', 'h', 'o', 'r', '.', 'p', 'r', 'o', 'o', 'f', '.',
	'a', 'r', 't', 'i', 'f', 'a', 'c', 't',
}

// Fingerprint returns the keyed BLAKE3 hash of a proof artifact, hex-encoded.
// It identifies the artifact bytes in the history journal; it is not a
// file digest and never appears in the registry.
func Fingerprint(artifact []byte) string {
	h, err := blake3.NewKeyed(artifactDomainKey[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic("digest: blake3 keyed hasher: " + err.Error())
	}
	h.Write(artifact)
	return hex.EncodeToString(h.Sum(nil))
}
