// Package proofname turns project-relative file paths into flat, safe
// file names for the proof store.
//
// Sanitize is lossy: "a/b.txt" and "a_b.txt" both become "a_b.txt". The
// registry keeps the original path as its key; the sanitized name is only
// ever used as a file name inside the proofs directory.
package proofname

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLength bounds the length of a sanitized name.
	MaxLength = 200

	// Fallback replaces names that sanitize to nothing.
	Fallback = "unnamed"

	// Extension is appended to a sanitized name to form the artifact file name.
	Extension = ".ots"

	// maxKeptExtension is the longest extension preserved on truncation.
	maxKeptExtension = 16

	placeholder = '_'
)

// Sanitize maps any string to a name that contains no path separators, no
// "..", only [A-Za-z0-9._-], is at most MaxLength bytes and is never empty.
func Sanitize(path string) string {
	s := fold(path)

	s = strings.ReplaceAll(s, `\`, "/")
	parts := strings.Split(s, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	s = strings.Join(kept, string(placeholder))

	s = strings.Map(func(r rune) rune {
		if isAllowed(r) {
			return r
		}
		return placeholder
	}, s)

	s = tidyDots(s)
	if len(s) > MaxLength {
		s = tidyDots(truncate(s))
	}
	if s == "" {
		return Fallback
	}
	return s
}

// ArtifactName returns the artifact file name for key. When taken reports
// that the plain sanitized name already belongs to another path, a short
// digest of key is appended so the two artifacts never share a file.
func ArtifactName(key string, taken func(name string) bool) string {
	name := Sanitize(key)
	if taken == nil || !taken(name) {
		return name
	}
	sum := sha256.Sum256([]byte(key))
	suffix := "-" + hex.EncodeToString(sum[:4])
	if len(name)+len(suffix) > MaxLength {
		name = tidyDots(name[:MaxLength-len(suffix)])
	}
	return name + suffix
}

// FileName is the on-disk file name of an artifact.
func FileName(name string) string {
	return name + Extension
}

// fold strips accents via compatibility decomposition. On any transform
// error the input is returned unchanged; later steps replace what remains.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}

// tidyDots collapses dot runs and trims dots from both ends. A name made
// only of dots would otherwise address the directory itself.
func tidyDots(s string) string {
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	return strings.Trim(s, ".")
}

// truncate cuts s to MaxLength, keeping a short extension as the tail.
func truncate(s string) string {
	ext := ""
	if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i <= maxKeptExtension {
		ext = s[i:]
	}
	head := strings.TrimRight(s[:MaxLength-len(ext)], ".")
	return head + ext
}
