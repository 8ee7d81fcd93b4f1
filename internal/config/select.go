package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrTooManyFiles is returned by Select when more files match than allowed.
var ErrTooManyFiles = errors.New("too many files selected")

// Matcher applies auto_anchor patterns to slash-separated relative paths.
//
// A path is selected when it matches at least one include pattern and no
// exclude pattern ("!" prefix). Segments use path.Match syntax; a "**"
// segment spans any number of directories. A pattern starting with "/" is
// anchored at the project root; any other pattern may match at any depth,
// so "*.py" selects "src/main.py" and "__pycache__/**" excludes
// "src/__pycache__/x.pyc".
type Matcher struct {
	include []pattern
	exclude []pattern
}

type pattern struct {
	segments []string
	anchored bool
}

// NewMatcher compiles patterns, rejecting malformed globs.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		negate := strings.HasPrefix(p, "!")
		if negate {
			p = p[1:]
		}
		anchored := strings.HasPrefix(p, "/")
		p = strings.Trim(p, "/")
		if p == "" {
			return nil, fmt.Errorf("pattern %q: empty", raw)
		}
		segs := strings.Split(p, "/")
		for _, s := range segs {
			if _, err := path.Match(s, ""); err != nil {
				return nil, fmt.Errorf("pattern %q: %w", raw, err)
			}
		}
		compiled := pattern{segments: segs, anchored: anchored}
		if negate {
			m.exclude = append(m.exclude, compiled)
		} else {
			m.include = append(m.include, compiled)
		}
	}
	return m, nil
}

// Match reports whether rel is selected.
func (m *Matcher) Match(rel string) bool {
	segs := strings.Split(rel, "/")
	included := false
	for _, p := range m.include {
		if p.match(segs) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, p := range m.exclude {
		if p.match(segs) {
			return false
		}
	}
	return true
}

func (p pattern) match(segs []string) bool {
	if p.anchored {
		return matchSegments(p.segments, segs)
	}
	for i := range segs {
		if matchSegments(p.segments, segs[i:]) {
			return true
		}
	}
	return false
}

func matchSegments(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, _ := path.Match(pat[0], segs[0]); !ok {
		return false
	}
	return matchSegments(pat[1:], segs[1:])
}

// Select walks root and returns the slash-separated relative paths of
// regular files selected by patterns, in lexical order. Directories named
// in skip (relative to root) are not descended into. When max > 0 and more
// than max files match, Select stops and returns ErrTooManyFiles.
func Select(root string, patterns []string, max int, skip ...string) ([]string, error) {
	m, err := NewMatcher(patterns)
	if err != nil {
		return nil, err
	}
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.ToSlash(filepath.Clean(s))] = true
	}

	var selected []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if skipped[rel] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !m.Match(rel) {
			return nil
		}
		if max > 0 && len(selected) >= max {
			return fmt.Errorf("%w: more than %d", ErrTooManyFiles, max)
		}
		selected = append(selected, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(selected)
	return selected, nil
}
