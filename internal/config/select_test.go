package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"*.py", "*.md", "!__pycache__/**", "/docs/**/*.txt", "!secret*"})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"main.py", true},
		{"src/main.py", true},
		{"README.md", true},
		{"src/__pycache__/main.py", false},
		{"__pycache__/x.py", false},
		{"docs/a.txt", true},
		{"docs/deep/er/a.txt", true},
		{"other/docs/a.txt", false},
		{"notes.txt", false},
		{"secret_plan.md", false},
		{"main.pyc", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestNewMatcher_Invalid(t *testing.T) {
	_, err := NewMatcher([]string{"!"})
	assert.Error(t, err)

	_, err = NewMatcher([]string{"src/[x"})
	assert.Error(t, err)
}

func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
	return root
}

func TestSelect(t *testing.T) {
	root := makeTree(t,
		"a.py",
		"a/b.py",
		"README.md",
		"notes.txt",
		"src/__pycache__/c.py",
		".anchor/registry.json",
		".anchor/proofs/a.py.ots",
	)

	got, err := Select(root, DefaultPatterns, 0, ".anchor")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "a.py", "a/b.py"}, got)
}

func TestSelect_Limit(t *testing.T) {
	root := makeTree(t, "a.py", "b.py", "c.py")

	_, err := Select(root, []string{"*.py"}, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyFiles))

	got, err := Select(root, []string{"*.py"}, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSelect_NoPatterns(t *testing.T) {
	root := makeTree(t, "a.py")

	got, err := Select(root, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
