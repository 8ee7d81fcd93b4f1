package anchor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchor/internal/config"
	"github.com/roach88/anchor/internal/registry"
)

func TestInit_CreatesLayout(t *testing.T) {
	p := newUninitialized(t)

	require.NoError(t, p.m.Init("Jane Doe"))

	assert.DirExists(t, p.m.StateDir())
	assert.DirExists(t, p.m.ProofsDir())
	assert.FileExists(t, registry.FilePath(p.m.StateDir()))

	reg := p.registry(t)
	assert.Equal(t, registry.Version, reg.Version)
	assert.Equal(t, 0, reg.Len())

	cfg, err := p.m.Config()
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", cfg.Author)
	assert.Equal(t, config.DefaultPatterns, cfg.AutoAnchor)
}

func TestInit_AlreadyInitialized(t *testing.T) {
	p := newTestProject(t)
	cfgPath := config.FilePath(p.m.StateDir())
	require.NoError(t, os.WriteFile(cfgPath, []byte("author: kept\n"), 0o644))

	err := p.m.Init("other")

	require.Error(t, err)
	assert.True(t, IsAlreadyInitialized(err))
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "author: kept\n", string(data), "existing config must not be overwritten")
}

func TestInit_MissingRoot(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "nope"), nil)

	err := m.Init("")

	require.Error(t, err)
	assert.True(t, IsIOFailure(err))
}

func TestConfig_Invalid(t *testing.T) {
	p := newTestProject(t)
	cfgPath := config.FilePath(p.m.StateDir())
	require.NoError(t, os.WriteFile(cfgPath, []byte("auto_anchr: ['*.py']\n"), 0o644))

	_, err := p.m.Config()

	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestAnchorAuto_UsesConfigPatterns(t *testing.T) {
	p := newTestProject(t)
	p.write(t, "main.py", "print('hi')\n")
	p.write(t, "README.md", "# readme\n")
	p.write(t, "docs/guide.md", "guide\n")
	p.write(t, "__pycache__/main.py", "cached\n")
	p.write(t, "notes.txt", "not selected\n")

	res, err := p.m.AnchorAuto(context.Background(), "auto")
	require.NoError(t, err)

	var paths []string
	for _, o := range res.Outcomes {
		paths = append(paths, o.Path)
		assert.Equal(t, ActionSubmitted, o.Action)
	}
	assert.Equal(t, []string{"README.md", "docs/guide.md", "main.py"}, paths)
}

func TestAnchorAuto_NotInitialized(t *testing.T) {
	p := newUninitialized(t)

	_, err := p.m.AnchorAuto(context.Background(), "")

	require.Error(t, err)
	assert.True(t, IsNotInitialized(err))
}
