package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchor/internal/digest"
)

var (
	hashA = digest.Bytes([]byte("a"))
	hashB = digest.Bytes([]byte("b"))
)

// initializedDir mirrors a freshly initialized state directory.
func initializedDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".anchor")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "proofs"), 0o755))
	require.NoError(t, os.WriteFile(FilePath(dir), []byte(`{"files": {}, "version": "1.0"}`), 0o644))
	return dir
}

func TestLoad_EmptyRegistry(t *testing.T) {
	reg, err := Load(initializedDir(t))
	require.NoError(t, err)
	assert.Equal(t, "1.0", reg.Version)
	assert.Empty(t, reg.Files)
	assert.NotNil(t, reg.Files)
}

func TestLoad_NonexistentRegistry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".anchor")
	require.NoError(t, os.Mkdir(dir, 0o755))

	reg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Version, reg.Version)
	assert.Empty(t, reg.Files)
}

func TestLoad_NonexistentDirectory(t *testing.T) {
	reg, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, reg.Files)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := initializedDir(t)
	reg := &Registry{
		Version: "1.0",
		Files: map[string]*FileRecord{
			"test.py": {
				Hash:       hashA,
				AnchoredAt: "2025-01-01T00:00:00",
				Status:     StatusPending,
			},
			"docs/guide.md": {
				Hash:        hashB,
				AnchoredAt:  "2025-01-02T10:00:00Z",
				Status:      StatusConfirmed,
				ConfirmedAt: "2025-01-02T14:00:00Z",
			},
		},
	}

	require.NoError(t, Save(dir, reg))
	loaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, hashA, loaded.Files["test.py"].Hash)
	assert.Equal(t, reg, loaded)
}

func TestSave_NoTempFilesLeft(t *testing.T) {
	dir := initializedDir(t)
	reg := New()
	reg.Put("a.txt", &FileRecord{Hash: "h", AnchoredAt: "t", Status: StatusPending})

	require.NoError(t, Save(dir, reg))
	require.NoError(t, Save(dir, reg))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"proofs", FileName}, names)
}

func TestSave_ReplacesContent(t *testing.T) {
	dir := initializedDir(t)
	reg := New()
	reg.Put("a.txt", &FileRecord{Hash: hashA, AnchoredAt: "t", Status: StatusPending})
	require.NoError(t, Save(dir, reg))

	reg = New()
	reg.Put("b.txt", &FileRecord{Hash: hashB, AnchoredAt: "t", Status: StatusFailed, Error: "rejected"})
	require.NoError(t, Save(dir, reg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, loaded.Paths())
	assert.Equal(t, "rejected", loaded.Get("b.txt").Error)
}

func TestSave_MissingDirectory(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "missing"), New())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCorrupt))
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "not json at all"},
		{"truncated", `{"version": "1.0", "files": {`},
		{"empty", "   \n"},
		{"trailing content", `{"version": "1.0", "files": {}} {}`},
		{"unknown version", `{"version": "2.0", "files": {}}`},
		{"missing version", `{"files": {}}`},
		{"bad status", `{"version": "1.0", "files": {"a": {"hash": "x", "anchored_at": "t", "status": "lost"}}}`},
		{"null record", `{"version": "1.0", "files": {"a": null}}`},
		{"short hash", `{"version": "1.0", "files": {"a": {"hash": "abc123", "anchored_at": "t", "status": "pending"}}}`},
		{"uppercase hash", `{"version": "1.0", "files": {"a": {"hash": "` + strings.ToUpper(hashA) + `", "anchored_at": "t", "status": "pending"}}}`},
		{"missing hash", `{"version": "1.0", "files": {"a": {"anchored_at": "t", "status": "pending"}}}`},
		{"wrong shape", `{"version": "1.0", "files": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(FilePath(dir), []byte(tt.content), 0o644))

			_, err := Load(dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)

			var ce *CorruptError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, FilePath(dir), ce.Path)
		})
	}
}

func TestLoad_UnreadableIsNotCorrupt(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be cannot be read as a file.
	require.NoError(t, os.Mkdir(FilePath(dir), 0o755))

	_, err := Load(dir)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCorrupt))
}

func TestRegistry_Paths(t *testing.T) {
	reg := New()
	reg.Put("b.txt", &FileRecord{Status: StatusPending})
	reg.Put("a.txt", &FileRecord{Status: StatusPending})
	reg.Put("c/d.txt", &FileRecord{Status: StatusPending})

	assert.Equal(t, []string{"a.txt", "b.txt", "c/d.txt"}, reg.Paths())
	assert.Equal(t, 3, reg.Len())
	assert.Nil(t, reg.Get("missing"))
}

func TestFileRecord_Clone(t *testing.T) {
	rec := &FileRecord{Hash: "h", Status: StatusPending}
	c := rec.Clone()
	c.Status = StatusConfirmed

	assert.Equal(t, StatusPending, rec.Status)
	assert.Nil(t, (*FileRecord)(nil).Clone())
}
