package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchor/internal/config"
	"github.com/roach88/anchor/internal/digest"
	"github.com/roach88/anchor/internal/testutil"
	"github.com/roach88/anchor/internal/timestamp"
)

type cliProject struct {
	dir string
	ts  *testutil.FakeTimestamper
}

func newCLIProject(t *testing.T) *cliProject {
	t.Helper()
	return &cliProject{dir: t.TempDir(), ts: testutil.NewFakeTimestamper()}
}

func (p *cliProject) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := p.runSplit(t, args...)
	return out, err
}

// runSplit returns stdout and stderr separately.
func (p *cliProject) runSplit(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	opts := &RootOptions{
		NewService: func(*config.Config) timestamp.Service { return p.ts },
	}
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(append([]string{"--dir", p.dir}, args...))
	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

func (p *cliProject) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(p.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return digest.Bytes([]byte(content))
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func TestInitCommand(t *testing.T) {
	p := newCLIProject(t)

	out, err := p.run(t, "init", "--author", "Jane")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized anchor project")
	assert.DirExists(t, filepath.Join(p.dir, ".anchor", "proofs"))

	out, err = p.run(t, "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "ALREADY_INITIALIZED")
	assert.Contains(t, out, "already exists")
}

func TestStatusCommand_Empty(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)

	out, err := p.run(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "No files anchored yet.\n", out)
}

func TestStatusCommand_NotInitialized(t *testing.T) {
	p := newCLIProject(t)

	out, err := p.run(t, "status")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "NOT_INITIALIZED")
	assert.Contains(t, out, "anchor init")
}

func TestStampStatusUpgradeVerify(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)
	sum := p.write(t, "paper.md", "# results\n")

	out, err := p.run(t, "stamp", "paper.md", "-m", "draft")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ paper.md (submitted) "+sum[:12])

	out, err = p.run(t, "--format", "json", "status", "paper.md")
	require.NoError(t, err)
	var view FileView
	resp := decodeResponse(t, out, &view)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "pending", view.Status)
	assert.Equal(t, sum, view.Hash)

	out, err = p.run(t, "verify", "paper.md")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "not attested")

	p.ts.Attest(sum)
	out, err = p.run(t, "upgrade")
	require.NoError(t, err)
	assert.Contains(t, out, "paper.md (confirmed)")

	out, err = p.run(t, "--format", "json", "verify", "paper.md")
	require.NoError(t, err)
	var vv VerifyView
	decodeResponse(t, out, &vv)
	assert.True(t, vv.Attested)
	assert.True(t, vv.ContentMatches)
	assert.Equal(t, "confirmed", vv.Status)

	out, err = p.run(t, "history", "paper.md")
	require.NoError(t, err)
	assert.Contains(t, out, "untracked -> pending")
	assert.Contains(t, out, "pending -> confirmed")
	assert.Contains(t, out, `"draft"`)
}

func TestStampCommand_PartialFailureExitCode(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)
	p.write(t, "a.txt", "a")

	out, err := p.run(t, "--format", "json", "stamp", "a.txt", "gone.txt")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var batch BatchView
	resp := decodeResponse(t, out, &batch)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, batch.Files, 2)
	assert.Equal(t, "submitted", batch.Files[0].Action)
	assert.Equal(t, "failed", batch.Files[1].Action)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, "IO_FAILURE", batch.Errors[0].Code)
	assert.Equal(t, "gone.txt", batch.Errors[0].Path)
}

func TestStampCommand_VerboseGoesToStderr(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)
	p.write(t, "a.txt", "a")

	out, errOut, err := p.runSplit(t, "-v", "--format", "json", "stamp", "a.txt")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Anchoring 1 file(s)")
	assert.NotContains(t, out, "Anchoring")
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "ok", resp.Status)

	_, errOut, err = p.runSplit(t, "stamp", "a.txt")
	require.NoError(t, err)
	assert.NotContains(t, errOut, "Anchoring")

	_, errOut, err = p.runSplit(t, "-v", "upgrade")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Upgrading every pending proof")
}

func TestStampCommand_Arguments(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)

	_, err = p.run(t, "stamp")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = p.run(t, "stamp", "--all", "a.txt")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStampCommand_InvalidPath(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)

	out, err := p.run(t, "stamp", "../escape.txt")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "INVALID_INPUT")
}

func TestStampCommand_All(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)
	p.write(t, "main.py", "print(1)\n")
	p.write(t, "notes.txt", "skip\n")

	out, err := p.run(t, "stamp", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "main.py (submitted)")
	assert.NotContains(t, out, "notes.txt")

	out, err = p.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "PATH")
	assert.Contains(t, out, "main.py")
	assert.Contains(t, out, "pending")
}

func TestVerifyCommand_NotAnchored(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)
	p.write(t, "a.txt", "a")

	out, err := p.run(t, "--format", "json", "verify", "a.txt")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "FILE_NOT_ANCHORED", resp.Error.Code)
}

func TestHistoryCommand_NegativeLimit(t *testing.T) {
	p := newCLIProject(t)
	_, err := p.run(t, "init")
	require.NoError(t, err)

	_, err = p.run(t, "history", "--limit", "-1")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
