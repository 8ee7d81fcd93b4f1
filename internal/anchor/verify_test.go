package anchor

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchor/internal/digest"
	"github.com/roach88/anchor/internal/registry"
	"github.com/roach88/anchor/internal/testutil"
)

func confirmedProject(t *testing.T, opts ...Option) (*testProject, string) {
	t.Helper()
	p := newTestProject(t, opts...)
	sum := p.write(t, "doc.md", "# proof\n")
	_, err := p.m.AnchorFile(context.Background(), "doc.md", "")
	require.NoError(t, err)
	p.ts.Attest(sum)
	out, err := p.m.Upgrade(context.Background(), "doc.md")
	require.NoError(t, err)
	require.Equal(t, ActionConfirmed, out.Action)
	return p, sum
}

func TestVerify_Confirmed(t *testing.T) {
	p, _ := confirmedProject(t)

	res, err := p.m.Verify(context.Background(), "doc.md")
	require.NoError(t, err)

	assert.True(t, res.Attested)
	assert.True(t, res.ContentMatches)
	assert.False(t, res.ArtifactChanged)
	assert.Equal(t, registry.StatusConfirmed, res.Status)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 1, p.ts.Calls("verify"))
}

func TestVerify_ContentChanged(t *testing.T) {
	p, _ := confirmedProject(t)
	p.write(t, "doc.md", "# tampered\n")

	res, err := p.m.Verify(context.Background(), "doc.md")
	require.NoError(t, err)

	assert.False(t, res.Attested)
	assert.False(t, res.ContentMatches)
	assert.Contains(t, res.Reason, "changed")
	assert.Equal(t, 0, p.ts.Calls("verify"), "changed content must not reach the service")
}

func TestVerify_PendingNotAttested(t *testing.T) {
	p := newTestProject(t)
	p.write(t, "a.txt", "content")
	_, err := p.m.AnchorFile(context.Background(), "a.txt", "")
	require.NoError(t, err)

	res, err := p.m.Verify(context.Background(), "a.txt")
	require.NoError(t, err)

	assert.False(t, res.Attested)
	assert.Equal(t, registry.StatusPending, res.Status)
	assert.Equal(t, 1, p.ts.Calls("upgrade"))
	assert.Equal(t, 0, p.ts.Calls("verify"))
}

func TestVerify_PendingUpgradesFirst(t *testing.T) {
	p := newTestProject(t)
	sum := p.write(t, "a.txt", "content")
	_, err := p.m.AnchorFile(context.Background(), "a.txt", "")
	require.NoError(t, err)
	p.ts.Attest(sum)

	res, err := p.m.Verify(context.Background(), "a.txt")
	require.NoError(t, err)

	assert.True(t, res.Attested)
	assert.Equal(t, registry.StatusConfirmed, res.Status)
	assert.Equal(t, registry.StatusConfirmed, p.registry(t).Get("a.txt").Status)
}

func TestVerify_Failed(t *testing.T) {
	p := newTestProject(t)
	p.write(t, "a.txt", "content")
	p.ts.SubmitErr = errors.New("offline")
	_, err := p.m.AnchorFile(context.Background(), "a.txt", "")
	require.Error(t, err)

	res, err := p.m.Verify(context.Background(), "a.txt")
	require.NoError(t, err)

	assert.False(t, res.Attested)
	assert.Equal(t, registry.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "offline")
}

func TestVerify_Timeout(t *testing.T) {
	p, _ := confirmedProject(t, WithTimeout(20*time.Millisecond))
	p.ts.Delay = time.Second

	res, err := p.m.Verify(context.Background(), "doc.md")
	require.NoError(t, err)

	assert.False(t, res.Attested)
	assert.Contains(t, res.Reason, "timed out")
}

func TestVerify_ServiceError(t *testing.T) {
	p, _ := confirmedProject(t)
	p.ts.VerifyErr = errors.New("bad gateway")

	_, err := p.m.Verify(context.Background(), "doc.md")

	require.Error(t, err)
	assert.True(t, IsCollaboratorUnavailable(err))
}

func TestVerify_ArtifactReplaced(t *testing.T) {
	p, _ := confirmedProject(t)
	other := digest.Bytes([]byte("something else"))
	require.NoError(t, os.WriteFile(p.m.ArtifactPath("doc.md"), testutil.FakeProof(other, true), 0o644))

	res, err := p.m.Verify(context.Background(), "doc.md")
	require.NoError(t, err)

	assert.False(t, res.Attested)
	assert.True(t, res.ArtifactChanged)
}

func TestVerify_NotAnchored(t *testing.T) {
	p := newTestProject(t)
	p.write(t, "a.txt", "content")

	_, err := p.m.Verify(context.Background(), "a.txt")

	require.Error(t, err)
	assert.True(t, IsFileNotAnchored(err))
}

func TestVerify_NotInitialized(t *testing.T) {
	p := newUninitialized(t)

	_, err := p.m.Verify(context.Background(), "a.txt")

	require.Error(t, err)
	assert.True(t, IsNotInitialized(err))
}
