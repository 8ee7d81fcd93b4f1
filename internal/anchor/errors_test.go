package anchor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/anchor/internal/registry"
	"github.com/roach88/anchor/internal/timestamp"
)

func TestError_Format(t *testing.T) {
	cause := errors.New("disk full")
	err := ioFailure("a.txt", "cannot write", cause)

	assert.Equal(t, "IO_FAILURE: cannot write (path=a.txt): disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "FILE_NOT_ANCHORED: file is not anchored (path=x)", notAnchored("x").Error())
}

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("command failed: %w", invalidInput("", "too many"))

	assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))
	assert.True(t, IsInvalidInput(err))
	assert.False(t, IsIOFailure(err))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestRegistryError(t *testing.T) {
	corrupt := &registry.CorruptError{Path: "registry.json", Reason: "invalid JSON"}
	assert.True(t, IsRegistryCorrupt(registryError(corrupt)))
	assert.True(t, IsIOFailure(registryError(errors.New("permission denied"))))
}

func TestCollaboratorError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not installed", timestamp.ErrNotInstalled, "not installed"},
		{"timeout", context.DeadlineExceeded, "timed out"},
		{"other", timestamp.ErrUnavailable, "submit failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := collaboratorError("a.txt", "submit", tt.err)
			assert.True(t, IsCollaboratorUnavailable(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
