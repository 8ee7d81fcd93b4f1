package anchor

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/anchor/internal/registry"
	"github.com/roach88/anchor/internal/timestamp"
)

// Error is the only error type returned by Manager operations.
//
// Callers switch on Code; the underlying cause stays reachable through
// errors.Is / errors.As via Unwrap.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the affected registry key, when there is one.
	Path string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes manager errors.
type ErrorCode string

const (
	// ErrCodeNotInitialized indicates the project has no state directory.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// ErrCodeAlreadyInitialized indicates init found an existing state directory.
	ErrCodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"

	// ErrCodeFileNotAnchored indicates a path without a registry record.
	ErrCodeFileNotAnchored ErrorCode = "FILE_NOT_ANCHORED"

	// ErrCodeRegistryCorrupt indicates the registry file cannot be parsed.
	ErrCodeRegistryCorrupt ErrorCode = "REGISTRY_CORRUPT"

	// ErrCodeCollaboratorUnavailable indicates the timestamp service failed.
	ErrCodeCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE"

	// ErrCodeInvalidInput indicates a request rejected before any mutation.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeIOFailure indicates a filesystem read or write failed.
	ErrCodeIOFailure ErrorCode = "IO_FAILURE"

	// ErrCodeInternal indicates a lifecycle invariant was violated.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of an *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsNotInitialized reports whether err is a NOT_INITIALIZED error.
func IsNotInitialized(err error) bool { return CodeOf(err) == ErrCodeNotInitialized }

// IsAlreadyInitialized reports whether err is an ALREADY_INITIALIZED error.
func IsAlreadyInitialized(err error) bool { return CodeOf(err) == ErrCodeAlreadyInitialized }

// IsFileNotAnchored reports whether err is a FILE_NOT_ANCHORED error.
func IsFileNotAnchored(err error) bool { return CodeOf(err) == ErrCodeFileNotAnchored }

// IsRegistryCorrupt reports whether err is a REGISTRY_CORRUPT error.
func IsRegistryCorrupt(err error) bool { return CodeOf(err) == ErrCodeRegistryCorrupt }

// IsCollaboratorUnavailable reports whether err is a COLLABORATOR_UNAVAILABLE error.
func IsCollaboratorUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeCollaboratorUnavailable
}

// IsInvalidInput reports whether err is an INVALID_INPUT error.
func IsInvalidInput(err error) bool { return CodeOf(err) == ErrCodeInvalidInput }

// IsInternal reports whether err is an INTERNAL error.
func IsInternal(err error) bool { return CodeOf(err) == ErrCodeInternal }

// IsIOFailure reports whether err is an IO_FAILURE error.
func IsIOFailure(err error) bool { return CodeOf(err) == ErrCodeIOFailure }

func newError(code ErrorCode, path, message string, err error) *Error {
	return &Error{Code: code, Message: message, Path: path, Err: err}
}

func invalidInput(path, format string, args ...any) *Error {
	return newError(ErrCodeInvalidInput, path, fmt.Sprintf(format, args...), nil)
}

func notAnchored(path string) *Error {
	return newError(ErrCodeFileNotAnchored, path, "file is not anchored", nil)
}

func ioFailure(path, message string, err error) *Error {
	return newError(ErrCodeIOFailure, path, message, err)
}

// registryError maps a registry load or save failure.
func registryError(err error) *Error {
	if errors.Is(err, registry.ErrCorrupt) {
		return newError(ErrCodeRegistryCorrupt, "",
			"registry cannot be parsed; restore it from backup or re-initialize the project", err)
	}
	return ioFailure("", "registry access failed", err)
}

// collaboratorError maps a timestamp service failure.
func collaboratorError(path, op string, err error) *Error {
	switch {
	case errors.Is(err, timestamp.ErrNotInstalled):
		return newError(ErrCodeCollaboratorUnavailable, path,
			op+" failed: timestamp tool is not installed", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrCodeCollaboratorUnavailable, path, op+" timed out", err)
	default:
		return newError(ErrCodeCollaboratorUnavailable, path, op+" failed", err)
	}
}
