package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/anchor/internal/anchor"
	"github.com/roach88/anchor/internal/registry"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (service unavailable, proof not attested, file unreadable)
	ExitCommandError = 2 // Command error (not initialized, invalid input, corrupt registry, etc.)
)

// ErrCodeGeneric is reported for errors that carry no anchor error code.
const ErrCodeGeneric = "ERROR"

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// exitCodeFor maps an anchor error code to a process exit code.
func exitCodeFor(code anchor.ErrorCode) int {
	switch code {
	case anchor.ErrCodeCollaboratorUnavailable, anchor.ErrCodeIOFailure, anchor.ErrCodeInternal:
		return ExitFailure
	default:
		return ExitCommandError
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // anchor error code, e.g. "NOT_INITIALIZED"
	Message string `json:"message"`           // human-readable message
	Path    string `json:"path,omitempty"`    // affected file
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(e CLIError) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &e,
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// Fail reports err in the configured format and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(err error) error {
	var ae *anchor.Error
	if !errors.As(err, &ae) {
		_ = f.Error(CLIError{Code: ErrCodeGeneric, Message: err.Error()})
		return WrapExitError(ExitFailure, "command failed", err)
	}

	e := CLIError{Code: string(ae.Code), Message: ae.Message, Path: ae.Path}
	if ae.Err != nil {
		e.Details = ae.Err.Error()
		if f.Format != "json" {
			e.Message = fmt.Sprintf("%s: %v", ae.Message, ae.Err)
			e.Details = nil
		}
	}
	_ = f.Error(e)
	return WrapExitError(exitCodeFor(ae.Code), string(ae.Code), err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// FileView is the JSON shape of one tracked file.
type FileView struct {
	Path        string `json:"path"`
	Hash        string `json:"hash,omitempty"`
	Status      string `json:"status"`
	AnchoredAt  string `json:"anchored_at,omitempty"`
	ConfirmedAt string `json:"confirmed_at,omitempty"`
	Proof       string `json:"proof,omitempty"`
	Error       string `json:"error,omitempty"`
	Action      string `json:"action,omitempty"`
	Modified    bool   `json:"modified,omitempty"`
	Missing     bool   `json:"missing,omitempty"`
}

func newFileView(path string, rec *registry.FileRecord) FileView {
	v := FileView{Path: path, Status: string(registry.StatusUntracked)}
	if rec == nil {
		return v
	}
	v.Hash = rec.Hash
	v.Status = string(rec.Status)
	v.AnchoredAt = rec.AnchoredAt
	v.ConfirmedAt = rec.ConfirmedAt
	v.Proof = rec.Proof
	v.Error = rec.Error
	return v
}

// BatchView is the JSON shape of a bulk operation.
type BatchView struct {
	Files  []FileView `json:"files"`
	Errors []CLIError `json:"errors,omitempty"`
}

func newBatchView(res *anchor.BatchResult) BatchView {
	view := BatchView{Files: make([]FileView, 0, len(res.Outcomes))}
	for _, o := range res.Outcomes {
		fv := newFileView(o.Path, o.Record)
		fv.Action = string(o.Action)
		view.Files = append(view.Files, fv)
		if o.Err != nil {
			view.Errors = append(view.Errors, cliErrorOf(o.Path, o.Err))
		}
	}
	return view
}

func cliErrorOf(path string, err error) CLIError {
	var ae *anchor.Error
	if errors.As(err, &ae) {
		return CLIError{Code: string(ae.Code), Message: ae.Error(), Path: path}
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error(), Path: path}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// writeBatch prints a bulk result and returns an ExitFailure error when
// any file failed.
func writeBatch(f *OutputFormatter, res *anchor.BatchResult, verb string) error {
	if f.Format == "json" {
		if err := f.Success(newBatchView(res)); err != nil {
			return err
		}
	} else {
		for _, o := range res.Outcomes {
			mark := "✓"
			if o.Err != nil || o.Action == anchor.ActionFailed {
				mark = "✗"
			}
			line := fmt.Sprintf("%s %s (%s)", mark, o.Path, o.Action)
			if o.Record != nil && o.Record.Hash != "" {
				line += " " + shortHash(o.Record.Hash)
			}
			fmt.Fprintln(f.Writer, line)
			if o.Err != nil {
				fmt.Fprintf(f.Writer, "    %v\n", o.Err)
			}
		}
		fmt.Fprintf(f.Writer, "%s %d file(s): %d submitted, %d confirmed, %d unchanged, %d pending, %d failed\n",
			verb, len(res.Outcomes),
			res.Count(anchor.ActionSubmitted), res.Count(anchor.ActionConfirmed),
			res.Count(anchor.ActionUnchanged), res.Count(anchor.ActionStillPending),
			res.Count(anchor.ActionFailed))
	}

	failed := len(res.Failed())
	for _, o := range res.Outcomes {
		if o.Err == nil && o.Action == anchor.ActionFailed {
			failed++
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) failed", failed))
	}
	return nil
}
