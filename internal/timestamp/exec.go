package timestamp

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommand is the helper binary used when the configuration does
// not name one.
const DefaultCommand = "ots-anchor"

// Exit codes of the helper's upgrade and verify subcommands.
const (
	ExitOK          = 0
	ExitNotAttested = 1
	ExitPending     = 3
	ExitRejected    = 4
)

// Exec drives an external helper command that speaks to the
// timestamping network:
//
//	<cmd> submit <hex-digest>          proof on stdout
//	<cmd> upgrade        (proof stdin) exit 0 complete, 3 pending, 4 rejected; proof on stdout
//	<cmd> verify <hex>   (proof stdin) exit 0 attested, 1 not attested
//
// Any other exit status, or a helper that cannot be started, is reported
// as ErrUnavailable.
type Exec struct {
	// Command is the helper name or path, resolved through PATH.
	Command string

	// Args are prepended to every invocation.
	Args []string

	// WaitDelay bounds how long to wait for output after the context
	// kills the helper.
	WaitDelay time.Duration
}

// NewExec returns an Exec for command, defaulting to DefaultCommand.
func NewExec(command string, args ...string) *Exec {
	if command == "" {
		command = DefaultCommand
	}
	return &Exec{Command: command, Args: args, WaitDelay: time.Second}
}

// Available reports whether the helper can be found.
func (e *Exec) Available() bool {
	_, err := exec.LookPath(e.Command)
	return err == nil
}

func (e *Exec) Submit(ctx context.Context, digest []byte) ([]byte, error) {
	res, err := e.run(ctx, nil, "submit", hex.EncodeToString(digest))
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if res.code != ExitOK {
		return nil, fmt.Errorf("submit: %w: %s", ErrUnavailable, res.describe())
	}
	if len(res.stdout) == 0 {
		return nil, fmt.Errorf("submit: %w: helper returned an empty proof", ErrUnavailable)
	}
	return res.stdout, nil
}

func (e *Exec) Upgrade(ctx context.Context, proof []byte) (bool, []byte, error) {
	res, err := e.run(ctx, proof, "upgrade")
	if err != nil {
		return false, nil, fmt.Errorf("upgrade: %w", err)
	}
	updated := res.stdout
	if len(updated) == 0 {
		updated = proof
	}
	switch res.code {
	case ExitOK:
		return true, updated, nil
	case ExitPending:
		return false, updated, nil
	case ExitRejected:
		return false, nil, fmt.Errorf("upgrade: %w: %s", ErrRejected, res.describe())
	default:
		return false, nil, fmt.Errorf("upgrade: %w: %s", ErrUnavailable, res.describe())
	}
}

func (e *Exec) Verify(ctx context.Context, proof, digest []byte) (bool, error) {
	res, err := e.run(ctx, proof, "verify", hex.EncodeToString(digest))
	if err != nil {
		return false, fmt.Errorf("verify: %w", err)
	}
	switch res.code {
	case ExitOK:
		return true, nil
	case ExitNotAttested:
		return false, nil
	default:
		return false, fmt.Errorf("verify: %w: %s", ErrUnavailable, res.describe())
	}
}

type result struct {
	stdout []byte
	stderr string
	code   int
}

func (r result) describe() string {
	if r.stderr != "" {
		return fmt.Sprintf("exit status %d: %s", r.code, r.stderr)
	}
	return fmt.Sprintf("exit status %d", r.code)
}

// run executes the helper. A non-zero exit is not an error here; the
// caller interprets the code. Context expiry is returned as ctx.Err()
// so callers can tell a timeout from an outage.
func (e *Exec) run(ctx context.Context, stdin []byte, args ...string) (result, error) {
	path, err := exec.LookPath(e.Command)
	if err != nil {
		return result{}, fmt.Errorf("%q: %w", e.Command, ErrNotInstalled)
	}

	cmd := exec.CommandContext(ctx, path, append(append([]string{}, e.Args...), args...)...)
	cmd.WaitDelay = e.WaitDelay
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result{}, ctxErr
	}
	res := result{stdout: stdout.Bytes(), stderr: strings.TrimSpace(stderr.String())}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return result{}, fmt.Errorf("%w: %v", ErrUnavailable, runErr)
		}
		res.code = exitErr.ExitCode()
	}
	return res, nil
}
