package sed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/onnwee/cappuccino/telemetry"
)

const (
	// DefaultTimeout caps a single sed run.
	DefaultTimeout = 5 * time.Second

	unknownErrorMsg = "Unknown sed error."
	timeoutErrorMsg = "sed took too long to respond."
	diagPrefix      = "sed: -e "
)

// EditorError is a user-facing failure of the substitution tool, usually a
// malformed expression. Msg is safe to show in chat; Err, when set, is the
// underlying cause and is meant for logs.
type EditorError struct {
	Msg string
	Err error
}

func (e *EditorError) Error() string { return e.Msg }

func (e *EditorError) Unwrap() error { return e.Err }

// Editor applies one substitution expression to one line of text.
type Editor interface {
	Run(ctx context.Context, text, command string) (string, error)
}

// SedEditor runs GNU sed in sandbox mode with extended regular expressions.
type SedEditor struct {
	// Path is the sed binary; empty means "sed" from PATH.
	Path string
	// Timeout caps each run; zero means DefaultTimeout.
	Timeout time.Duration
}

// Run feeds the trimmed text to sed with command as its only expression and
// returns the trimmed combined output. Every failure is an *EditorError.
func (s SedEditor) Run(ctx context.Context, text, command string) (string, error) {
	path := s.Path
	if path == "" {
		path = "sed"
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(runCtx, path, "--sandbox", "--regexp-extended", command)
	cmd.Stdin = strings.NewReader(strings.TrimSpace(text))
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	var err error
	telemetry.TimeFunc(telemetry.SedEditorDuration, func() { err = cmd.Run() })
	stream := strings.TrimSpace(out.String())

	if runCtx.Err() != nil && ctx.Err() == nil {
		return "", &EditorError{Msg: timeoutErrorMsg, Err: fmt.Errorf("sed: %w", context.DeadlineExceeded)}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", &EditorError{Msg: unknownErrorMsg, Err: fmt.Errorf("sed: %w", err)}
		}
		if stream == "" {
			return "", &EditorError{Msg: unknownErrorMsg, Err: err}
		}
		return "", &EditorError{Msg: strings.ReplaceAll(stream, diagPrefix, ""), Err: err}
	}
	return stream, nil
}

// Edit applies command to text and returns text itself when the tool
// produced nothing or nothing changed.
func Edit(ctx context.Context, ed Editor, text, command string) (string, error) {
	output, err := ed.Run(ctx, text, command)
	if err != nil {
		return "", err
	}
	if output == "" || output == text {
		return text, nil
	}
	return output, nil
}
