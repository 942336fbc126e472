package tools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ShellExec runs shell commands for the agent. Failure modes are folded
// into the returned string so the model can observe them and adapt; the
// error return is reserved for argument problems.
type ShellExec struct {
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// NewShellExec creates a shell executor. A zero defaultTimeout means 10
// seconds.
func NewShellExec(defaultTimeout time.Duration, logger *slog.Logger) *ShellExec {
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShellExec{
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// Handle adapts Exec to the registry's handler signature. args carries
// "command" (required) and "timeout" (seconds, optional).
func (s *ShellExec) Handle(ctx context.Context, args map[string]any) (string, error) {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return "", fmt.Errorf("missing required argument \"command\"")
	}

	timeout := s.defaultTimeout
	// JSON numbers decode as float64.
	if v, ok := args["timeout"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	return s.Exec(ctx, command, timeout), nil
}

// Exec runs command under sh -c with the given timeout and returns the
// surface string the model sees:
//
//   - success: trimmed stdout
//   - timeout: a timeout notice including whatever stdout was captured
//   - non-zero exit: "Error: <stderr>"
//   - anything else: "Error: <description>"
func (s *ShellExec) Exec(ctx context.Context, command string, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		partial := strings.TrimSpace(stdout.String())
		if partial == "" {
			partial = "No output before timeout"
		}
		s.logger.Warn("shell command timed out", "command", command, "timeout", timeout)
		return fmt.Sprintf("Command timed out after %d seconds. Output before timeout: %s",
			int(timeout.Seconds()), partial)
	}

	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			s.logger.Debug("shell command failed", "command", command, "stderr", stderr.String())
			return fmt.Sprintf("Error: %s", strings.TrimSpace(stderr.String()))
		}
		s.logger.Error("shell command error", "command", command, "error", err)
		return fmt.Sprintf("Error: %s", err)
	}

	return strings.TrimSpace(stdout.String())
}
