package tools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// PythonExec runs Python code for the agent by writing it to a temporary
// script and invoking a configured interpreter. Script files are left in
// place after execution so a failed run can be inspected.
type PythonExec struct {
	interpreter string
	logger      *slog.Logger
}

// NewPythonExec creates a Python executor. An empty interpreter means
// python3.
func NewPythonExec(interpreter string, logger *slog.Logger) *PythonExec {
	if interpreter == "" {
		interpreter = "python3"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PythonExec{
		interpreter: interpreter,
		logger:      logger,
	}
}

// Handle adapts Run to the registry's handler signature. args carries
// "code" (required).
func (p *PythonExec) Handle(ctx context.Context, args map[string]any) (string, error) {
	code, ok := args["code"].(string)
	if !ok || code == "" {
		return "", fmt.Errorf("missing required argument \"code\"")
	}
	return p.Run(ctx, code), nil
}

// Run writes code to a temp file and executes it, returning the surface
// string the model sees: trimmed stdout, the literal "no output", or an
// "Error: ..." description.
func (p *PythonExec) Run(ctx context.Context, code string) string {
	tmp, err := os.CreateTemp("", "taskdrive-*.py")
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return fmt.Sprintf("Error: %s", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	p.logger.Debug("temporary python file", "path", tmp.Name())

	cmd := exec.CommandContext(ctx, p.interpreter, tmp.Name())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return fmt.Sprintf("Error: %s", strings.TrimSpace(stderr.String()))
		}
		return fmt.Sprintf("Error: %s", err)
	}

	output := strings.TrimSpace(stdout.String())
	p.logger.Debug("python output", "output", output)
	if output == "" {
		return "no output"
	}
	return output
}
