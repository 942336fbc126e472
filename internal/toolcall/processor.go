// Package toolcall detects and executes tool-call markers embedded in
// streaming model output.
//
// A marker has the form [tool_name]|||content||| where content may span
// lines. The processor is re-run over the agent's whole token buffer after
// every fragment; per-offset IDs and an executed-call table make the
// re-scan idempotent.
package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/taskdrive/taskdrive/internal/tools"
)

// markerPattern matches [tool_name]|||content|||. The inner match is
// non-greedy so the first closing ||| after the opener ends the marker,
// and (?s) lets content span newlines.
var markerPattern = regexp.MustCompile(`(?s)\[(\w+)\]\|\|\|(.*?)\|\|\|`)

// maxOutputChars caps the payload echoed back to the model.
const maxOutputChars = 1000

// ToolCall represents a single marker occurrence with its metadata.
type ToolCall struct {
	ID       string
	Name     string
	Content  string // raw payload between the delimiters, trimmed
	StartPos int    // byte offset of '[' in the buffer
	EndPos   int    // byte offset just past the closing |||
	Output   string // enveloped output, set once Executed
	Executed bool
}

// Processor scans text for markers and dispatches them against a tool
// registry. It owns the executed-call table: a call found at a given
// buffer offset runs exactly once, no matter how many times the growing
// buffer is re-scanned. The agent clears its buffer after every executed
// call, so offsets never collide across iterations.
type Processor struct {
	registry *tools.Registry
	executed map[string]*ToolCall
	logger   *slog.Logger
}

// NewProcessor creates a processor over the given registry.
func NewProcessor(registry *tools.Registry, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		registry: registry,
		executed: make(map[string]*ToolCall),
		logger:   logger,
	}
}

// FindUnexecuted returns every complete marker in text whose ID is not in
// the executed table, in buffer order.
func (p *Processor) FindUnexecuted(text string) []*ToolCall {
	var calls []*ToolCall
	for _, m := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		id := fmt.Sprintf("tool_%d", start)
		if _, done := p.executed[id]; done {
			continue
		}
		call := &ToolCall{
			ID:       id,
			Name:     text[m[2]:m[3]],
			Content:  strings.TrimSpace(text[m[4]:m[5]]),
			StartPos: start,
			EndPos:   end,
		}
		p.logger.Info("found new tool call", "name", call.Name, "id", id, "pos", start)
		calls = append(calls, call)
	}
	return calls
}

// Execute resolves and runs a tool call, returning the enveloped output
// string: "<<< payload >>>" with payload truncated to 1000 characters.
// Every failure mode (unknown tool, bad arguments, execution error) comes
// back through the same envelope; nothing escapes as an error.
func (p *Processor) Execute(ctx context.Context, call *ToolCall) string {
	tool := p.registry.Get(call.Name)
	if tool == nil {
		msg := fmt.Sprintf("Error: Function %s not found", call.Name)
		p.logger.Error(msg)
		return envelope(msg)
	}

	args, err := p.parseArgs(call)
	if err == nil {
		p.logger.Info("calling function", "name", call.Name, "id", call.ID)
		p.logger.Debug("arguments", "args", args)
		var output string
		output, err = tool.Handler(ctx, args)
		if err == nil {
			p.logger.Debug("function output", "output", output)
			output = strings.TrimSpace(output)
			if output == "" {
				output = "no output"
			}
			return envelope(output)
		}
	}

	msg := fmt.Sprintf("Error executing tool %s: %s", call.Name, err)
	p.logger.Error(msg)
	return envelope(msg)
}

// parseArgs interprets the marker payload. A JSON object is splatted as
// named arguments; otherwise shell and run_python accept the raw payload
// as their single required argument, and any other tool rejects it.
func (p *Processor) parseArgs(call *ToolCall) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Content), &args); err == nil {
		return args, nil
	}

	switch call.Name {
	case "shell":
		return map[string]any{"command": call.Content}, nil
	case "run_python":
		return map[string]any{"code": call.Content}, nil
	}
	return nil, fmt.Errorf("content must be valid JSON for this tool")
}

// Process scans text and, if an unexecuted marker exists, executes exactly
// the first one, records it in the executed table, and returns the buffer
// with the output appended below the call site:
//
//	<text>\n<name> output:\n<<< result >>>
//
// Only one tool runs per invocation even when several markers are pending;
// the agent re-enters its loop between executions so the conversation log
// interleaves outputs with the assistant content that emitted them.
func (p *Processor) Process(ctx context.Context, text string) (string, bool, *ToolCall) {
	pending := p.FindUnexecuted(text)
	if len(pending) == 0 {
		return text, false, nil
	}

	call := pending[0]
	call.Output = p.Execute(ctx, call)
	call.Executed = true
	p.executed[call.ID] = call

	updated := fmt.Sprintf("%s\n%s output:\n%s", text, call.Name, call.Output)
	return updated, true, call
}

// Reset clears the executed-call table. The agent calls this whenever it
// discards its buffer: offsets are only meaningful relative to the buffer
// they were found in, so a fresh buffer gets a fresh table. This is what
// makes ID collisions across iterations impossible.
func (p *Processor) Reset() {
	p.executed = make(map[string]*ToolCall)
}

// envelope wraps a payload in the <<< >>> tool-output frame, truncating to
// maxOutputChars characters first.
func envelope(payload string) string {
	runes := []rune(payload)
	if len(runes) > maxOutputChars {
		payload = string(runes[:maxOutputChars])
	}
	return fmt.Sprintf("<<< %s >>>", payload)
}
