// Package agent implements the task-driving loop: stream the main model,
// execute tool-call markers as they complete, echo outputs and critic
// feedback into the conversation, and stop on the completion sentinel or
// the iteration cap.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/taskdrive/taskdrive/internal/llm"
	"github.com/taskdrive/taskdrive/internal/prompt"
	"github.com/taskdrive/taskdrive/internal/prompts"
	"github.com/taskdrive/taskdrive/internal/toolcall"
	"github.com/taskdrive/taskdrive/internal/tools"
	"github.com/taskdrive/taskdrive/internal/transcript"
)

// Config assembles a TaskAgent.
type Config struct {
	// Client is the chat transport shared by both runners.
	Client llm.Client
	// Model identifier passed through to the transport.
	Model string
	// MaxIterations caps the loop; zero means 10.
	MaxIterations int
	// Registry holds the callable tools.
	Registry *tools.Registry
	// Logger receives the DEBUG+ postmortem records. Nil means
	// slog.Default().
	Logger *slog.Logger
	// Transcript, when non-nil, persists messages and tool calls.
	Transcript *transcript.Store
	// Output receives the live token stream for interactive display.
	// Nil discards it.
	Output io.Writer
}

// TaskAgent coordinates one task to completion.
type TaskAgent struct {
	maxIterations int
	pm            *prompt.Manager
	processor     *toolcall.Processor
	main          *llm.Runner
	feedback      *llm.Runner
	logger        *slog.Logger
	store         *transcript.Store
	out           io.Writer

	runID    string
	recorded int // log entries already persisted to the transcript
}

// New creates a TaskAgent. The prompt manager is seeded here with the
// registry's catalog, so the system message exists before the first
// iteration.
func New(cfg Config) *TaskAgent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}

	return &TaskAgent{
		maxIterations: cfg.MaxIterations,
		pm:            prompt.NewManager(cfg.Registry.Specs()),
		processor:     toolcall.NewProcessor(cfg.Registry, cfg.Logger),
		main:          llm.NewRunner(cfg.Client, cfg.Model, cfg.Logger),
		feedback:      llm.NewRunner(cfg.Client, cfg.Model, cfg.Logger),
		logger:        cfg.Logger,
		store:         cfg.Transcript,
		out:           cfg.Output,
	}
}

// Messages exposes the conversation log, mainly for tests and callers
// that want to render the final dialogue.
func (a *TaskAgent) Messages() []prompt.Message {
	return a.pm.Messages()
}

// Run drives task to completion and returns the result text: whatever
// followed the completion sentinel, or the final assistant content when
// the iteration budget runs out.
func (a *TaskAgent) Run(ctx context.Context, task string) string {
	a.beginRun(task)
	a.pm.AddUserInstruction(task)
	a.logger.Info("task started", "max_iterations", a.maxIterations)

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		a.logger.Info("iteration", "n", iteration)

		if result, done := a.processIteration(ctx, iteration); done {
			a.logger.Info("task complete", "result", result)
			a.finishRun(result)
			return result
		}
	}

	a.logger.Info("maximum iterations reached")
	a.pm.AppendAssistantContent(prompts.MaxIterationsMessage)
	a.pm.CompleteCurrentAssistant()
	final := a.pm.LastAssistantContent()
	a.finishRun(final)
	return final
}

// processIteration runs one round: stream the model, watch the growing
// buffer for a completed tool marker, and either hand the cycle off to
// the tool path or settle the buffer as plain assistant content and test
// for completion.
func (a *TaskAgent) processIteration(ctx context.Context, iteration int) (string, bool) {
	messages := a.pm.ChatMessages()
	a.logger.Debug("messages before generation", "iteration", iteration, "count", len(messages))
	a.syncTranscript(false)

	var buffer string
	toolHandled := false

	_, err := a.main.Generate(ctx, messages, func(token string) bool {
		fmt.Fprint(a.out, token)
		buffer += token
		if a.handleBuffer(ctx, &buffer) {
			toolHandled = true
			return false // abandon the remaining stream
		}
		return true
	})
	if err != nil {
		a.handleGenerationError(ctx, err)
		return "", false
	}
	if toolHandled {
		return "", false
	}

	// Stream ended. A marker may have completed exactly at the end.
	if a.handleBuffer(ctx, &buffer) {
		return "", false
	}

	// Plain text: the assistant turn stays open across iterations.
	if buffer != "" {
		a.pm.AppendAssistantContent(buffer)
	}
	fmt.Fprintln(a.out)

	return a.checkCompletion()
}

// handleBuffer scans buffer for a pending tool call. When one executes,
// the post-execution buffer (call site plus echoed output) becomes the
// assistant turn, the turn is completed, the tool output and the critic's
// feedback are appended as user turns, and the buffer is cleared. Reports
// whether a tool cycle ran.
func (a *TaskAgent) handleBuffer(ctx context.Context, buffer *string) bool {
	started := time.Now()
	updated, processed, call := a.processor.Process(ctx, *buffer)
	if !processed {
		return false
	}

	a.logger.Info("tool processed", "tool", call.Name, "buffer", updated)
	if a.store != nil {
		if err := a.store.RecordToolCall(a.runID, call.Name, call.Content, call.Output, started, time.Now()); err != nil {
			a.logger.Error("transcript tool call", "error", err)
		}
	}

	a.pm.AppendAssistantContent(updated)
	a.pm.CompleteCurrentAssistant()
	a.pm.AddToolOutputAsUser(call.Name, call.Output)
	fmt.Fprintf(a.out, "\n%s%s%s\n", call.Name, prompts.ToolOutputPrefix, call.Output)

	feedback := a.getFeedback(ctx)
	a.pm.AddFeedbackAsUser(feedback)
	a.syncTranscript(false)

	*buffer = ""
	a.processor.Reset()
	return true
}

// handleGenerationError keeps the dialogue well-formed after a transport
// failure: the error becomes a synthetic assistant continuation, the turn
// is completed, and the critic is consulted before the next iteration.
func (a *TaskAgent) handleGenerationError(ctx context.Context, err error) {
	a.logger.Error("error during execution", "error", err)
	a.pm.AppendAssistantContent(fmt.Sprintf("\nError during execution: %s", err))
	a.pm.CompleteCurrentAssistant()

	feedback := a.getFeedback(ctx)
	a.pm.AddFeedbackAsUser(feedback)
	a.syncTranscript(false)
}

// getFeedback asks the critic for a continuation nudge. The critic sees
// its own system message followed by the whole current conversation, and
// its full streamed response is collected. A critic failure degrades to
// an error-text feedback message; the loop never aborts here.
func (a *TaskAgent) getFeedback(ctx context.Context) string {
	messages := append(
		[]llm.Message{{Role: "system", Content: prompts.FeedbackSystemPrompt}},
		a.pm.ChatMessages()...,
	)

	fmt.Fprint(a.out, "Feedback agent: ")
	response, err := a.feedback.Generate(ctx, messages, func(token string) bool {
		fmt.Fprint(a.out, token)
		return true
	})
	fmt.Fprintln(a.out)

	if err != nil {
		a.logger.Error("feedback generation failed", "error", err)
		return fmt.Sprintf("Error obtaining feedback: %s", err)
	}
	return response
}

// checkCompletion scans the latest assistant turn for the completion
// sentinel. The match is case-insensitive; the text after the sentinel is
// the result, defaulting when empty.
func (a *TaskAgent) checkCompletion() (string, bool) {
	content := a.pm.LastAssistantContent()
	idx := strings.Index(strings.ToLower(content), prompts.TaskCompleteTag)
	if idx < 0 {
		return "", false
	}

	result := strings.TrimSpace(content[idx+len(prompts.TaskCompleteTag):])
	if result == "" {
		result = prompts.TaskCompleteDefaultResult
	}
	return result, true
}

func (a *TaskAgent) beginRun(task string) {
	if a.store == nil {
		return
	}
	id, err := a.store.BeginRun(task, a.main.Model())
	if err != nil {
		a.logger.Error("transcript begin run", "error", err)
		a.store = nil
		return
	}
	a.runID = id
}

// syncTranscript persists log entries added since the last sync. An open
// assistant turn is held back until completed (or until the final flush)
// so its content is recorded only once, fully grown.
func (a *TaskAgent) syncTranscript(final bool) {
	if a.store == nil {
		return
	}
	messages := a.pm.Messages()
	for a.recorded < len(messages) {
		m := messages[a.recorded]
		if m.Role == "assistant" && !m.Completed && !final {
			return
		}
		if err := a.store.RecordMessage(a.runID, a.recorded, m.Role, m.Content); err != nil {
			a.logger.Error("transcript message", "error", err)
			return
		}
		a.recorded++
	}
}

func (a *TaskAgent) finishRun(result string) {
	a.syncTranscript(true)
	if a.store == nil {
		return
	}
	if err := a.store.FinishRun(a.runID, result); err != nil {
		a.logger.Error("transcript finish run", "error", err)
	}
}
