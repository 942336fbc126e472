package llm

import (
	"context"
	"log/slog"
)

// Runner is one logical speaker's handle on the chat transport. The agent
// holds two: the main model and the feedback critic. Each call re-sends
// the complete message list, keeping the protocol stateless; the runner's
// own history is a shadow copy of the most recent exchange, kept purely
// for inspection. The authoritative log lives in the prompt manager.
type Runner struct {
	client   Client
	model    string
	messages []Message
	logger   *slog.Logger
}

// NewRunner creates a runner for the given model.
func NewRunner(client Client, model string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client: client,
		model:  model,
		logger: logger,
	}
}

// Model returns the model identifier this runner speaks for.
func (r *Runner) Model() string { return r.model }

// Generate streams a completion for messages, invoking onToken for every
// fragment. It returns the concatenation of all yielded fragments. When
// onToken stops the stream early, the returned text covers only what was
// yielded. Transport failures propagate to the caller.
func (r *Runner) Generate(ctx context.Context, messages []Message, onToken StreamCallback) (string, error) {
	r.messages = make([]Message, len(messages))
	copy(r.messages, messages)

	resp, err := r.client.ChatStream(ctx, r.model, messages, onToken)
	if err != nil {
		r.logger.Error("generation error", "model", r.model, "error", err)
		return "", err
	}

	full := resp.Message.Content
	r.messages = append(r.messages, Message{Role: "assistant", Content: full})
	return full, nil
}

// History returns the shadow copy of the most recent exchange.
func (r *Runner) History() []Message {
	h := make([]Message, len(r.messages))
	copy(h, r.messages)
	return h
}

// ClearHistory resets the shadow copy.
func (r *Runner) ClearHistory() {
	r.messages = nil
}
