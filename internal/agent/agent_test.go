package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/taskdrive/taskdrive/internal/llm"
	"github.com/taskdrive/taskdrive/internal/prompt"
	"github.com/taskdrive/taskdrive/internal/tools"
)

// step is one scripted transport exchange: either a fragment stream or a
// transport failure.
type step struct {
	fragments []string
	err       error
}

// scriptedClient plays back steps in call order. The agent's calls are
// strictly sequential (main, then feedback after a tool cycle, then main
// again), so a flat queue covers both runners.
type scriptedClient struct {
	t     *testing.T
	steps []step
	calls int
}

func (c *scriptedClient) ChatStream(ctx context.Context, model string, messages []llm.Message, callback llm.StreamCallback) (*llm.ChatResponse, error) {
	if c.calls >= len(c.steps) {
		c.t.Fatalf("unexpected transport call #%d", c.calls+1)
	}
	s := c.steps[c.calls]
	c.calls++

	if s.err != nil {
		return nil, s.err
	}

	var content strings.Builder
	for _, frag := range s.fragments {
		content.WriteString(frag)
		if callback != nil && !callback(frag) {
			break
		}
	}
	return &llm.ChatResponse{
		Model:   model,
		Message: llm.Message{Role: "assistant", Content: content.String()},
		Done:    true,
	}, nil
}

func newTestAgent(t *testing.T, steps []step, maxIterations int) *TaskAgent {
	t.Helper()
	registry := tools.NewRegistry(tools.NewShellExec(0, nil), tools.NewPythonExec("", nil), nil)
	return New(Config{
		Client:        &scriptedClient{t: t, steps: steps},
		Model:         "test-model",
		MaxIterations: maxIterations,
		Registry:      registry,
	})
}

func TestRun_CompletionWithResult(t *testing.T) {
	a := newTestAgent(t, []step{
		{fragments: []string{"all done ", "[task_complete] 42"}},
	}, 10)

	result := a.Run(context.Background(), "compute the answer")
	if result != "42" {
		t.Errorf("result = %q, want %q", result, "42")
	}
}

func TestRun_EmptyCompletionUsesDefault(t *testing.T) {
	a := newTestAgent(t, []step{
		{fragments: []string{"[task_complete]"}},
	}, 10)

	result := a.Run(context.Background(), "trivial task")
	if result != "Task completed successfully" {
		t.Errorf("result = %q, want the default completion result", result)
	}
}

func TestRun_SentinelCaseInsensitive(t *testing.T) {
	a := newTestAgent(t, []step{
		{fragments: []string{"Done! [TASK_COMPLETE] see /tmp/out"}},
	}, 10)

	result := a.Run(context.Background(), "task")
	if result != "see /tmp/out" {
		t.Errorf("result = %q, want %q", result, "see /tmp/out")
	}
}

func TestRun_SingleShellCall(t *testing.T) {
	a := newTestAgent(t, []step{
		{fragments: []string{"okay ", "[shell]|||echo hi||| done"}},
		{fragments: []string{"[FEEDBACK]\nAccomplished: ran echo\nIssues: none\nNext Steps: finish\n[/FEEDBACK]"}},
		{fragments: []string{"[task_complete] finished"}},
	}, 10)

	result := a.Run(context.Background(), "say hi")
	if result != "finished" {
		t.Fatalf("result = %q, want %q", result, "finished")
	}

	msgs := a.Messages()
	wantSeq := []struct {
		role    string
		content string
	}{
		{"system", ""}, // content checked elsewhere
		{"user", "say hi"},
		{"assistant", "okay [shell]|||echo hi||| done\nshell output:\n<<< hi >>>"},
		{"user", "shell output:\n<<< hi >>>"},
		{"user", "[FEEDBACK]\nAccomplished: ran echo\nIssues: none\nNext Steps: finish\n[/FEEDBACK]"},
		{"assistant", "[task_complete] finished"},
	}
	if len(msgs) != len(wantSeq) {
		t.Fatalf("got %d messages, want %d: %+v", len(msgs), len(wantSeq), msgs)
	}
	for i, want := range wantSeq {
		if msgs[i].Role != want.role {
			t.Errorf("message %d role = %q, want %q", i, msgs[i].Role, want.role)
		}
		if want.content != "" && msgs[i].Content != want.content {
			t.Errorf("message %d content = %q, want %q", i, msgs[i].Content, want.content)
		}
	}
	if !msgs[2].Completed {
		t.Error("the tool-emitting assistant turn should be completed")
	}
}

func TestRun_AbandonsStreamAfterTool(t *testing.T) {
	a := newTestAgent(t, []step{
		{fragments: []string{"x [shell]|||echo hi||| y", "NEVER-DELIVERED"}},
		{fragments: []string{"[FEEDBACK] keep going [/FEEDBACK]"}},
		{fragments: []string{"[task_complete]"}},
	}, 10)

	a.Run(context.Background(), "task")

	for i, m := range a.Messages() {
		if strings.Contains(m.Content, "NEVER-DELIVERED") {
			t.Errorf("message %d contains abandoned stream content: %q", i, m.Content)
		}
	}
}

func TestRun_OrderPreservation(t *testing.T) {
	a := newTestAgent(t, []step{
		{fragments: []string{"[shell]|||echo one|||"}},
		{fragments: []string{"[FEEDBACK] next [/FEEDBACK]"}},
		{fragments: []string{"[shell]|||echo two|||"}},
		{fragments: []string{"[FEEDBACK] next [/FEEDBACK]"}},
		{fragments: []string{"[task_complete]"}},
	}, 10)

	a.Run(context.Background(), "two steps")

	var outputs []string
	msgs := a.Messages()
	for i, m := range msgs {
		if m.Role == "user" && strings.HasPrefix(m.Content, "shell output:") {
			outputs = append(outputs, m.Content)
			// Assistant-turn well-formedness: every tool output follows a
			// completed assistant entry.
			if i == 0 || msgs[i-1].Role != "assistant" || !msgs[i-1].Completed {
				t.Errorf("tool output %d not preceded by a completed assistant turn", i)
			}
		}
	}
	if len(outputs) != 2 {
		t.Fatalf("got %d tool outputs, want 2", len(outputs))
	}
	if !strings.Contains(outputs[0], "<<< one >>>") || !strings.Contains(outputs[1], "<<< two >>>") {
		t.Errorf("tool outputs out of order: %v", outputs)
	}
}

func TestRun_IterationCap(t *testing.T) {
	a := newTestAgent(t, []step{
		{fragments: []string{"still working"}},
	}, 1)

	result := a.Run(context.Background(), "never finishes")
	if !strings.HasSuffix(result, "\nMaximum iterations reached") {
		t.Errorf("result = %q, want the maximum-iterations notice", result)
	}
	if !strings.HasPrefix(result, "still working") {
		t.Errorf("result = %q, want the accumulated assistant content", result)
	}

	msgs := a.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != "assistant" || !last.Completed {
		t.Errorf("final entry = %+v, want a completed assistant turn", last)
	}
}

func TestRun_TransportErrorContinues(t *testing.T) {
	a := newTestAgent(t, []step{
		{err: errors.New("connection reset")},
		{fragments: []string{"[FEEDBACK] retry the command [/FEEDBACK]"}},
		{fragments: []string{"[task_complete] recovered"}},
	}, 10)

	result := a.Run(context.Background(), "task")
	if result != "recovered" {
		t.Fatalf("result = %q, want %q", result, "recovered")
	}

	var errTurn *prompt.Message
	msgs := a.Messages()
	for i := range msgs {
		if msgs[i].Role == "assistant" && strings.Contains(msgs[i].Content, "Error during execution: connection reset") {
			errTurn = &msgs[i]
			break
		}
	}
	if errTurn == nil {
		t.Fatal("expected a synthetic assistant error continuation")
	}
	if !errTurn.Completed {
		t.Error("the error continuation turn should be completed")
	}
}

func TestRun_ToolAtStreamEnd(t *testing.T) {
	// The closing delimiter arrives in the very last fragment; the tool
	// must still run even though the stream has ended.
	a := newTestAgent(t, []step{
		{fragments: []string{"[shell]|||echo tail", "|||"}},
		{fragments: []string{"[FEEDBACK] done [/FEEDBACK]"}},
		{fragments: []string{"[task_complete]"}},
	}, 10)

	a.Run(context.Background(), "task")

	found := false
	for _, m := range a.Messages() {
		if m.Role == "user" && m.Content == "shell output:\n<<< tail >>>" {
			found = true
		}
	}
	if !found {
		t.Error("tool completing at stream end was not executed")
	}
}

func TestRun_UnclosedMarkerIsPlainContent(t *testing.T) {
	a := newTestAgent(t, []step{
		{fragments: []string{"starting [shell]|||echo never closed"}},
		{fragments: []string{" [task_complete]"}},
	}, 10)

	result := a.Run(context.Background(), "task")
	if result != "Task completed successfully" {
		t.Fatalf("result = %q", result)
	}

	for _, m := range a.Messages() {
		if m.Role == "user" && strings.HasPrefix(m.Content, "shell output:") {
			t.Error("unclosed marker must not execute")
		}
	}
}
