package llm

import (
	"context"
	"errors"
	"testing"
)

// fakeClient streams a fixed fragment list per call.
type fakeClient struct {
	fragments []string
	err       error
}

func (f *fakeClient) ChatStream(ctx context.Context, model string, messages []Message, callback StreamCallback) (*ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	var content string
	for _, frag := range f.fragments {
		content += frag
		if callback != nil && !callback(frag) {
			break
		}
	}
	return &ChatResponse{
		Model:   model,
		Message: Message{Role: "assistant", Content: content},
		Done:    true,
	}, nil
}

func TestRunner_GenerateCollectsFragments(t *testing.T) {
	r := NewRunner(&fakeClient{fragments: []string{"a", "b", "c"}}, "m", nil)

	input := []Message{{Role: "user", Content: "hi"}}
	full, err := r.Generate(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "abc" {
		t.Errorf("full = %q, want %q", full, "abc")
	}
}

func TestRunner_ShadowHistory(t *testing.T) {
	r := NewRunner(&fakeClient{fragments: []string{"re", "ply"}}, "m", nil)

	input := []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	}
	if _, err := r.Generate(context.Background(), input, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := r.History()
	if len(h) != 3 {
		t.Fatalf("history length = %d, want input + assistant", len(h))
	}
	last := h[2]
	if last.Role != "assistant" || last.Content != "reply" {
		t.Errorf("shadow assistant entry = %+v", last)
	}

	// The shadow copy must not alias the caller's slice.
	input[0].Content = "mutated"
	if r.History()[0].Content != "sys" {
		t.Error("runner history should be an independent copy")
	}

	r.ClearHistory()
	if len(r.History()) != 0 {
		t.Error("ClearHistory should empty the shadow copy")
	}
}

func TestRunner_PropagatesTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewRunner(&fakeClient{err: boom}, "m", nil)

	_, err := r.Generate(context.Background(), nil, nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want the transport error", err)
	}
}
