// Package llm provides the streaming chat client and per-speaker model
// runners.
package llm

import "context"

// Message represents a chat message on the wire. Role is one of system,
// user, or assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamCallback is called for each streamed token. Returning false stops
// the stream early; the remaining fragments are abandoned.
type StreamCallback func(token string) bool

// Client is the transport contract the agent depends on: given a message
// list, yield text fragments. The concrete implementation is OllamaClient;
// tests substitute an in-process fake.
type Client interface {
	ChatStream(ctx context.Context, model string, messages []Message, callback StreamCallback) (*ChatResponse, error)
}
