// Package prompt maintains the ordered conversation log the agent sends
// to the model.
package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/taskdrive/taskdrive/internal/llm"
	"github.com/taskdrive/taskdrive/internal/prompts"
)

// Message is one role-tagged entry in the conversation log. Completed is
// meaningful only for assistant entries: while false, the entry is the
// in-progress assistant turn and its content may still grow.
type Message struct {
	Role      string `json:"role"` // system, user, assistant
	Content   string `json:"content"`
	Completed bool   `json:"completed,omitempty"`
}

// Manager owns the message log. The log is append-only except for the
// trailing assistant entry, which is mutable until marked completed. The
// first entry is always the system message, composed once at construction
// from the tool catalog and the formatting rubric.
type Manager struct {
	messages []Message
}

// NewManager seeds the log with the system message for the given tool
// catalog (the Ollama function-spec maps from the registry).
func NewManager(catalog []map[string]any) *Manager {
	serialized, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		// The catalog is built from static literals; this cannot fail in
		// practice, but an empty catalog beats a broken system prompt.
		serialized = []byte("[]")
	}

	system := fmt.Sprintf("%s\n%s\n\n%s",
		prompts.SystemPromptToolsIntro, serialized, prompts.SystemPromptFormatting)

	return &Manager{
		messages: []Message{{Role: "system", Content: system}},
	}
}

// AddUserInstruction appends the task description as a user turn.
func (m *Manager) AddUserInstruction(content string) {
	m.messages = append(m.messages, Message{Role: "user", Content: content})
}

// AppendAssistantContent extends the in-progress assistant turn, creating
// a new one when the previous assistant turn was completed (or none
// exists).
func (m *Manager) AppendAssistantContent(content string) {
	if i := m.lastAssistantIndex(); i >= 0 && !m.messages[i].Completed {
		m.messages[i].Content += content
		return
	}
	m.messages = append(m.messages, Message{Role: "assistant", Content: content})
}

// CompleteCurrentAssistant marks the in-progress assistant turn completed.
// Idempotent; a no-op when no incomplete assistant turn exists.
func (m *Manager) CompleteCurrentAssistant() {
	if i := m.lastAssistantIndex(); i >= 0 {
		m.messages[i].Completed = true
	}
}

// AddToolOutputAsUser echoes an executed tool's enveloped output back into
// the dialogue. The transport has only three roles, so tool results ride
// in user turns; that keeps causal order intact for the model.
func (m *Manager) AddToolOutputAsUser(toolName, output string) {
	m.messages = append(m.messages, Message{
		Role:    "user",
		Content: toolName + prompts.ToolOutputPrefix + output,
	})
}

// AddFeedbackAsUser appends the feedback critic's response verbatim as a
// user turn.
func (m *Manager) AddFeedbackAsUser(feedback string) {
	m.messages = append(m.messages, Message{Role: "user", Content: feedback})
}

// Messages returns a copy of the log in order.
func (m *Manager) Messages() []Message {
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// ChatMessages returns the log in the wire shape the transport accepts.
func (m *Manager) ChatMessages() []llm.Message {
	out := make([]llm.Message, len(m.messages))
	for i, msg := range m.messages {
		out[i] = llm.Message{Role: msg.Role, Content: msg.Content}
	}
	return out
}

// LastAssistantContent returns the content of the most recent assistant
// turn, or "" when none exists.
func (m *Manager) LastAssistantContent() string {
	if i := m.lastAssistantIndex(); i >= 0 {
		return m.messages[i].Content
	}
	return ""
}

func (m *Manager) lastAssistantIndex() int {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == "assistant" {
			return i
		}
	}
	return -1
}
