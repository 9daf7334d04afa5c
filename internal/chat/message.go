// ABOUTME: Message, ToolCall and wire-format types for conversation state
// ABOUTME: Defines the JSON shapes exchanged with the backend

package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// NullSentinel is the placeholder the backend emits in place of an
// absent message body. It is normalized to empty text whenever it
// appears as a full message content.
const NullSentinel = "<null>"

// Message is one entry in a conversation log.
type Message struct {
	ID        string
	Role      string
	Content   string
	Timestamp time.Time

	// ToolCalls is set only on assistant messages that request tools.
	ToolCalls []ToolCall

	// ToolCallID and Name are set only on tool messages.
	ToolCallID string
	Name       string
}

// ToolCall is a backend request to execute a named local tool.
// Arguments is the raw JSON payload and is opaque to this package.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   Normalize(content),
		Timestamp: time.Now(),
	}
}

// Normalize maps the backend's null sentinel to empty text.
// It applies to full message contents only, never to delta fragments.
func Normalize(content string) string {
	if content == NullSentinel {
		return ""
	}
	return content
}

// WireMessage is the shape of one message in an outgoing request body.
type WireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []WireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

// WireToolCall is the wire shape of a tool call on an assistant message.
type WireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// toWire converts a Message to its request-body shape. Only assistant
// messages carry tool_calls and only tool messages carry
// tool_call_id/name, regardless of what is set on the struct.
func (m Message) toWire() WireMessage {
	w := WireMessage{
		Role:    m.Role,
		Content: m.Content,
	}

	if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
		w.ToolCalls = make([]WireToolCall, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			w.ToolCalls = append(w.ToolCalls, WireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
	}

	if m.Role == RoleTool {
		w.ToolCallID = m.ToolCallID
		w.Name = m.Name
	}

	return w
}
