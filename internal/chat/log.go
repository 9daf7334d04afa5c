// ABOUTME: Append-mostly conversation log, the single source of truth per session
// ABOUTME: Streaming content mutation goes through an explicit StreamHandle

package chat

import (
	"sync"
	"time"
)

// Log is an ordered, append-mostly record of conversation messages.
// The one permitted in-place mutation is the content of the message a
// StreamHandle points at, and only while that handle is open.
type Log struct {
	mu        sync.Mutex
	messages  []Message
	streaming int // index of the streaming assistant message, -1 if none
}

// NewLog creates an empty conversation log.
func NewLog() *Log {
	return &Log{streaming: -1}
}

// Append adds a message to the end of the log. Missing IDs and
// timestamps are filled in. The stored message is returned.
func (l *Log) Append(m Message) Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(m)
}

func (l *Log) appendLocked(m Message) Message {
	if m.ID == "" {
		m.ID = NewMessage(m.Role, "").ID
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	m.Content = Normalize(m.Content)
	l.messages = append(l.messages, m)
	// Any append makes an open stream handle stale.
	l.streaming = -1
	return m
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Messages returns a copy of the log for display or persistence.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Last returns the final message, or false when the log is empty.
func (l *Log) Last() (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Snapshot converts the log into the request-body wire shape.
func (l *Log) Snapshot() []WireMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]WireMessage, 0, len(l.messages))
	for _, m := range l.messages {
		out = append(out, m.toWire())
	}
	return out
}

// Clear removes every message and invalidates any open stream handle.
// Individual messages are never deleted; this is the only removal path.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
	l.streaming = -1
}

// Restore replaces the log contents wholesale, used when loading a
// saved conversation. Any open stream handle is invalidated.
func (l *Log) Restore(msgs []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = make([]Message, len(msgs))
	copy(l.messages, msgs)
	l.streaming = -1
}

// StreamHandle is a reference to the assistant message currently
// receiving streamed content. At most one handle is open per Log;
// EndStreaming invalidates it. A handle whose message is no longer the
// last entry, or whose log has been cleared, silently stops mutating.
type StreamHandle struct {
	log   *Log
	index int
}

// BeginStreaming appends a new assistant message seeded with initial
// content and returns a handle to it, closing any previous handle.
func (l *Log) BeginStreaming(initial string) *StreamHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.appendLocked(Message{Role: RoleAssistant})
	l.streaming = len(l.messages) - 1
	// Set raw: initial is a delta fragment, exempt from normalization.
	l.messages[l.streaming].Content = initial
	return &StreamHandle{log: l, index: l.streaming}
}

// Streaming returns the open handle, or nil when no assistant message
// is currently streaming.
func (l *Log) Streaming() *StreamHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.streaming < 0 {
		return nil
	}
	return &StreamHandle{log: l, index: l.streaming}
}

// EndStreaming invalidates the current handle so the next delta starts
// a fresh assistant message. Called after tool batches and at turn end.
func (l *Log) EndStreaming() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streaming = -1
}

// valid reports whether the handle still points at the streaming
// assistant message at the tail of the log. Must hold l.mu.
func (h *StreamHandle) valid() bool {
	l := h.log
	if l.streaming != h.index || h.index != len(l.messages)-1 {
		return false
	}
	return l.messages[h.index].Role == RoleAssistant
}

// AppendContent adds a delta fragment to the streaming message.
// Deltas are never sentinel-normalized.
func (h *StreamHandle) AppendContent(delta string) {
	l := h.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if !h.valid() {
		return
	}
	l.messages[h.index].Content += delta
}

// SetContent replaces the streaming message's content with the final
// text, applying sentinel normalization.
func (h *StreamHandle) SetContent(content string) {
	l := h.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if !h.valid() {
		return
	}
	l.messages[h.index].Content = Normalize(content)
}

// SetToolCalls attaches the finalized tool-call list to the streaming
// message. Once set by a terminal event the list is never mutated.
func (h *StreamHandle) SetToolCalls(calls []ToolCall) {
	l := h.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if !h.valid() {
		return
	}
	if len(l.messages[h.index].ToolCalls) > 0 {
		return
	}
	l.messages[h.index].ToolCalls = calls
}

// Message returns a copy of the message the handle points at.
func (h *StreamHandle) Message() Message {
	l := h.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if h.index < 0 || h.index >= len(l.messages) {
		return Message{}
	}
	return l.messages[h.index]
}
