// ABOUTME: Tests for the conversation log and streaming handle.
// ABOUTME: Covers append semantics, wire snapshots, and handle invalidation.

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendFillsIdentity(t *testing.T) {
	log := NewLog()

	msg := log.Append(Message{Role: RoleUser, Content: "hello"})

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Equal(t, 1, log.Len())
}

func TestLog_AppendNormalizesSentinel(t *testing.T) {
	log := NewLog()

	msg := log.Append(Message{Role: RoleAssistant, Content: NullSentinel})

	assert.Empty(t, msg.Content)
}

func TestLog_StreamingAccumulates(t *testing.T) {
	log := NewLog()

	h := log.BeginStreaming("Hel")
	h.AppendContent("lo")

	msgs := log.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
}

func TestLog_StreamingInitialSentinelKeptLiteral(t *testing.T) {
	log := NewLog()

	// Deltas are exempt from sentinel normalization.
	log.BeginStreaming(NullSentinel)

	msgs := log.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, NullSentinel, msgs[0].Content)
}

func TestLog_SetContentNormalizes(t *testing.T) {
	log := NewLog()

	h := log.BeginStreaming("draft")
	h.SetContent(NullSentinel)

	msgs := log.Messages()
	assert.Empty(t, msgs[0].Content)
}

func TestLog_HandleInvalidatedByAppend(t *testing.T) {
	log := NewLog()

	h := log.BeginStreaming("partial")
	log.Append(Message{Role: RoleUser, Content: "interruption"})

	// The streaming message is no longer last; mutations are dropped.
	h.AppendContent(" more")

	msgs := log.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial", msgs[0].Content)
	assert.Nil(t, log.Streaming())
}

func TestLog_EndStreamingClosesHandle(t *testing.T) {
	log := NewLog()

	h := log.BeginStreaming("done")
	log.EndStreaming()

	h.AppendContent(" extra")
	assert.Equal(t, "done", log.Messages()[0].Content)
	assert.Nil(t, log.Streaming())
}

func TestLog_SetToolCallsOnce(t *testing.T) {
	log := NewLog()

	h := log.BeginStreaming("")
	h.SetToolCalls([]ToolCall{{ID: "1", Name: "first"}})
	h.SetToolCalls([]ToolCall{{ID: "2", Name: "second"}})

	msgs := log.Messages()
	require.Len(t, msgs[0].ToolCalls, 1)
	assert.Equal(t, "first", msgs[0].ToolCalls[0].Name)
}

func TestLog_SnapshotWireShape(t *testing.T) {
	log := NewLog()
	log.Append(Message{Role: RoleUser, Content: "hi"})
	log.Append(Message{
		Role:      RoleAssistant,
		Content:   "checking",
		ToolCalls: []ToolCall{{ID: "c1", Name: "echo", Arguments: `{"a":1}`}},
	})
	log.Append(Message{
		Role:       RoleTool,
		Content:    `{"success":true}`,
		ToolCallID: "c1",
		Name:       "echo",
		// Stray tool_calls on a tool message must not serialize.
		ToolCalls: []ToolCall{{ID: "bogus"}},
	})

	wire := log.Snapshot()
	require.Len(t, wire, 3)

	assert.Empty(t, wire[0].ToolCalls)
	assert.Empty(t, wire[0].ToolCallID)

	require.Len(t, wire[1].ToolCalls, 1)
	assert.Equal(t, "function", wire[1].ToolCalls[0].Type)
	assert.Equal(t, "echo", wire[1].ToolCalls[0].Function.Name)
	assert.Equal(t, `{"a":1}`, wire[1].ToolCalls[0].Function.Arguments)

	assert.Empty(t, wire[2].ToolCalls)
	assert.Equal(t, "c1", wire[2].ToolCallID)
	assert.Equal(t, "echo", wire[2].Name)
}

func TestLog_SnapshotIdempotent(t *testing.T) {
	log := NewLog()
	log.Append(Message{Role: RoleUser, Content: "hi"})
	log.Append(Message{Role: RoleAssistant, Content: "hello"})

	first := log.Snapshot()
	second := log.Snapshot()

	assert.Equal(t, first, second)
}

func TestLog_Clear(t *testing.T) {
	log := NewLog()
	log.Append(Message{Role: RoleUser, Content: "hi"})
	log.BeginStreaming("partial")

	log.Clear()

	assert.Zero(t, log.Len())
	assert.Nil(t, log.Streaming())
}

func TestLog_Restore(t *testing.T) {
	log := NewLog()
	log.Append(Message{Role: RoleUser, Content: "old"})

	log.Restore([]Message{
		{ID: "a", Role: RoleUser, Content: "one"},
		{ID: "b", Role: RoleAssistant, Content: "two"},
	})

	msgs := log.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Nil(t, log.Streaming())
}

func TestLog_Last(t *testing.T) {
	log := NewLog()

	_, ok := log.Last()
	assert.False(t, ok)

	log.Append(Message{Role: RoleUser, Content: "only"})
	last, ok := log.Last()
	require.True(t, ok)
	assert.Equal(t, "only", last.Content)
}
