// Package chat holds the conversation state shared by every other layer.
//
// # Overview
//
// A conversation is an ordered log of messages. The Log is the single
// source of truth: the turn layer serializes it into each outgoing
// request, the dispatch layer mutates it as stream events arrive, and
// the engine appends tool results to it between turns.
//
// # Messages
//
// Message roles:
//
//   - user: typed by the person driving the session
//   - assistant: produced by the backend, possibly carrying tool calls
//   - tool: the serialized result of one local tool invocation
//   - system: local notices (connection errors, backend errors)
//
// Messages are append-only with one exception: while a turn is
// streaming, the content of the current assistant message grows as
// content deltas arrive. That mutation goes through an explicit
// StreamHandle obtained from the Log, never through index arithmetic,
// so the single-writer rule is visible at the call site.
//
// # Wire shape
//
// Snapshot converts the log into the JSON shape the backend expects:
//
//	{ "role": ..., "content": ..., "tool_calls": [...],
//	  "tool_call_id": ..., "name": ... }
//
// tool_calls appears only on assistant messages that have them;
// tool_call_id and name appear only on tool messages.
//
// # Broadcasting
//
// The Broadcaster fans conversation events out to frontends (terminal
// UI, tests) so they can render streaming progress without polling the
// Log.
package chat
