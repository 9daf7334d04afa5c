// Package dispatch interprets decoded stream lines and applies them to
// the conversation log.
//
// # Classification
//
// Each line is a JSON object classified in a fixed precedence order:
// an error field wins over everything, then a tool-execution event
// (status "executing_tools" with an assistant_message), then a content
// delta, then a finalized assistant message. Progress statuses from
// the backend (started, stopped, finished, tool_starting) rank below
// errors and are surfaced through hooks without touching the log.
//
// Lines matching no known shape are ignored, so newer backends can add
// event types without breaking older clients. Lines that are not valid
// JSON are reported as line-local protocol errors and the stream keeps
// going.
//
// # Hooks
//
// The dispatcher mutates the log itself; everything else — tool
// batches for the orchestrator, deltas and finals for display, errors
// — is handed out through the Hooks struct. Nil hooks are skipped.
package dispatch
