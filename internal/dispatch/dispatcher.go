// ABOUTME: Classifies decoded stream lines and applies them to the log
// ABOUTME: Precedence: error, then tool execution, then delta, then final message

package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lanternworks/atelier/internal/chat"
	"github.com/lanternworks/atelier/internal/dedupe"
)

// Backend status values carried on event lines.
const (
	StatusStarted        = "started"
	StatusStopped        = "stopped"
	StatusFinished       = "finished"
	StatusCompleted      = "completed"
	StatusToolStarting   = "tool_starting"
	StatusExecutingTools = "executing_tools"
)

const (
	batchCacheTTL  = 5 * time.Minute
	batchCacheSize = 1024
)

// ProtocolError describes one stream line that failed JSON parsing.
// It is line-local: the turn continues past it.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unparseable stream line: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Hooks receives the dispatcher's classified output. The dispatcher
// applies log mutations itself; hooks exist so the orchestrator and
// any frontends can react. Nil fields are skipped.
type Hooks struct {
	// Delta fires per content fragment, after the log is updated.
	Delta func(delta string)

	// AssistantFinal fires on the turn's terminal assistant message
	// when it carries no tool calls.
	AssistantFinal func(msg chat.Message)

	// ToolCalls fires when the backend requests tool execution. msg is
	// the finalized assistant message the calls are attached to; calls
	// preserve the backend's order.
	ToolCalls func(msg chat.Message, calls []chat.ToolCall)

	// ApplicationError fires when the backend sends an explicit error.
	// The turn is terminal after this.
	ApplicationError func(message string)

	// ProtocolError fires per unparseable line.
	ProtocolError func(err *ProtocolError)

	// RequestStarted reports the backend-assigned request id, which a
	// stop request later echoes back.
	RequestStarted func(requestID string)

	// StreamFinished reports a clean end of stream ("finished",
	// "completed" or "stopped").
	StreamFinished func(status string)

	// ToolStarting is a progress notice that a tool is about to run
	// backend-side. It carries no conversation content.
	ToolStarting func(name, toolID string)
}

// Dispatcher applies classified event lines to a conversation log.
// Not safe for concurrent use; the turn driver calls it from one
// goroutine.
type Dispatcher struct {
	log    *chat.Log
	hooks  Hooks
	logger *slog.Logger
	seen   *dedupe.Cache
}

// NewDispatcher creates a dispatcher bound to one conversation log.
func NewDispatcher(log *chat.Log, hooks Hooks, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		log:    log,
		hooks:  hooks,
		logger: logger.With("component", "dispatch"),
		seen:   dedupe.New(batchCacheTTL, batchCacheSize),
	}
}

// BeginTurn forgets seen tool batches. Call ids are only unique
// within a single turn, so the duplicate guard must not outlive one.
func (d *Dispatcher) BeginTurn() {
	d.seen.Reset()
}

// Reset forgets seen tool batches. Called when the conversation is
// cleared so a fresh session starts with no suppression state.
func (d *Dispatcher) Reset() {
	d.seen.Reset()
}

// eventLine is the superset of shapes the backend emits. Pointer
// fields distinguish "absent" from "present but empty".
type eventLine struct {
	Error        json.RawMessage `json:"error"`
	Status       string          `json:"status"`
	RequestID    string          `json:"request_id"`
	Message      string          `json:"message"`
	ToolStarting string          `json:"tool_starting"`
	ToolID       string          `json:"tool_id"`
	ContentDelta *string         `json:"content_delta"`
	Assistant    *wireAssistant  `json:"assistant_message"`
}

type wireAssistant struct {
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string       `json:"name"`
		Arguments argumentsRaw `json:"arguments"`
	} `json:"function"`
}

// argumentsRaw accepts tool arguments either as a JSON-encoded string
// or an inline object, keeping both as the raw JSON text.
type argumentsRaw string

func (a *argumentsRaw) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = argumentsRaw(s)
		return nil
	}
	*a = argumentsRaw(trimmed)
	return nil
}

// Dispatch classifies one decoded line and applies it.
func (d *Dispatcher) Dispatch(line string) {
	var ev eventLine
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		perr := &ProtocolError{Line: line, Err: err}
		d.logger.Warn("skipping unparseable stream line", "error", err)
		if d.hooks.ProtocolError != nil {
			d.hooks.ProtocolError(perr)
		}
		return
	}

	switch {
	case hasError(ev.Error):
		d.applyError(errorText(ev.Error))

	case ev.Status == StatusFinished || ev.Status == StatusCompleted:
		d.finishStream(ev.Status)

	case ev.Status == StatusStopped:
		d.finishStream(StatusStopped)

	case ev.Status == StatusStarted:
		d.logger.Debug("request started", "request_id", ev.RequestID)
		if d.hooks.RequestStarted != nil {
			d.hooks.RequestStarted(ev.RequestID)
		}

	case ev.Status == StatusToolStarting:
		if d.hooks.ToolStarting != nil {
			d.hooks.ToolStarting(ev.ToolStarting, ev.ToolID)
		}

	case ev.Status == StatusExecutingTools && ev.Assistant != nil:
		d.applyToolBatch(ev.Assistant)

	case ev.ContentDelta != nil:
		d.applyDelta(*ev.ContentDelta)

	case ev.Assistant != nil:
		// Fallback: a tool-bearing final without the executing_tools
		// status still dispatches the batch.
		if len(ev.Assistant.ToolCalls) > 0 {
			d.applyToolBatch(ev.Assistant)
			return
		}
		d.applyFinal(ev.Assistant.Content)

	default:
		d.logger.Debug("ignoring unrecognized stream line")
	}
}

func (d *Dispatcher) applyError(message string) {
	d.log.EndStreaming()
	d.log.Append(chat.Message{
		Role:    chat.RoleSystem,
		Content: "Backend error: " + message,
	})
	d.logger.Error("backend reported error", "message", message)
	if d.hooks.ApplicationError != nil {
		d.hooks.ApplicationError(message)
	}
}

func (d *Dispatcher) finishStream(status string) {
	d.log.EndStreaming()
	if d.hooks.StreamFinished != nil {
		d.hooks.StreamFinished(status)
	}
}

func (d *Dispatcher) applyDelta(delta string) {
	if h := d.log.Streaming(); h != nil {
		h.AppendContent(delta)
	} else {
		d.log.BeginStreaming(delta)
	}
	if d.hooks.Delta != nil {
		d.hooks.Delta(delta)
	}
}

func (d *Dispatcher) applyFinal(content string) {
	var msg chat.Message
	if h := d.log.Streaming(); h != nil {
		h.SetContent(content)
		msg = h.Message()
	} else {
		msg = d.log.Append(chat.Message{Role: chat.RoleAssistant, Content: content})
	}
	d.log.EndStreaming()
	if d.hooks.AssistantFinal != nil {
		d.hooks.AssistantFinal(msg)
	}
}

func (d *Dispatcher) applyToolBatch(am *wireAssistant) {
	calls := make([]chat.ToolCall, 0, len(am.ToolCalls))
	ids := make([]string, 0, len(am.ToolCalls))
	for _, wc := range am.ToolCalls {
		calls = append(calls, chat.ToolCall{
			ID:        wc.ID,
			Name:      wc.Function.Name,
			Arguments: string(wc.Function.Arguments),
		})
		ids = append(ids, wc.ID)
	}

	// The backend occasionally re-announces a batch within a stream;
	// run it once. The first announcement already finalized the
	// assistant message, so dropping the repeat loses nothing. The
	// cache is cleared at turn start: call ids are only unique within
	// a turn, and a later turn may legitimately reuse them.
	if len(ids) > 0 {
		key := strings.Join(ids, "\x1f")
		if d.seen.CheckAndMark(key) {
			d.logger.Debug("ignoring duplicate tool batch", "ids", ids)
			return
		}
	}

	var msg chat.Message
	if h := d.log.Streaming(); h != nil {
		h.SetContent(am.Content)
		h.SetToolCalls(calls)
		msg = h.Message()
	} else {
		msg = d.log.Append(chat.Message{
			Role:      chat.RoleAssistant,
			Content:   am.Content,
			ToolCalls: calls,
		})
	}
	d.log.EndStreaming()

	d.logger.Info("tool batch received", "count", len(calls))
	if d.hooks.ToolCalls != nil {
		d.hooks.ToolCalls(msg, calls)
	}
}

func hasError(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// errorText renders the error field, which may be a plain string or a
// structured object.
func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}
