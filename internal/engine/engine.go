// ABOUTME: Conversation loop driver: turns, tool batches, chained restarts
// ABOUTME: Cooperative Tick model; tool handlers run inline and in order

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanternworks/atelier/internal/chat"
	"github.com/lanternworks/atelier/internal/dispatch"
	"github.com/lanternworks/atelier/internal/stream"
	"github.com/lanternworks/atelier/internal/tools"
	"github.com/lanternworks/atelier/internal/turn"
)

// ErrBusy is returned by Send while a turn sequence is in progress.
var ErrBusy = errors.New("a turn is already in progress")

// DefaultMaxChainedTurns bounds tool-assisted follow-up turns per user
// message unless configured otherwise.
const DefaultMaxChainedTurns = 8

// stopRequestTimeout bounds the out-of-band stop POST.
const stopRequestTimeout = 10 * time.Second

// Config holds the engine's backend settings.
type Config struct {
	// Endpoint receives the turn POST.
	Endpoint string

	// StopEndpoint receives {"request_id"} stop POSTs. Empty disables
	// stop requests; Stop still aborts the transport.
	StopEndpoint string

	// Model is sent alongside the message list.
	Model string

	// MaxChainedTurns bounds tool-assisted follow-ups per user
	// message. Zero means unbounded.
	MaxChainedTurns int

	// StopTimeout bounds the out-of-band stop POST. Zero or negative
	// falls back to stopRequestTimeout.
	StopTimeout time.Duration
}

// Engine drives the conversation loop for one conversation.
// Send and Tick are intended to be called from the host's single
// update loop; Stop and Clear may be called from other goroutines.
type Engine struct {
	cfg         Config
	log         *chat.Log
	registry    *tools.Registry
	broadcaster *chat.Broadcaster
	lifecycle   *turn.Lifecycle
	dispatcher  *dispatch.Dispatcher
	decoder     *stream.Decoder
	logger      *slog.Logger
	httpClient  *http.Client
	token       func() string
	headers     map[string]string

	mu             sync.Mutex
	conversationID string
	requestID      string
	chained        int
	continueTurn   bool
	terminal       bool
	busy           bool
	lastErr        error
	tickCtx        context.Context
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient overrides the transport for turns and stop requests.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithTokenSource supplies a bearer token for turns and stop requests.
func WithTokenSource(fn func() string) Option {
	return func(e *Engine) { e.token = fn }
}

// WithConversationID sets the id used in published events.
func WithConversationID(id string) Option {
	return func(e *Engine) { e.conversationID = id }
}

// WithIdentityHeaders attaches extra headers to every turn request.
func WithIdentityHeaders(h map[string]string) Option {
	return func(e *Engine) { e.headers = h }
}

// NewEngine wires a conversation loop around the given log and
// registry. Pass a nil broadcaster to disable event fan-out.
func NewEngine(cfg Config, log *chat.Log, registry *tools.Registry, broadcaster *chat.Broadcaster, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = stopRequestTimeout
	}
	e := &Engine{
		cfg:            cfg,
		log:            log,
		registry:       registry,
		broadcaster:    broadcaster,
		decoder:        &stream.Decoder{},
		logger:         logger.With("component", "engine"),
		conversationID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(e)
	}

	lifeOpts := []turn.Option{}
	if e.httpClient != nil {
		lifeOpts = append(lifeOpts, turn.WithHTTPClient(e.httpClient))
	}
	if e.token != nil {
		lifeOpts = append(lifeOpts, turn.WithTokenSource(e.token))
	}
	if len(e.headers) > 0 {
		lifeOpts = append(lifeOpts, turn.WithHeaders(e.headers))
	}
	e.lifecycle = turn.NewLifecycle(logger, lifeOpts...)

	e.dispatcher = dispatch.NewDispatcher(log, dispatch.Hooks{
		Delta:            e.onDelta,
		AssistantFinal:   e.onAssistantFinal,
		ToolCalls:        e.onToolCalls,
		ApplicationError: e.onApplicationError,
		ProtocolError:    e.onProtocolError,
		RequestStarted:   e.onRequestStarted,
		StreamFinished:   e.onStreamFinished,
		ToolStarting:     e.onToolStarting,
	}, logger)

	return e
}

// Registry returns the tool registry the engine executes against.
func (e *Engine) Registry() *tools.Registry {
	return e.registry
}

// ConversationID returns the id used in published events.
func (e *Engine) ConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversationID
}

// SetConversationID rebinds events to a different conversation,
// used when switching between saved conversations.
func (e *Engine) SetConversationID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conversationID = id
}

// Busy reports whether a turn sequence (including chained tool turns)
// is in progress.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Err returns the most recent turn-fatal error, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// RequestID returns the backend-assigned id of the in-flight request.
func (e *Engine) RequestID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestID
}

// Send appends a user message and starts a turn. Returns ErrBusy while
// a previous turn sequence is still running.
func (e *Engine) Send(ctx context.Context, text string) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	e.busy = true
	e.chained = 0
	e.terminal = false
	e.continueTurn = false
	e.lastErr = nil
	e.requestID = ""
	e.mu.Unlock()

	msg := e.log.Append(chat.Message{Role: chat.RoleUser, Content: text})
	e.publish(chat.Event{Type: chat.EventMessage, Message: &msg})

	return e.startTurn(ctx)
}

// startTurn resets the lifecycle and begins a streaming request built
// from the current conversation snapshot.
func (e *Engine) startTurn(ctx context.Context) error {
	if err := e.lifecycle.Reset(); err != nil {
		return err
	}
	e.decoder.Reset()
	e.dispatcher.BeginTurn()

	payload := map[string]any{
		"messages": e.log.Snapshot(),
		"model":    e.cfg.Model,
	}
	if err := e.lifecycle.Start(ctx, e.cfg.Endpoint, payload); err != nil {
		e.failTurn(err)
		return err
	}
	return nil
}

// Tick advances the in-flight turn by at most one transport step.
// It never blocks; the host calls it once per scheduler pass. Returns
// true while the engine still needs ticking.
func (e *Engine) Tick(ctx context.Context) bool {
	if !e.Busy() {
		return false
	}

	e.mu.Lock()
	e.tickCtx = ctx
	e.mu.Unlock()

	res := e.lifecycle.Poll()
	if len(res.Chunk) > 0 {
		for _, line := range e.decoder.Feed(res.Chunk) {
			e.dispatcher.Dispatch(line)
		}
	}
	if res.Done {
		e.finishTurn(ctx, res.Err)
	}

	return e.Busy()
}

// finishTurn handles a turn's terminal state: flushes any unterminated
// final line, surfaces connection errors, and starts the next chained
// turn when a tool batch ran.
func (e *Engine) finishTurn(ctx context.Context, turnErr error) {
	if turnErr == nil {
		if line, ok := e.decoder.Flush(); ok {
			e.dispatcher.Dispatch(line)
		}
	} else {
		e.decoder.Reset()
	}
	e.log.EndStreaming()

	e.mu.Lock()
	if turnErr != nil {
		e.continueTurn = false
		e.lastErr = turnErr
	}
	cont := e.continueTurn && !e.terminal
	e.continueTurn = false
	if cont {
		e.chained++
		if e.cfg.MaxChainedTurns > 0 && e.chained > e.cfg.MaxChainedTurns {
			cont = false
			e.logger.Warn("chained turn limit reached", "limit", e.cfg.MaxChainedTurns)
			e.mu.Unlock()
			e.log.Append(chat.Message{
				Role:    chat.RoleSystem,
				Content: fmt.Sprintf("Stopped after %d chained tool turns.", e.cfg.MaxChainedTurns),
			})
			e.mu.Lock()
		}
	}
	e.mu.Unlock()

	if turnErr != nil {
		if errors.Is(turnErr, context.Canceled) {
			// Deliberate stop, not a transport failure.
			e.log.Append(chat.Message{Role: chat.RoleSystem, Content: "Request stopped."})
		} else {
			msg := e.log.Append(chat.Message{
				Role:    chat.RoleSystem,
				Content: "Connection error: " + turnErr.Error(),
			})
			e.publish(chat.Event{Type: chat.EventError, Err: turnErr.Error(), Message: &msg})
		}
	}

	if cont {
		if err := e.startTurn(ctx); err != nil {
			e.logger.Warn("chained turn failed to start", "error", err)
		}
		return
	}

	e.endSequence()
}

// endSequence marks the turn sequence finished and notifies observers.
func (e *Engine) endSequence() {
	e.mu.Lock()
	e.busy = false
	e.requestID = ""
	e.mu.Unlock()
	e.publish(chat.Event{Type: chat.EventTurnEnd})
}

// failTurn records a start failure as a system-visible notice.
func (e *Engine) failTurn(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.busy = false
	e.mu.Unlock()

	msg := e.log.Append(chat.Message{
		Role:    chat.RoleSystem,
		Content: "Connection error: " + err.Error(),
	})
	e.publish(chat.Event{Type: chat.EventError, Err: err.Error(), Message: &msg})
	e.publish(chat.Event{Type: chat.EventTurnEnd})
}

// Stop asks the backend to halt the in-flight request and tears down
// the transport. Safe to call when nothing is running.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	reqID := e.requestID
	e.terminal = true
	e.mu.Unlock()

	if reqID != "" && e.cfg.StopEndpoint != "" {
		go e.postStop(ctx, reqID)
	}
	e.lifecycle.Abort()
}

// postStop delivers the out-of-band stop request.
func (e *Engine) postStop(ctx context.Context, requestID string) {
	body, _ := json.Marshal(map[string]string{"request_id": requestID})

	ctx, cancel := context.WithTimeout(ctx, e.cfg.StopTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.StopEndpoint, bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("stop request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != nil {
		if tok := e.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	client := e.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		e.logger.Warn("stop request failed", "error", err, "request_id", requestID)
		return
	}
	resp.Body.Close()
	e.logger.Debug("stop request delivered", "request_id", requestID, "status", resp.StatusCode)
}

// Clear abandons any in-flight turn and empties the conversation.
func (e *Engine) Clear() {
	e.lifecycle.Abort()
	e.log.Clear()
	e.dispatcher.Reset()
	e.decoder.Reset()

	e.mu.Lock()
	e.busy = false
	e.requestID = ""
	e.chained = 0
	e.continueTurn = false
	e.terminal = false
	e.lastErr = nil
	e.mu.Unlock()
}

// --- dispatcher hooks, invoked inline during Tick ---

func (e *Engine) onDelta(delta string) {
	e.publish(chat.Event{Type: chat.EventDelta, Delta: delta})
}

func (e *Engine) onAssistantFinal(msg chat.Message) {
	e.publish(chat.Event{Type: chat.EventMessage, Message: &msg})
}

func (e *Engine) onApplicationError(message string) {
	e.mu.Lock()
	e.terminal = true
	e.lastErr = fmt.Errorf("backend error: %s", message)
	e.mu.Unlock()
	e.publish(chat.Event{Type: chat.EventError, Err: message})
}

func (e *Engine) onProtocolError(perr *dispatch.ProtocolError) {
	e.logger.Warn("protocol error", "error", perr)
}

func (e *Engine) onRequestStarted(requestID string) {
	e.mu.Lock()
	e.requestID = requestID
	e.mu.Unlock()
}

func (e *Engine) onStreamFinished(status string) {
	e.logger.Debug("stream finished", "status", status)
	if status == dispatch.StatusStopped {
		e.mu.Lock()
		e.terminal = true
		e.mu.Unlock()
	}
}

func (e *Engine) onToolStarting(name, toolID string) {
	e.publish(chat.Event{Type: chat.EventToolStart, ToolName: name, ToolCallID: toolID})
}

// onToolCalls executes a tool batch in order, appending one tool-role
// message per call, then queues the chained follow-up turn.
func (e *Engine) onToolCalls(msg chat.Message, calls []chat.ToolCall) {
	e.publish(chat.Event{Type: chat.EventMessage, Message: &msg})

	e.mu.Lock()
	ctx := e.tickCtx
	e.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, call := range calls {
		args := parseArguments(call.Arguments, e.logger)

		e.publish(chat.Event{Type: chat.EventToolStart, ToolName: call.Name, ToolCallID: call.ID})
		result := e.registry.Execute(ctx, call.Name, args)

		toolMsg := e.log.Append(chat.Message{
			Role:       chat.RoleTool,
			Content:    result.JSON(),
			ToolCallID: call.ID,
			Name:       call.Name,
		})
		e.publish(chat.Event{
			Type:       chat.EventToolResult,
			Message:    &toolMsg,
			ToolName:   call.Name,
			ToolCallID: call.ID,
		})
	}

	e.log.EndStreaming()

	e.mu.Lock()
	e.continueTurn = true
	e.mu.Unlock()
}

// parseArguments decodes a tool call's raw JSON arguments; malformed
// input degrades to an empty argument map rather than failing the call.
func parseArguments(raw string, logger *slog.Logger) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logger.Warn("unparseable tool arguments, using empty map", "error", err)
		return map[string]any{}
	}
	return args
}

// publish forwards an event to the broadcaster, tagged with the
// conversation id.
func (e *Engine) publish(ev chat.Event) {
	if e.broadcaster == nil {
		return
	}
	e.mu.Lock()
	ev.ConversationID = e.conversationID
	e.mu.Unlock()
	e.broadcaster.Publish(ev)
}
