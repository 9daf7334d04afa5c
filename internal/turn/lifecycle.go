// ABOUTME: Poll-driven state machine for one streaming chat request
// ABOUTME: A reader goroutine feeds a bounded channel; Poll never blocks

package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync"
)

// State is the lifecycle position of the current turn.
type State int

// Lifecycle states, in order of progression.
const (
	StateIdle State = iota
	StateConnecting
	StateRequesting
	StateBodyStreaming
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRequesting:
		return "requesting"
	case StateBodyStreaming:
		return "body_streaming"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTurnActive is returned by Start while a turn is in flight.
var ErrTurnActive = errors.New("turn already active")

// ConnectionError wraps a transport failure that ends the turn.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// readChunkSize matches the transport read granularity of the original
// streaming client.
const readChunkSize = 4096

// eventChannelSize bounds how far the reader goroutine can run ahead
// of the polling loop.
const eventChannelSize = 32

type eventKind int

const (
	evConnected eventKind = iota
	evRequested
	evChunk
	evDone
)

type event struct {
	kind  eventKind
	chunk []byte
	err   error
}

// PollResult is the outcome of one Poll call.
type PollResult struct {
	// Chunk holds body bytes when this poll produced any; nil is a
	// valid "nothing yet" result, not an error.
	Chunk []byte

	// Done is true once the turn reached its terminal state.
	Done bool

	// Err is the turn-fatal error, set only alongside Done.
	Err error
}

// Lifecycle drives one streaming request at a time. Exactly one
// instance is in flight per conversation; State and Active expose the
// single-flight guard to callers.
type Lifecycle struct {
	client  *http.Client
	logger  *slog.Logger
	token   func() string // optional bearer token source
	headers map[string]string

	mu     sync.Mutex
	state  State
	err    error
	cancel context.CancelFunc
	events chan event
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithHTTPClient overrides the transport, used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Lifecycle) { l.client = c }
}

// WithTokenSource supplies a bearer token attached to each request.
func WithTokenSource(fn func() string) Option {
	return func(l *Lifecycle) { l.token = fn }
}

// WithHeaders attaches fixed extra headers to each request, such as
// machine and project identifiers.
func WithHeaders(h map[string]string) Option {
	return func(l *Lifecycle) { l.headers = h }
}

// NewLifecycle creates an idle Lifecycle. Pass nil logger for default.
func NewLifecycle(logger *slog.Logger, opts ...Option) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Lifecycle{
		client: &http.Client{Timeout: 0}, // streaming body, no overall deadline
		logger: logger.With("component", "turn"),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Active reports whether a turn is in flight, the guard callers use to
// avoid overlapping starts.
func (l *Lifecycle) Active() bool {
	st := l.State()
	return st != StateIdle && st != StateDone
}

// Err returns the terminal error of the last turn, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Start serializes the payload, opens the connection, and moves to
// CONNECTING. It fails fast — transitioning to DONE with a
// ConnectionError — when the endpoint cannot be parsed. Returns
// ErrTurnActive when a turn is already in flight.
func (l *Lifecycle) Start(ctx context.Context, endpoint string, payload any) error {
	l.mu.Lock()
	if l.state != StateIdle && l.state != StateDone {
		l.mu.Unlock()
		return ErrTurnActive
	}

	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		cerr := &ConnectionError{Err: fmt.Errorf("invalid endpoint %q", endpoint)}
		l.state = StateDone
		l.err = cerr
		l.mu.Unlock()
		return cerr
	}

	body, err := json.Marshal(payload)
	if err != nil {
		cerr := &ConnectionError{Err: fmt.Errorf("encoding request: %w", err)}
		l.state = StateDone
		l.err = cerr
		l.mu.Unlock()
		return cerr
	}

	reqCtx, cancel := context.WithCancel(ctx)
	l.state = StateConnecting
	l.err = nil
	l.cancel = cancel
	l.events = make(chan event, eventChannelSize)
	events := l.events
	l.mu.Unlock()

	l.logger.Debug("turn started", "endpoint", endpoint, "body_bytes", len(body))
	go l.run(reqCtx, u.String(), body, events)
	return nil
}

// run performs the blocking request on its own goroutine, translating
// transport progress into events for Poll to drain.
func (l *Lifecycle) run(ctx context.Context, endpoint string, body []byte, events chan event) {
	// Sends select on ctx.Done so an aborted turn never strands this
	// goroutine on a channel nobody drains.
	send := func(ev event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) {
			send(event{kind: evConnected})
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			send(event{kind: evRequested})
		},
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		send(event{kind: evDone, err: &ConnectionError{Err: err}})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	if l.token != nil {
		if tok := l.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	for k, v := range l.headers {
		req.Header.Set(k, v)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		send(event{kind: evDone, err: &ConnectionError{Err: err}})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		send(event{kind: evDone, err: &ConnectionError{Err: statusError(resp)}})
		return
	}

	buf := make([]byte, readChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !send(event{kind: evChunk, chunk: chunk}) {
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				send(event{kind: evDone})
			case ctx.Err() != nil:
				send(event{kind: evDone, err: &ConnectionError{Err: ctx.Err()}})
			default:
				send(event{kind: evDone, err: &ConnectionError{Err: err}})
			}
			return
		}
	}
}

// statusError extracts a useful message from a non-success response,
// preferring a JSON error body when the server sent one.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload map[string]string
	if err := json.Unmarshal(data, &payload); err == nil {
		if msg, ok := payload["error"]; ok && msg != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg)
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

// Poll advances the turn by at most one transport step and returns
// without blocking. It must be called repeatedly until Done.
func (l *Lifecycle) Poll() PollResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateIdle || l.state == StateDone {
		return PollResult{Done: l.state == StateDone, Err: l.err}
	}

	select {
	case ev := <-l.events:
		return l.applyLocked(ev)
	default:
		return PollResult{}
	}
}

// applyLocked folds one transport event into the state machine.
func (l *Lifecycle) applyLocked(ev event) PollResult {
	switch ev.kind {
	case evConnected:
		if l.state == StateConnecting {
			l.state = StateRequesting
		}
		return PollResult{}

	case evRequested:
		// Request issued; the first body bytes complete the transition.
		return PollResult{}

	case evChunk:
		if l.state == StateRequesting || l.state == StateConnecting {
			l.state = StateBodyStreaming
		}
		return PollResult{Chunk: ev.chunk}

	case evDone:
		l.state = StateDone
		l.err = ev.err
		if l.cancel != nil {
			l.cancel()
			l.cancel = nil
		}
		if ev.err != nil {
			l.logger.Warn("turn ended with error", "error", ev.err)
		} else {
			l.logger.Debug("turn completed")
		}
		return PollResult{Done: true, Err: ev.err}

	default:
		return PollResult{}
	}
}

// Abort forces the turn to DONE and tears the connection down. It is a
// no-op when no turn is active.
func (l *Lifecycle) Abort() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateIdle || l.state == StateDone {
		return
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.state = StateDone
	l.err = &ConnectionError{Err: context.Canceled}
	l.logger.Debug("turn aborted")
}

// Reset returns a finished Lifecycle to IDLE. Resetting an active turn
// is rejected so callers cannot bypass the single-flight guard.
func (l *Lifecycle) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateDone && l.state != StateIdle {
		return ErrTurnActive
	}
	l.state = StateIdle
	l.err = nil
	l.events = nil
	return nil
}
