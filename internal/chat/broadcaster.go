// ABOUTME: In-memory fan-out broadcaster for conversation events
// ABOUTME: Lets frontends observe streaming progress without polling the Log

package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Event types published by the engine as a turn progresses.
const (
	EventDelta      = "delta"       // streamed content fragment
	EventMessage    = "message"     // a message was appended or finalized
	EventToolStart  = "tool_start"  // a tool invocation is beginning
	EventToolResult = "tool_result" // a tool invocation finished
	EventTurnEnd    = "turn_end"    // the turn reached a terminal state
	EventError      = "error"       // a turn-fatal error was surfaced
)

// Event is one observable step of a conversation.
type Event struct {
	Type           string
	ConversationID string
	Delta          string
	Message        *Message
	ToolName       string
	ToolCallID     string
	Err            string
}

// Broadcaster provides in-memory pub/sub for conversation events.
// Subscribers register for a conversation ID and receive events as the
// engine publishes them.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for events on the given conversation.
// Returns a receive channel and a subscription ID. The subscription is
// cleaned up automatically when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan Event)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers of its conversation.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(event Event) {
	// Send while holding the read lock: Unsubscribe and Close close
	// channels under the write lock, so a channel cannot be closed
	// mid-publish. Sends never block, so the lock is held briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.ConversationID] {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"conversation_id", event.ConversationID,
				"type", event.Type)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}
}
