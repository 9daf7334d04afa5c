// ABOUTME: Debounced background saver coalescing bursts of log changes
// ABOUTME: Each Schedule resets the timer; the write lands once quiet

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lanternworks/atelier/internal/chat"
)

// DefaultSaveDelay is how long a conversation must stay quiet before a
// scheduled save is written.
const DefaultSaveDelay = 2 * time.Second

// saveTimeout bounds one background write.
const saveTimeout = 30 * time.Second

// Saver debounces SaveMessages calls. Streaming turns touch the log on
// every delta; saving each touch would hammer the database, so writes
// wait for a quiet period.
type Saver struct {
	store  Store
	delay  time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	timer     *time.Timer
	pendingID string
	pending   []chat.Message
	closed    bool
}

// NewSaver creates a Saver. A non-positive delay uses DefaultSaveDelay.
func NewSaver(store Store, delay time.Duration, logger *slog.Logger) *Saver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		store:  store,
		delay:  delay,
		logger: logger.With("component", "saver"),
	}
}

// Schedule queues a save of the given snapshot, replacing any pending
// save and restarting the quiet-period timer. A snapshot for a
// different conversation flushes the pending one first.
func (s *Saver) Schedule(conversationID string, msgs []chat.Message) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.pendingID != "" && s.pendingID != conversationID {
		prevID, prev := s.pendingID, s.pending
		s.pendingID, s.pending = conversationID, msgs
		s.resetTimerLocked()
		s.mu.Unlock()
		s.write(prevID, prev)
		return
	}

	s.pendingID, s.pending = conversationID, msgs
	s.resetTimerLocked()
	s.mu.Unlock()
}

// resetTimerLocked restarts the debounce timer. Must hold mu.
func (s *Saver) resetTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

// fire writes the pending snapshot after the quiet period.
func (s *Saver) fire() {
	s.mu.Lock()
	id, msgs := s.pendingID, s.pending
	s.pendingID, s.pending = "", nil
	s.mu.Unlock()

	if id != "" {
		s.write(id, msgs)
	}
}

// Flush writes any pending snapshot immediately.
func (s *Saver) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	id, msgs := s.pendingID, s.pending
	s.pendingID, s.pending = "", nil
	s.mu.Unlock()

	if id != "" {
		s.write(id, msgs)
	}
}

// Close flushes pending work and stops the saver.
func (s *Saver) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Flush()
}

func (s *Saver) write(conversationID string, msgs []chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.store.SaveMessages(ctx, conversationID, msgs); err != nil {
		s.logger.Warn("conversation save failed", "conversation_id", conversationID, "error", err)
	}
}
