// ABOUTME: Store interface and data types for conversation persistence
// ABOUTME: Defines Conversation and the operations the client relies on

package store

import (
	"context"
	"errors"
	"time"

	"github.com/lanternworks/atelier/internal/chat"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Conversation is one named chat session.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the operations for conversation persistence.
type Store interface {
	// CreateConversation creates a new conversation with the given title.
	CreateConversation(ctx context.Context, title string) (*Conversation, error)

	// GetConversation returns a conversation by ID, or ErrNotFound.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversations returns all conversations, most recently
	// updated first.
	ListConversations(ctx context.Context) ([]*Conversation, error)

	// RenameConversation updates a conversation's title.
	RenameConversation(ctx context.Context, id, title string) error

	// DeleteConversation removes a conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error

	// SaveMessages replaces the stored messages of a conversation with
	// the given log contents and bumps its updated_at.
	SaveMessages(ctx context.Context, conversationID string, msgs []chat.Message) error

	// LoadMessages returns a conversation's messages in order.
	LoadMessages(ctx context.Context, conversationID string) ([]chat.Message, error)

	// Close releases the underlying database.
	Close() error
}
