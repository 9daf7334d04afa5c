// ABOUTME: Tests for the SQLite conversation store and debounced saver.
// ABOUTME: Uses t.TempDir databases; covers CRUD, round-trips, debounce.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternworks/atelier/internal/chat"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_ConversationCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "First chat")
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "First chat", got.Title)

	require.NoError(t, s.RenameConversation(ctx, conv.ID, "Renamed"))
	got, err = s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	_, err = s.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_NotFoundErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.RenameConversation(ctx, "missing", "x"), ErrNotFound)
	assert.ErrorIs(t, s.DeleteConversation(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, s.SaveMessages(ctx, "missing", nil), ErrNotFound)
}

func TestSQLiteStore_ListOrderedByUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateConversation(ctx, "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.CreateConversation(ctx, "second")
	require.NoError(t, err)

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	// Touching the older conversation moves it to the front.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.SaveMessages(ctx, first.ID, []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
	}))

	list, err = s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestSQLiteStore_MessageRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	msgs := []chat.Message{
		{ID: "m1", Role: chat.RoleUser, Content: "run a tool", Timestamp: time.Now().UTC()},
		{
			ID:      "m2",
			Role:    chat.RoleAssistant,
			Content: "on it",
			ToolCalls: []chat.ToolCall{
				{ID: "c1", Name: "echo", Arguments: `{"text":"hi"}`},
			},
			Timestamp: time.Now().UTC(),
		},
		{
			ID:         "m3",
			Role:       chat.RoleTool,
			Content:    `{"success":true,"message":"hi"}`,
			ToolCallID: "c1",
			Name:       "echo",
			Timestamp:  time.Now().UTC(),
		},
	}
	require.NoError(t, s.SaveMessages(ctx, conv.ID, msgs))

	loaded, err := s.LoadMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, "m1", loaded[0].ID)
	assert.Equal(t, chat.RoleUser, loaded[0].Role)

	require.Len(t, loaded[1].ToolCalls, 1)
	assert.Equal(t, "echo", loaded[1].ToolCalls[0].Name)
	assert.Equal(t, `{"text":"hi"}`, loaded[1].ToolCalls[0].Arguments)

	assert.Equal(t, "c1", loaded[2].ToolCallID)
	assert.Equal(t, "echo", loaded[2].Name)
}

func TestSQLiteStore_SaveReplacesWholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	require.NoError(t, s.SaveMessages(ctx, conv.ID, []chat.Message{
		{Role: chat.RoleUser, Content: "one"},
		{Role: chat.RoleAssistant, Content: "two"},
	}))
	require.NoError(t, s.SaveMessages(ctx, conv.ID, []chat.Message{
		{Role: chat.RoleUser, Content: "only"},
	}))

	loaded, err := s.LoadMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "only", loaded[0].Content)
}

func TestSQLiteStore_DeleteCascadesToMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)
	require.NoError(t, s.SaveMessages(ctx, conv.ID, []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
	}))

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))

	loaded, err := s.LoadMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSQLiteStore_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	conv, err := s.CreateConversation(context.Background(), "kept")
	require.NoError(t, err)
	require.NoError(t, s.SaveMessages(context.Background(), conv.ID, []chat.Message{
		{Role: chat.RoleUser, Content: "still here"},
	}))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	loaded, err := s2.LoadMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "still here", loaded[0].Content)
}

func TestSaver_DebouncesBursts(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation(context.Background(), "chat")
	require.NoError(t, err)

	saver := NewSaver(s, 30*time.Millisecond, nil)
	defer saver.Close()

	// A burst of schedules collapses into the final snapshot.
	for i := 1; i <= 5; i++ {
		saver.Schedule(conv.ID, []chat.Message{
			{Role: chat.RoleAssistant, Content: "draft"},
		})
	}
	saver.Schedule(conv.ID, []chat.Message{
		{Role: chat.RoleAssistant, Content: "final"},
	})

	require.Eventually(t, func() bool {
		loaded, err := s.LoadMessages(context.Background(), conv.ID)
		return err == nil && len(loaded) == 1 && loaded[0].Content == "final"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSaver_FlushWritesImmediately(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation(context.Background(), "chat")
	require.NoError(t, err)

	saver := NewSaver(s, time.Hour, nil) // would never fire on its own
	defer saver.Close()

	saver.Schedule(conv.ID, []chat.Message{{Role: chat.RoleUser, Content: "now"}})
	saver.Flush()

	loaded, err := s.LoadMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "now", loaded[0].Content)
}

func TestSaver_SwitchingConversationFlushesPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, err := s.CreateConversation(ctx, "a")
	require.NoError(t, err)
	b, err := s.CreateConversation(ctx, "b")
	require.NoError(t, err)

	saver := NewSaver(s, time.Hour, nil)
	defer saver.Close()

	saver.Schedule(a.ID, []chat.Message{{Role: chat.RoleUser, Content: "in a"}})
	saver.Schedule(b.ID, []chat.Message{{Role: chat.RoleUser, Content: "in b"}})

	// Switching targets must not lose the first conversation's data.
	loaded, err := s.LoadMessages(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "in a", loaded[0].Content)

	saver.Flush()
	loaded, err = s.LoadMessages(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestSaver_ScheduleAfterCloseIgnored(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation(context.Background(), "chat")
	require.NoError(t, err)

	saver := NewSaver(s, 10*time.Millisecond, nil)
	saver.Close()

	saver.Schedule(conv.ID, []chat.Message{{Role: chat.RoleUser, Content: "late"}})
	time.Sleep(50 * time.Millisecond)

	loaded, err := s.LoadMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
