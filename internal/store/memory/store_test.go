package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
	"github.com/zhouzirui/penpal/backend/internal/store/memory"
	"github.com/zhouzirui/penpal/backend/internal/store/storetest"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newChat(t *testing.T, s *memory.Store, a, b string, updated time.Time) string {
	t.Helper()
	id, err := s.CreateChat(context.Background(), chat.Chat{
		Participants:    []chat.Participant{{UID: a}, {UID: b}},
		ParticipantUIDs: []string{a, b},
		Type:            chat.TypePenpal,
		LastUpdated:     updated,
	})
	require.NoError(t, err)
	return id
}

func TestGetChatNotFound(t *testing.T) {
	s := memory.New()
	_, err := s.GetChat(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListMessagesNewestFirstWithCursor(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	id := newChat(t, s, "alice", "bob", base)

	for i := 0; i < 5; i++ {
		_, err := s.AddMessage(ctx, id, chat.Message{SenderID: "alice", Text: "c", Timestamp: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	page, err := s.ListMessages(ctx, id, 3, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, base.Add(4*time.Second), page[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Second), page[2].Timestamp)

	rest, err := s.ListMessages(ctx, id, 3, &store.Cursor{Time: page[2].Timestamp, ID: page[2].ID})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, base.Add(time.Second), rest[0].Timestamp)
	assert.Equal(t, base, rest[1].Timestamp)
}

func TestListMessagesCursorSplitsSameMillisecond(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	id := newChat(t, s, "alice", "bob", base)

	for i := 0; i < 3; i++ {
		_, err := s.AddMessage(ctx, id, chat.Message{SenderID: "alice", Text: "c", Timestamp: base})
		require.NoError(t, err)
	}

	var seen []string
	var cursor *store.Cursor
	for {
		page, err := s.ListMessages(ctx, id, 1, cursor)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		seen = append(seen, page[0].ID)
		cursor = &store.Cursor{Time: page[0].Timestamp, ID: page[0].ID}
	}
	require.Len(t, seen, 3)
	assert.Greater(t, seen[0], seen[1])
	assert.Greater(t, seen[1], seen[2])

	// A time-only cursor skips the whole millisecond.
	rest, err := s.ListMessages(ctx, id, 10, &store.Cursor{Time: base})
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestListChatsByMemberOrdersByRecency(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	older := newChat(t, s, "alice", "bob", base)
	newer := newChat(t, s, "carol", "alice", base.Add(time.Minute))
	newChat(t, s, "carol", "dave", base.Add(2*time.Minute))

	chats, err := s.ListChatsByMember(ctx, "alice", 10, nil)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, newer, chats[0].ID)
	assert.Equal(t, older, chats[1].ID)

	chats, err = s.ListChatsByMember(ctx, "alice", 10, &store.Cursor{Time: chats[0].LastUpdated, ID: chats[0].ID})
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, older, chats[0].ID)
}

func TestMarkLastMessageReadIgnoresNewerSummary(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	id := newChat(t, s, "alice", "bob", base)

	require.NoError(t, s.UpdateLastMessage(ctx, id, chat.LastMessage{SenderID: "alice", Text: "x", Timestamp: base.Add(time.Second), Status: chat.StatusUnread}, base.Add(time.Second)))
	require.NoError(t, s.MarkLastMessageRead(ctx, id, base))

	c, err := s.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusUnread, c.LastMessage.Status)

	require.NoError(t, s.MarkLastMessageRead(ctx, id, base.Add(time.Second)))
	c, err = s.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusRead, c.LastMessage.Status)
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	id := newChat(t, s, "alice", "bob", base)
	_, err := s.AddMessage(ctx, id, chat.Message{SenderID: "alice", Text: "c", Timestamp: base})
	require.NoError(t, err)

	require.NoError(t, s.DeleteChat(ctx, id))
	assert.Equal(t, -1, s.MessageCount(id))

	has, err := s.HasMessages(ctx, id)
	require.NoError(t, err)
	assert.False(t, has)
	assert.ErrorIs(t, s.DeleteChat(ctx, id), store.ErrNotFound)
}

func TestReturnedChatsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	id := newChat(t, s, "alice", "bob", base)

	c, err := s.GetChat(ctx, id)
	require.NoError(t, err)
	c.ParticipantUIDs[0] = "mallory"

	again, err := s.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.ParticipantUIDs[0])
}

func TestStoreBehaviour(t *testing.T) {
	storetest.Run(t, memory.New())
}
