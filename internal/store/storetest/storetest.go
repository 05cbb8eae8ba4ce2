// Package storetest holds behaviour checks shared by every store driver.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run exercises s against the query and mutation rules of store.Store.
// Fixtures use fresh uids so a shared backend can host repeated runs.
func Run(t *testing.T, s store.Store) {
	t.Run("GetChatNotFound", func(t *testing.T) { testGetChatNotFound(t, s) })
	t.Run("MessagesPageThroughSameMillisecond", func(t *testing.T) { testMessagesPageThroughSameMillisecond(t, s) })
	t.Run("ChatsPageThroughSameMillisecond", func(t *testing.T) { testChatsPageThroughSameMillisecond(t, s) })
	t.Run("MarkLastMessageReadIsConditional", func(t *testing.T) { testMarkLastMessageReadIsConditional(t, s) })
	t.Run("DeleteChatCascades", func(t *testing.T) { testDeleteChatCascades(t, s) })
}

func newChat(t *testing.T, s store.Store, a, b string, updated time.Time) string {
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

func addMessage(t *testing.T, s store.Store, chatID string, at time.Time) string {
	t.Helper()
	id, err := s.AddMessage(context.Background(), chatID, chat.Message{SenderID: "alice", Text: "ct", Timestamp: at})
	require.NoError(t, err)
	return id
}

func testGetChatNotFound(t *testing.T, s store.Store) {
	_, err := s.GetChat(context.Background(), "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testMessagesPageThroughSameMillisecond(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := newChat(t, s, uuid.NewString(), uuid.NewString(), base)

	tied := map[string]bool{
		addMessage(t, s, id, base): true,
		addMessage(t, s, id, base): true,
	}
	newest := addMessage(t, s, id, base.Add(time.Second))

	var seen []chat.Message
	var cursor *store.Cursor
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "pagination does not terminate")
		page, err := s.ListMessages(ctx, id, 1, cursor)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		require.Len(t, page, 1)
		seen = append(seen, page[0])
		cursor = &store.Cursor{Time: page[0].Timestamp, ID: page[0].ID}
	}

	require.Len(t, seen, 3)
	assert.Equal(t, newest, seen[0].ID)
	assert.True(t, tied[seen[1].ID])
	assert.True(t, tied[seen[2].ID])
	assert.NotEqual(t, seen[1].ID, seen[2].ID)
	assert.Equal(t, base, seen[2].Timestamp.UTC())

	rest, err := s.ListMessages(ctx, id, 10, &store.Cursor{Time: base})
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func testChatsPageThroughSameMillisecond(t *testing.T, s store.Store) {
	ctx := context.Background()
	member := uuid.NewString()

	want := map[string]bool{
		newChat(t, s, member, uuid.NewString(), base):                   true,
		newChat(t, s, uuid.NewString(), member, base):                   true,
		newChat(t, s, member, uuid.NewString(), base.Add(-time.Minute)): true,
	}
	newChat(t, s, uuid.NewString(), uuid.NewString(), base)

	seen := map[string]bool{}
	var cursor *store.Cursor
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "pagination does not terminate")
		page, err := s.ListChatsByMember(ctx, member, 1, cursor)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		seen[page[0].ID] = true
		cursor = &store.Cursor{Time: page[0].LastUpdated, ID: page[0].ID}
	}
	assert.Equal(t, want, seen)
}

func testMarkLastMessageReadIsConditional(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := newChat(t, s, uuid.NewString(), uuid.NewString(), base)
	sent := base.Add(time.Second)

	require.NoError(t, s.UpdateLastMessage(ctx, id, chat.LastMessage{
		SenderID: "alice", Text: "ct", Timestamp: sent, Status: chat.StatusUnread,
	}, sent))

	require.NoError(t, s.MarkLastMessageRead(ctx, id, base))
	c, err := s.GetChat(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, chat.StatusUnread, c.LastMessage.Status)

	require.NoError(t, s.MarkLastMessageRead(ctx, id, sent))
	c, err = s.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusRead, c.LastMessage.Status)
	assert.Equal(t, sent, c.LastUpdated.UTC())
}

func testDeleteChatCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := newChat(t, s, uuid.NewString(), uuid.NewString(), base)
	addMessage(t, s, id, base)
	addMessage(t, s, id, base.Add(time.Second))

	has, err := s.HasMessages(ctx, id)
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, s.DeleteChat(ctx, id))

	_, err = s.GetChat(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	has, err = s.HasMessages(ctx, id)
	require.NoError(t, err)
	assert.False(t, has)
	msgs, err := s.ListMessages(ctx, id, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.ErrorIs(t, s.DeleteChat(ctx, id), store.ErrNotFound)
}
