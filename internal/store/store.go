// Package store defines the document-store boundary used by the chat
// services. Drivers live in the firestore, mongo and memory subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
)

// ErrNotFound is returned when a chat document does not exist.
var ErrNotFound = errors.New("store: not found")

// Store persists chats and their message subcollections. Chat values it
// returns carry ciphertext in LastMessage.Text; Message values carry ciphertext in Text.
type Store interface {
	GetChat(ctx context.Context, chatID string) (chat.Chat, error)
	// FindChatsByMember returns every chat whose participantUids contains uid.
	FindChatsByMember(ctx context.Context, uid string) ([]chat.Chat, error)
	CreateChat(ctx context.Context, c chat.Chat) (string, error)
	UpdateLastMessage(ctx context.Context, chatID string, last chat.LastMessage, lastUpdated time.Time) error
	// MarkLastMessageRead flips lastMessage.status to read if the summary still
	// describes the message sent at sentAt. Otherwise it does nothing.
	MarkLastMessageRead(ctx context.Context, chatID string, sentAt time.Time) error
	// ListChatsByMember returns up to limit chats ordered by lastUpdated
	// then id, both descending, starting after the cursor when it is set.
	ListChatsByMember(ctx context.Context, uid string, limit int, after *Cursor) ([]chat.Chat, error)

	AddMessage(ctx context.Context, chatID string, m chat.Message) (string, error)
	// HasMessages checks for at least one message without scanning the log.
	HasMessages(ctx context.Context, chatID string) (bool, error)
	// ListMessages returns up to limit messages ordered by timestamp then
	// id, both descending, starting after the cursor when it is set.
	ListMessages(ctx context.Context, chatID string, limit int, after *Cursor) ([]chat.Message, error)

	// DeleteChat removes the chat and all of its messages in one atomic batch.
	DeleteChat(ctx context.Context, chatID string) error

	Close() error
}

// Timestamp normalizes t to the millisecond UTC precision used for page tokens.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Cursor is the position of the last item of a page in (time, id)
// descending order. A cursor without ID skips everything at Time.
type Cursor struct {
	Time time.Time
	ID   string
}

// Admits reports whether the item at (t, id) comes after c.
func (c Cursor) Admits(t time.Time, id string) bool {
	if t.Before(c.Time) {
		return true
	}
	return t.Equal(c.Time) && c.ID != "" && id < c.ID
}

// Newer reports whether (at, aid) sorts before (bt, bid) in page order.
func Newer(at time.Time, aid string, bt time.Time, bid string) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return aid > bid
}
