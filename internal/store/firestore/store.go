// Package firestore stores chats in Cloud Firestore: a "chats" collection
// whose documents own a "messages" subcollection.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

// Store implements store.Store on a Firestore client.
type Store struct {
	client *gcfirestore.Client
}

var _ store.Store = (*Store)(nil)

// New wraps an initialized client. Close releases it.
func New(client *gcfirestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) chatRef(chatID string) *gcfirestore.DocumentRef {
	return s.client.Collection(chatsCollection).Doc(chatID)
}

func (s *Store) messages(chatID string) *gcfirestore.CollectionRef {
	return s.chatRef(chatID).Collection(messagesCollection)
}

func (s *Store) GetChat(ctx context.Context, chatID string) (chat.Chat, error) {
	snap, err := s.chatRef(chatID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return chat.Chat{}, store.ErrNotFound
		}
		return chat.Chat{}, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	return decodeChat(snap)
}

func (s *Store) FindChatsByMember(ctx context.Context, uid string) ([]chat.Chat, error) {
	snaps, err := s.client.Collection(chatsCollection).
		Where("participantUids", "array-contains", uid).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("find chats for %s: %w", uid, err)
	}
	return decodeChats(snaps)
}

func (s *Store) CreateChat(ctx context.Context, c chat.Chat) (string, error) {
	c.LastUpdated = store.Timestamp(c.LastUpdated)
	ref, _, err := s.client.Collection(chatsCollection).Add(ctx, toChatDoc(c))
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	return ref.ID, nil
}

func (s *Store) UpdateLastMessage(ctx context.Context, chatID string, last chat.LastMessage, lastUpdated time.Time) error {
	last.Timestamp = store.Timestamp(last.Timestamp)
	_, err := s.chatRef(chatID).Update(ctx, []gcfirestore.Update{
		{Path: "lastMessage", Value: toLastMessageDoc(last)},
		{Path: "lastUpdated", Value: store.Timestamp(lastUpdated)},
	})
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update last message of %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) MarkLastMessageRead(ctx context.Context, chatID string, sentAt time.Time) error {
	ref := s.chatRef(chatID)
	sentAt = store.Timestamp(sentAt)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *gcfirestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc chatDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.LastMessage == nil || !doc.LastMessage.Timestamp.Equal(sentAt) {
			return nil
		}
		if doc.LastMessage.Status == string(chat.StatusRead) {
			return nil
		}
		return tx.Update(ref, []gcfirestore.Update{{Path: "lastMessage.status", Value: string(chat.StatusRead)}})
	})
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mark last message read on %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) ListChatsByMember(ctx context.Context, uid string, limit int, after *store.Cursor) ([]chat.Chat, error) {
	q := s.client.Collection(chatsCollection).
		Where("participantUids", "array-contains", uid).
		OrderBy("lastUpdated", gcfirestore.Desc).
		OrderBy(gcfirestore.DocumentID, gcfirestore.Desc).
		Limit(limit)
	q = startAfter(q, after)
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list chats for %s: %w", uid, err)
	}
	return decodeChats(snaps)
}

func (s *Store) AddMessage(ctx context.Context, chatID string, m chat.Message) (string, error) {
	ref, _, err := s.messages(chatID).Add(ctx, messageDoc{
		SenderID:  m.SenderID,
		Text:      m.Text,
		Timestamp: store.Timestamp(m.Timestamp),
	})
	if err != nil {
		return "", fmt.Errorf("add message to %s: %w", chatID, err)
	}
	return ref.ID, nil
}

func (s *Store) HasMessages(ctx context.Context, chatID string) (bool, error) {
	iter := s.messages(chatID).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check messages of %s: %w", chatID, err)
	}
	return true, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string, limit int, after *store.Cursor) ([]chat.Message, error) {
	q := s.messages(chatID).
		OrderBy("timestamp", gcfirestore.Desc).
		OrderBy(gcfirestore.DocumentID, gcfirestore.Desc).
		Limit(limit)
	q = startAfter(q, after)
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", chatID, err)
	}

	out := make([]chat.Message, 0, len(snaps))
	for _, snap := range snaps {
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.toMessage(snap.Ref.ID, chatID))
	}
	return out, nil
}

// startAfter positions q past the cursor. Without an ID the cursor covers
// only the time field, which skips every document at that instant.
func startAfter(q gcfirestore.Query, c *store.Cursor) gcfirestore.Query {
	switch {
	case c == nil:
		return q
	case c.ID == "":
		return q.StartAfter(c.Time)
	default:
		return q.StartAfter(c.Time, c.ID)
	}
}

// DeleteChat reads every message reference and deletes them together with
// the chat document inside one transaction, so readers never see a partial delete.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	ref := s.chatRef(chatID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *gcfirestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		msgs, err := tx.Documents(s.messages(chatID)).GetAll()
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if err := tx.Delete(m.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	})
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func decodeChat(snap *gcfirestore.DocumentSnapshot) (chat.Chat, error) {
	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return chat.Chat{}, fmt.Errorf("decode chat %s: %w", snap.Ref.ID, err)
	}
	return doc.toChat(snap.Ref.ID), nil
}

func decodeChats(snaps []*gcfirestore.DocumentSnapshot) ([]chat.Chat, error) {
	out := make([]chat.Chat, 0, len(snaps))
	for _, snap := range snaps {
		c, err := decodeChat(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
