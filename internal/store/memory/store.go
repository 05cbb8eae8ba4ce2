package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
)

type chatRecord struct {
	chat     chat.Chat
	messages []chat.Message
}

// Store keeps chats in process memory. It is safe for concurrent use and
// mirrors the query semantics of the document drivers.
type Store struct {
	mu    sync.RWMutex
	chats map[string]*chatRecord
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{chats: make(map[string]*chatRecord)}
}

func (s *Store) GetChat(_ context.Context, chatID string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, store.ErrNotFound
	}
	return cloneChat(rec.chat), nil
}

func (s *Store) FindChatsByMember(_ context.Context, uid string) ([]chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []chat.Chat
	for _, rec := range s.chats {
		if rec.chat.HasParticipant(uid) {
			out = append(out, cloneChat(rec.chat))
		}
	}
	return out, nil
}

func (s *Store) CreateChat(_ context.Context, c chat.Chat) (string, error) {
	c.ID = uuid.NewString()
	c.LastUpdated = store.Timestamp(c.LastUpdated)

	s.mu.Lock()
	s.chats[c.ID] = &chatRecord{chat: cloneChat(c), messages: make([]chat.Message, 0, 16)}
	s.mu.Unlock()

	return c.ID, nil
}

func (s *Store) UpdateLastMessage(_ context.Context, chatID string, last chat.LastMessage, lastUpdated time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return store.ErrNotFound
	}
	last.Timestamp = store.Timestamp(last.Timestamp)
	rec.chat.LastMessage = &last
	rec.chat.LastUpdated = store.Timestamp(lastUpdated)
	return nil
}

func (s *Store) MarkLastMessageRead(_ context.Context, chatID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return store.ErrNotFound
	}
	last := rec.chat.LastMessage
	if last == nil || !last.Timestamp.Equal(store.Timestamp(sentAt)) {
		return nil
	}
	last.Status = chat.StatusRead
	return nil
}

func (s *Store) ListChatsByMember(_ context.Context, uid string, limit int, after *store.Cursor) ([]chat.Chat, error) {
	s.mu.RLock()
	var matches []chat.Chat
	for _, rec := range s.chats {
		if !rec.chat.HasParticipant(uid) {
			continue
		}
		if after != nil && !after.Admits(rec.chat.LastUpdated, rec.chat.ID) {
			continue
		}
		matches = append(matches, cloneChat(rec.chat))
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return store.Newer(matches[i].LastUpdated, matches[i].ID, matches[j].LastUpdated, matches[j].ID)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) AddMessage(_ context.Context, chatID string, m chat.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return "", store.ErrNotFound
	}
	m.ID = uuid.NewString()
	m.ChatID = chatID
	m.Timestamp = store.Timestamp(m.Timestamp)
	rec.messages = append(rec.messages, m)
	return m.ID, nil
}

func (s *Store) HasMessages(_ context.Context, chatID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return false, nil
	}
	return len(rec.messages) > 0, nil
}

func (s *Store) ListMessages(_ context.Context, chatID string, limit int, after *store.Cursor) ([]chat.Message, error) {
	s.mu.RLock()
	rec, ok := s.chats[chatID]
	var matches []chat.Message
	if ok {
		for _, m := range rec.messages {
			if after != nil && !after.Admits(m.Timestamp, m.ID) {
				continue
			}
			matches = append(matches, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return store.Newer(matches[i].Timestamp, matches[i].ID, matches[j].Timestamp, matches[j].ID)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) DeleteChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return store.ErrNotFound
	}
	delete(s.chats, chatID)
	return nil
}

// MessageCount reports how many messages a chat holds, or -1 if the chat is gone.
func (s *Store) MessageCount(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return -1
	}
	return len(rec.messages)
}

func (s *Store) Close() error { return nil }

func cloneChat(c chat.Chat) chat.Chat {
	c.Participants = append([]chat.Participant(nil), c.Participants...)
	c.ParticipantUIDs = append([]string(nil), c.ParticipantUIDs...)
	if c.LastMessage != nil {
		last := *c.LastMessage
		c.LastMessage = &last
	}
	return c
}
