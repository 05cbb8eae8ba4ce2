package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
)

// Visible reports whether requester may see m at now: senders always see
// their own messages, everyone else only once delay has elapsed.
func Visible(m chat.Message, requester string, now time.Time, delay time.Duration) bool {
	return m.SenderID == requester || now.Sub(m.Timestamp) >= delay
}

// FetchMessages returns one page of the messages requester may see,
// oldest first, and the token of the next (older) page.
//
// The store is read newest first, pageSize+1 at a time. Invisible messages
// are dropped from that batch without backfilling, so a page can hold fewer
// than pageSize messages, and the next-page token is only produced when the
// filtered batch still overflows the page.
//
// A missing chat yields an empty page rather than an error.
func (s *Service) FetchMessages(ctx context.Context, chatID, requester string, pageSize int, pageToken string) (chat.MessagePage, error) {
	size := s.pageSize(pageSize)
	cursor, err := parsePageToken(pageToken)
	if err != nil {
		return chat.MessagePage{}, err
	}

	c, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return emptyMessagePage(), nil
	}
	if err != nil {
		return chat.MessagePage{}, s.dependencyFailure("failed to fetch messages", err, zap.String("chat_id", chatID))
	}

	if s.cfg.MarkReadOnFetch {
		s.markLastMessageRead(ctx, c, requester)
	}

	batch, err := s.store.ListMessages(ctx, chatID, size+1, cursor)
	if err != nil {
		return chat.MessagePage{}, s.dependencyFailure("failed to fetch messages", err, zap.String("chat_id", chatID))
	}

	now := s.now()
	visible := make([]chat.Message, 0, len(batch))
	for _, m := range batch {
		if !Visible(m, requester, now, s.cfg.PenpalDelay) {
			continue
		}
		m.ChatID = chatID
		m.Text = s.decryptText(chatID, m.Text)
		visible = append(visible, m)
	}

	var next *string
	if len(visible) > size {
		last := visible[size-1]
		next = formatPageToken(last.Timestamp, last.ID)
		visible = visible[:size]
	}
	reverseMessages(visible)

	return chat.MessagePage{Messages: visible, NextPageToken: next}, nil
}

// FetchLatestChats returns requester's chats ordered by most recent
// activity. Summary text is decrypted and shown without the embargo.
func (s *Service) FetchLatestChats(ctx context.Context, requester string, pageSize int, pageToken string) (chat.ChatPage, error) {
	size := s.pageSize(pageSize)
	after, err := parsePageToken(pageToken)
	if err != nil {
		return chat.ChatPage{}, err
	}

	chats, err := s.store.ListChatsByMember(ctx, requester, size+1, after)
	if err != nil {
		return chat.ChatPage{}, s.dependencyFailure("failed to fetch latest chats", err, zap.String("uid", requester))
	}

	var next *string
	if len(chats) > size {
		last := chats[size-1]
		next = formatPageToken(last.LastUpdated, last.ID)
		chats = chats[:size]
	}

	out := make([]chat.Chat, 0, len(chats))
	for _, c := range chats {
		out = append(out, s.present(c))
	}
	return chat.ChatPage{Chats: out, NextPageToken: next}, nil
}

func emptyMessagePage() chat.MessagePage {
	return chat.MessagePage{Messages: []chat.Message{}}
}

func reverseMessages(msgs []chat.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
