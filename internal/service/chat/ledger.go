package chat

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/events"
	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
)

// SendMessage encrypts and appends text to the chat, then refreshes the
// chat's last message summary. It returns the stored message with its
// plaintext and the chat type.
//
// The append and the summary update are two writes; a concurrent reader may
// briefly see the new message before the summary points at it.
func (s *Service) SendMessage(ctx context.Context, chatID, senderID, text string) (chat.Message, chat.Type, error) {
	if strings.TrimSpace(chatID) == "" {
		return chat.Message{}, "", appErrors.ErrChatIDRequired
	}
	if text == "" {
		return chat.Message{}, "", appErrors.ErrTextRequired
	}
	if senderID == "" {
		return chat.Message{}, "", appErrors.ErrInvalidToken
	}

	c, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return chat.Message{}, "", appErrors.ErrChatNotFound
	}
	if err != nil {
		return chat.Message{}, "", s.dependencyFailure("failed to send message", err, zap.String("chat_id", chatID))
	}

	if c.Type == chat.TypeOnetime {
		release, err := s.locker.Acquire(ctx, "chat:"+chatID+":onetime")
		if err != nil {
			return chat.Message{}, "", s.dependencyFailure("failed to send message", err, zap.String("chat_id", chatID))
		}
		defer release()

		used, err := s.store.HasMessages(ctx, chatID)
		if err != nil {
			return chat.Message{}, "", s.dependencyFailure("failed to send message", err, zap.String("chat_id", chatID))
		}
		if used {
			return chat.Message{}, "", appErrors.ErrOnetimeChatUsed
		}
	}

	ciphertext, err := s.cipher.Encrypt(text)
	if err != nil {
		return chat.Message{}, "", s.dependencyFailure("failed to encrypt message", err, zap.String("chat_id", chatID))
	}

	now := s.timestamp()
	id, err := s.store.AddMessage(ctx, chatID, chat.Message{
		SenderID:  senderID,
		Text:      ciphertext,
		Timestamp: now,
	})
	if err != nil {
		return chat.Message{}, "", s.dependencyFailure("failed to send message", err, zap.String("chat_id", chatID))
	}

	summary := chat.LastMessage{
		SenderID:  senderID,
		Text:      ciphertext,
		Timestamp: now,
		Status:    chat.StatusUnread,
	}
	if err := s.store.UpdateLastMessage(ctx, chatID, summary, now); err != nil {
		return chat.Message{}, "", s.dependencyFailure("failed to update chat summary", err,
			zap.String("chat_id", chatID), zap.String("message_id", id))
	}

	s.publish(ctx, events.Event{
		Type:            events.MessageSent,
		ChatID:          chatID,
		ParticipantUIDs: c.ParticipantUIDs,
		SenderID:        senderID,
		LastUpdated:     now,
	})

	return chat.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		Timestamp: now,
	}, c.Type, nil
}

// markLastMessageRead flips the chat's unread last message to read on behalf
// of reader. Senders cannot mark their own message read. Failures are logged
// and swallowed so they never fail the read that triggered them.
func (s *Service) markLastMessageRead(ctx context.Context, c chat.Chat, reader string) bool {
	last := c.LastMessage
	if last == nil || last.Status == chat.StatusRead {
		return false
	}
	if last.SenderID == "" || last.SenderID == reader {
		return false
	}

	if err := s.store.MarkLastMessageRead(ctx, c.ID, last.Timestamp); err != nil {
		s.logger.Warn("failed to update lastMessage status to read",
			zap.String("chat_id", c.ID),
			zap.String("reader", reader),
			zap.Error(err))
		return false
	}

	s.publish(ctx, events.Event{
		Type:            events.ChatRead,
		ChatID:          c.ID,
		ParticipantUIDs: c.ParticipantUIDs,
		SenderID:        last.SenderID,
		LastUpdated:     c.LastUpdated,
	})
	return true
}
