package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/events"
	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
)

// GetChat returns one chat or ErrChatNotFound.
func (s *Service) GetChat(ctx context.Context, chatID string) (chat.Chat, error) {
	c, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return chat.Chat{}, appErrors.ErrChatNotFound
	}
	if err != nil {
		return chat.Chat{}, s.dependencyFailure("failed to get chat", err, zap.String("chat_id", chatID))
	}
	return s.present(c), nil
}

// DeleteChat removes the chat and its whole message log in one atomic batch.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	c, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return appErrors.ErrChatNotFound
	}
	if err != nil {
		return s.dependencyFailure("failed to delete chat", err, zap.String("chat_id", chatID))
	}

	err = s.store.DeleteChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return appErrors.ErrChatNotFound
	}
	if err != nil {
		return s.dependencyFailure("failed to delete chat", err, zap.String("chat_id", chatID))
	}

	s.logger.Info("chat deleted", zap.String("chat_id", chatID))
	s.publish(ctx, events.Event{
		Type:            events.ChatDeleted,
		ChatID:          chatID,
		ParticipantUIDs: c.ParticipantUIDs,
		LastUpdated:     s.timestamp(),
	})
	return nil
}
