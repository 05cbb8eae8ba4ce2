package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/events"
	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
)

// CreateOrGetChat returns the chat between the two participants, creating it
// when none exists. created is false when an existing chat was returned.
//
// The lookup and the insert are not atomic: without a distributed locker two
// concurrent calls for a new pair can both create a chat.
func (s *Service) CreateOrGetChat(ctx context.Context, participants []chat.Participant, chatType chat.Type) (chat.Chat, bool, error) {
	if len(participants) != 2 {
		return chat.Chat{}, false, appErrors.ErrParticipantsRequired
	}
	members := make([]chat.Participant, 2)
	for i, p := range participants {
		p.UID = strings.TrimSpace(p.UID)
		if p.UID == "" {
			return chat.Chat{}, false, appErrors.ErrParticipantUID
		}
		members[i] = p
	}
	if members[0].UID == members[1].UID {
		return chat.Chat{}, false, appErrors.ErrParticipantsDistinct
	}
	if chatType == "" {
		chatType = chat.TypePenpal
	}
	if !chatType.Known() {
		return chat.Chat{}, false, appErrors.ErrUnknownChatType
	}

	key := chat.NewPairKey(members[0].UID, members[1].UID)
	release, err := s.locker.Acquire(ctx, "chatpair:"+key.String())
	if err != nil {
		return chat.Chat{}, false, s.dependencyFailure("failed to create chat", err, zap.String("pair", key.String()))
	}
	defer release()

	existing, found, err := s.findByPair(ctx, key)
	if err != nil {
		return chat.Chat{}, false, s.dependencyFailure("failed to create chat", err, zap.String("pair", key.String()))
	}
	if found {
		return s.present(existing), false, nil
	}

	id, err := s.store.CreateChat(ctx, chat.Chat{
		Participants:    members,
		ParticipantUIDs: []string{members[0].UID, members[1].UID},
		Type:            chatType,
		LastUpdated:     s.timestamp(),
	})
	if err != nil {
		return chat.Chat{}, false, s.dependencyFailure("failed to create chat", err, zap.String("pair", key.String()))
	}

	// Re-read so the response reflects what the store persisted.
	created, err := s.store.GetChat(ctx, id)
	if err != nil {
		return chat.Chat{}, false, s.dependencyFailure("failed to create chat", err, zap.String("chat_id", id))
	}

	s.logger.Info("chat created", zap.String("chat_id", id), zap.String("type", string(chatType)))
	s.publish(ctx, events.Event{
		Type:            events.ChatCreated,
		ChatID:          created.ID,
		ParticipantUIDs: created.ParticipantUIDs,
		LastUpdated:     created.LastUpdated,
	})
	return s.present(created), true, nil
}

// findByPair scans the chats containing the smaller uid and keeps the one
// whose members form exactly the requested unordered pair. The store can
// only answer array-contains, not pair equality.
func (s *Service) findByPair(ctx context.Context, key chat.PairKey) (chat.Chat, bool, error) {
	candidates, err := s.store.FindChatsByMember(ctx, key[0])
	if err != nil {
		return chat.Chat{}, false, err
	}
	for _, c := range candidates {
		if got, ok := chat.PairKeyOf(c.ParticipantUIDs); ok && got == key {
			return c, true, nil
		}
	}
	return chat.Chat{}, false, nil
}

// present converts a stored chat into its API view with plaintext summary text.
func (s *Service) present(c chat.Chat) chat.Chat {
	if c.LastMessage != nil {
		last := *c.LastMessage
		last.Text = s.decryptText(c.ID, last.Text)
		c.LastMessage = &last
	}
	return c
}
