package firestore

import (
	"time"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
)

type participantDoc struct {
	UID         string `firestore:"uid"`
	DisplayName string `firestore:"displayName,omitempty"`
	PhotoURL    string `firestore:"photoURL,omitempty"`
}

type lastMessageDoc struct {
	SenderID  string    `firestore:"senderId"`
	Text      string    `firestore:"text"`
	Timestamp time.Time `firestore:"timestamp"`
	Status    string    `firestore:"status"`
}

type chatDoc struct {
	Participants    []participantDoc `firestore:"participants"`
	ParticipantUIDs []string         `firestore:"participantUids"`
	LastUpdated     time.Time        `firestore:"lastUpdated"`
	LastMessage     *lastMessageDoc  `firestore:"lastMessage"`
	Type            string           `firestore:"type"`
}

type messageDoc struct {
	SenderID  string    `firestore:"senderId"`
	Text      string    `firestore:"text"`
	Timestamp time.Time `firestore:"timestamp"`
}

func toChatDoc(c chat.Chat) chatDoc {
	doc := chatDoc{
		ParticipantUIDs: append([]string(nil), c.ParticipantUIDs...),
		LastUpdated:     c.LastUpdated,
		Type:            string(c.Type),
	}
	for _, p := range c.Participants {
		doc.Participants = append(doc.Participants, participantDoc(p))
	}
	if c.LastMessage != nil {
		last := toLastMessageDoc(*c.LastMessage)
		doc.LastMessage = &last
	}
	return doc
}

func toLastMessageDoc(last chat.LastMessage) lastMessageDoc {
	return lastMessageDoc{
		SenderID:  last.SenderID,
		Text:      last.Text,
		Timestamp: last.Timestamp,
		Status:    string(last.Status),
	}
}

func (d chatDoc) toChat(id string) chat.Chat {
	c := chat.Chat{
		ID:              id,
		ParticipantUIDs: d.ParticipantUIDs,
		Type:            chat.Type(d.Type),
		LastUpdated:     d.LastUpdated.UTC(),
	}
	for _, p := range d.Participants {
		c.Participants = append(c.Participants, chat.Participant(p))
	}
	if d.LastMessage != nil {
		c.LastMessage = &chat.LastMessage{
			SenderID:  d.LastMessage.SenderID,
			Text:      d.LastMessage.Text,
			Timestamp: d.LastMessage.Timestamp.UTC(),
			Status:    chat.Status(d.LastMessage.Status),
		}
	}
	return c
}

func (d messageDoc) toMessage(id, chatID string) chat.Message {
	return chat.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  d.SenderID,
		Text:      d.Text,
		Timestamp: d.Timestamp.UTC(),
	}
}
