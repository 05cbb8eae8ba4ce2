package mongo

import (
	"time"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
)

type participantDoc struct {
	UID         string `bson:"uid"`
	DisplayName string `bson:"displayName,omitempty"`
	PhotoURL    string `bson:"photoURL,omitempty"`
}

type lastMessageDoc struct {
	SenderID  string    `bson:"senderId"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
	Status    string    `bson:"status"`
}

type chatDoc struct {
	ID              string           `bson:"_id"`
	Participants    []participantDoc `bson:"participants"`
	ParticipantUIDs []string         `bson:"participantUids"`
	LastUpdated     time.Time        `bson:"lastUpdated"`
	LastMessage     *lastMessageDoc  `bson:"lastMessage"`
	Type            string           `bson:"type"`
}

type messageDoc struct {
	ID        string    `bson:"_id"`
	ChatID    string    `bson:"chatId"`
	SenderID  string    `bson:"senderId"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
}

func toChatDoc(c chat.Chat) chatDoc {
	doc := chatDoc{
		ID:              c.ID,
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

func (d chatDoc) toChat() chat.Chat {
	c := chat.Chat{
		ID:              d.ID,
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

func (d messageDoc) toMessage() chat.Message {
	return chat.Message{
		ID:        d.ID,
		ChatID:    d.ChatID,
		SenderID:  d.SenderID,
		Text:      d.Text,
		Timestamp: d.Timestamp.UTC(),
	}
}
