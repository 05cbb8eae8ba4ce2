// Package events publishes content-free notifications about chat mutations.
// Events never carry message text, so subscribers must refetch through the
// normal read path, which applies the visibility embargo.
package events

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	ChatCreated Type = "chat.created"
	MessageSent Type = "message.sent"
	ChatRead    Type = "chat.read"
	ChatDeleted Type = "chat.deleted"
)

// Event describes one mutation of a chat.
type Event struct {
	Type            Type      `json:"type"`
	ChatID          string    `json:"chatId"`
	ParticipantUIDs []string  `json:"participantUids"`
	SenderID        string    `json:"senderId,omitempty"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// Publisher delivers events. Implementations must not block for long; the
// chat services call Publish on the request path and ignore its error
// beyond logging.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// Multi fans one event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
