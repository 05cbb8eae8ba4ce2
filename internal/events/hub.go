package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 32

type subscriber struct {
	uid string
	ch  chan Event
}

// Hub delivers events to in-process subscribers registered per uid. A slow
// subscriber loses events rather than stalling publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers uid and returns its event stream. cancel unregisters
// and closes the stream; it is safe to call more than once.
func (h *Hub) Subscribe(uid string) (<-chan Event, func()) {
	sub := &subscriber{uid: uid, ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish hands evt to every subscriber that is a participant of the chat.
func (h *Hub) Publish(_ context.Context, evt Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !contains(evt.ParticipantUIDs, sub.uid) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("uid", sub.uid),
				zap.String("chat_id", evt.ChatID),
				zap.String("type", string(evt.Type)))
		}
	}
	return nil
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
