package chat

import (
	"sort"
	"time"
)

// Type decides the write policy of a chat. It never changes after creation.
type Type string

const (
	TypePenpal  Type = "penpal"
	TypeOnetime Type = "onetime"
)

// Known reports whether t can be requested when creating a chat.
func (t Type) Known() bool {
	return t == TypePenpal || t == TypeOnetime
}

// Status is the read flag carried by a chat's last message summary.
type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

// Participant describes one side of a two-party chat.
type Participant struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// LastMessage is the denormalized summary of the newest message in a chat.
// Text holds ciphertext inside the store and plaintext in API views.
type LastMessage struct {
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// Chat is a conversation between exactly two participants.
type Chat struct {
	ID              string        `json:"chatId"`
	Participants    []Participant `json:"participants"`
	ParticipantUIDs []string      `json:"participantUids"`
	Type            Type          `json:"type"`
	LastUpdated     time.Time     `json:"lastUpdated"`
	LastMessage     *LastMessage  `json:"lastMessage"`
}

// HasParticipant reports whether uid is one of the chat members.
func (c Chat) HasParticipant(uid string) bool {
	for _, member := range c.ParticipantUIDs {
		if member == uid {
			return true
		}
	}
	return false
}

// PairKey is the unordered pair identifying a two-party chat.
type PairKey [2]string

// NewPairKey orders the two uids so that (a, b) and (b, a) produce the same key.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{a, b}
}

// String renders the key for logs and lock names.
func (k PairKey) String() string {
	return k[0] + ":" + k[1]
}

// PairKeyOf returns the pair key of a chat and whether it has exactly two members.
func PairKeyOf(uids []string) (PairKey, bool) {
	if len(uids) != 2 {
		return PairKey{}, false
	}
	sorted := append([]string(nil), uids...)
	sort.Strings(sorted)
	return PairKey{sorted[0], sorted[1]}, true
}
