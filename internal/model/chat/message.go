package chat

import "time"

// Message is one entry of a chat's message log.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId,omitempty"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MessagePage is one page of messages ordered oldest first.
type MessagePage struct {
	Messages      []Message `json:"messages"`
	NextPageToken *string   `json:"nextPageToken"`
}

// ChatPage is one page of chats ordered by recency.
type ChatPage struct {
	Chats         []Chat  `json:"chats"`
	NextPageToken *string `json:"nextPageToken"`
}
