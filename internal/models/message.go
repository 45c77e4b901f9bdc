package models

// Message is a chat message as dispatched to recipients. Messages are
// immutable once dispatched; there is no edit operation.
type Message struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	User     string `json:"user"`
	AuthorID string `json:"authorId"`
	// Room is empty for a global broadcast.
	Room      string `json:"room,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
	Timestamp string `json:"timestamp"`
}
