package domain

import "time"

type MessageID string

// Message is the persisted chat record as returned by the store.
// The relay core never stores these; it only fans out live copies.
type Message struct {
	ID         MessageID `json:"id"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
