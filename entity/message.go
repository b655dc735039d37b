package entity

import "time"

const (
	DirectionUser  = "user"
	DirectionAgent = "agent"
)

// MessageStatus is the delivery state of one message. Locally sent
// messages walk sending -> sent | error; fetched ones arrive as sent.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusError     MessageStatus = "error"
)

type Message struct {
	ID        string        `json:"id"`
	Direction string        `json:"type"`
	Text      string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Image     string        `json:"image,omitempty"`
	Status    MessageStatus `json:"status"`
}
