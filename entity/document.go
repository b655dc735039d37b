package entity

import "time"

// Legacy text fields of conversation-store documents.
const (
	FieldHumanText = "message-Human"
	FieldAIText    = "message-AI"
	FieldText      = "message"
)

// Document is the canonical shape of one conversation-store row after all
// legacy field-name variants have been folded in.
type Document struct {
	ID            string
	AgentName     string
	UserID        string
	PhoneNumberID string
	SessionID     string
	HumanText     string
	AIText        string
	Text          string
	Type          string
	Image         string
	Sender        string
	Datetime      time.Time
}

// AnyText returns the populated text, human first.
func (d Document) AnyText() string {
	switch {
	case d.HumanText != "":
		return d.HumanText
	case d.AIText != "":
		return d.AIText
	default:
		return d.Text
	}
}

// StoredDocument is what this service writes into the conversation store.
// Field names follow the legacy layout so grouping reads both alike.
type StoredDocument struct {
	AgentName     string    `bson:"agent_name" json:"agent_name"`
	UserID        string    `bson:"user_id" json:"user_id"`
	PhoneNumberID string    `bson:"phone_number_id,omitempty" json:"phone_number_id,omitempty"`
	SessionID     string    `bson:"session_id,omitempty" json:"session_id,omitempty"`
	HumanText     string    `bson:"message-Human,omitempty" json:"message-Human,omitempty"`
	AIText        string    `bson:"message-AI,omitempty" json:"message-AI,omitempty"`
	Type          string    `bson:"type" json:"type"`
	Sender        string    `bson:"sender,omitempty" json:"sender,omitempty"`
	MessageID     string    `bson:"message_id,omitempty" json:"message_id,omitempty"`
	Image         string    `bson:"image,omitempty" json:"image,omitempty"`
	Datetime      string    `bson:"datetime" json:"datetime"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
