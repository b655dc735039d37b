package entity

import (
	"AgentDesk/internal/lib/validate"
	"net/http"
	"time"
)

// ReadReceipt tracks what one operator has already seen in a conversation.
type ReadReceipt struct {
	ID                  int64      `json:"id"`
	AgentID             string     `json:"agent_id"`
	UserID              string     `json:"user_id"`
	PhoneNumberID       string     `json:"phone_number_id"`
	ReadBy              string     `json:"read_by"`
	LastReadDatetime    time.Time  `json:"last_read_datetime"`
	LastMessageDatetime *time.Time `json:"last_message_datetime"`
	UnreadCount         int        `json:"unread_count"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type MarkReadRequest struct {
	AgentID             string     `json:"agent_id" validate:"required"`
	UserID              string     `json:"user_id" validate:"required"`
	PhoneNumberID       string     `json:"phone_number_id"`
	LastMessageDatetime *time.Time `json:"last_message_datetime"`
	ReadBy              string     `json:"read_by" validate:"required"`
}

func (m *MarkReadRequest) Bind(_ *http.Request) error {
	return validate.Struct(m)
}

// ReceiptKey indexes receipts of one agent by conversation counterpart.
func ReceiptKey(userID, phoneNumberID string) string {
	return userID + "|" + phoneNumberID
}
