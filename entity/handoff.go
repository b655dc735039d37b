package entity

import (
	"AgentDesk/internal/lib/validate"
	"net/http"
	"time"
)

// ConversationKey addresses one (agent, user, phone) triple. An empty phone
// id is a valid value, not a wildcard.
type ConversationKey struct {
	AgentID       string `json:"agent_id" validate:"required"`
	UserID        string `json:"user_id" validate:"required"`
	PhoneNumberID string `json:"phone_number_id"`
}

// HandoffLock records whether a human operator has paused the automation.
type HandoffLock struct {
	ConversationKey
	IsTaken bool       `json:"is_taken"`
	TakenBy *string    `json:"taken_by"`
	TakenAt *time.Time `json:"taken_at"`
}

type TakeRequest struct {
	ConversationKey
	TakenBy string `json:"taken_by" validate:"required"`
}

func (t *TakeRequest) Bind(_ *http.Request) error {
	return validate.Struct(t)
}

type ReleaseRequest struct {
	ConversationKey
}

func (r *ReleaseRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}
