package entity

import (
	"AgentDesk/internal/lib/validate"
	"net/http"
)

const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeTemplate = "template"
)

// SendRequest is one outbound message through the WhatsApp bridge.
type SendRequest struct {
	AgentID          string `json:"agent_id" validate:"required"`
	PhoneNumber      string `json:"phone_number" validate:"required"`
	MessageType      string `json:"message_type" validate:"required,oneof=text image template"`
	Message          string `json:"message" validate:"required_if=MessageType text"`
	UserID           string `json:"user_id,omitempty"`
	PhoneNumberID    string `json:"phone_number_id,omitempty"`
	ImageURL         string `json:"image_url,omitempty" validate:"required_if=MessageType image"`
	Caption          string `json:"caption,omitempty"`
	TemplateName     string `json:"template_name,omitempty" validate:"required_if=MessageType template"`
	TemplateLanguage string `json:"template_language,omitempty"`
	SentBy           string `json:"sent_by,omitempty"`
}

func (s *SendRequest) Bind(_ *http.Request) error {
	return validate.Struct(s)
}

type SendResult struct {
	MessageID string `json:"message_id"`
}
