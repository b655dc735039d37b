package entity

import (
	"AgentDesk/internal/lib/validate"
	"net/http"
	"time"
)

type WhatsAppConfig struct {
	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"business_account_id"`
	AccessToken       string `json:"access_token,omitempty"`
}

type AdsConfig struct {
	FormID string `json:"form_id"`
}

// Agent is the upstream automated assistant. Name is the identifier its
// conversations carry in the document index.
type Agent struct {
	ID          string         `json:"id"`
	ClientID    string         `json:"client_id" validate:"required"`
	Name        string         `json:"name" validate:"required,max=120"`
	Description string         `json:"description" validate:"omitempty,max=2000"`
	WorkflowID  string         `json:"workflow_id"`
	WhatsApp    WhatsAppConfig `json:"whatsapp"`
	Ads         AdsConfig      `json:"ads"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (a *Agent) Bind(_ *http.Request) error {
	return validate.Struct(a)
}

// OutboundReady reports whether the agent can send WhatsApp messages.
func (a *Agent) OutboundReady() bool {
	if a == nil {
		return false
	}
	return a.WhatsApp.PhoneNumberID != "" && a.WhatsApp.AccessToken != ""
}

// Public drops credentials before the agent leaves the API.
func (a Agent) Public() Agent {
	if a.WhatsApp.AccessToken != "" {
		a.WhatsApp.AccessToken = "***"
	}
	return a
}
