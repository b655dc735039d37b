package whatsapp

import (
	"AgentDesk/entity"
	"context"
	"net/http"
)

type Core interface {
	SendWhatsApp(ctx context.Context, op *entity.Operator, req *entity.SendRequest) (*entity.SendResult, error)
}

// Webhook is the inbound side of the WhatsApp bridge.
type Webhook interface {
	HandleWebhookVerification(w http.ResponseWriter, r *http.Request)
	HandleWebhook(w http.ResponseWriter, r *http.Request)
}
