package whatsapp

import (
	"log/slog"
	"net/http"

	"AgentDesk/internal/lib/sl"
)

// WebhookVerify answers the platform's subscription challenge.
func WebhookVerify(log *slog.Logger, hook Webhook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.With(sl.Module("whatsapp.webhook")).Debug("webhook verification request",
			slog.String("mode", r.URL.Query().Get("hub.mode")),
		)
		if hook == nil {
			http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
			return
		}
		hook.HandleWebhookVerification(w, r)
	}
}

// WebhookHandler accepts inbound messages and delivery statuses.
func WebhookHandler(log *slog.Logger, hook Webhook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.With(sl.Module("whatsapp.webhook")).Debug("webhook event received",
			slog.Int64("size", r.ContentLength),
		)
		if hook == nil {
			http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
			return
		}
		hook.HandleWebhook(w, r)
	}
}
