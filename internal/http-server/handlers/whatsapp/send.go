package whatsapp

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/api/cont"
	"AgentDesk/internal/lib/api/response"
	"AgentDesk/internal/lib/sl"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Send delivers an operator message through the agent's WhatsApp number.
func Send(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.whatsapp")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("whatsapp service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("WhatsApp service not available"))
			return
		}
		operator, err := cont.GetUser(r.Context())
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Unauthorized"))
			return
		}

		var req entity.SendRequest
		if err = render.Bind(r, &req); err != nil {
			logger.Debug("bad send request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger = logger.With(
			slog.String("agent_id", req.AgentID),
			slog.String("message_type", req.MessageType),
			sl.Secret("phone_number", req.PhoneNumber),
		)

		result, err := handler.SendWhatsApp(r.Context(), operator, &req)
		if err != nil {
			logger.Error("send whatsapp message", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to send message: %v", err)))
			return
		}

		logger.Info("whatsapp message sent", slog.String("message_id", result.MessageID))
		render.JSON(w, r, response.Ok(result))
	}
}
