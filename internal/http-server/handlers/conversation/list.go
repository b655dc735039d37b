package conversation

import (
	"AgentDesk/internal/lib/api/cont"
	"AgentDesk/internal/lib/api/response"
	"AgentDesk/internal/lib/sl"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// List returns the conversations of one agent grouped by counterpart.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.conversation")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("conversation service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Conversation service not available"))
			return
		}

		operator, err := cont.GetUser(r.Context())
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Unauthorized"))
			return
		}

		query := r.URL.Query()
		agentName := query.Get("agent_name")
		if agentName == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("agent_name is required"))
			return
		}
		from, err := parseTime(query.Get("from"), false)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		to, err := parseTime(query.Get("to"), true)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		conversations, err := handler.ListConversations(r.Context(), operator, agentName, from, to)
		if err != nil {
			logger.Error("list conversations", slog.String("agent_name", agentName), sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		logger.Debug("conversations listed",
			slog.String("agent_name", agentName),
			slog.Int("count", len(conversations)),
		)
		render.JSON(w, r, response.Ok(conversations))
	}
}
