package conversation

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/api/cont"
	"AgentDesk/internal/lib/api/response"
	"AgentDesk/internal/lib/sl"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// CheckUpdates answers the polling round; the reply is flat, not wrapped in data.
func CheckUpdates(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.conversation"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		fail := func(status int, msg string) {
			render.Status(r, status)
			render.JSON(w, r, entity.UpdateSet{Ok: false, Error: msg})
		}

		if handler == nil {
			fail(http.StatusServiceUnavailable, "Conversation service not available")
			return
		}
		operator, err := cont.GetUser(r.Context())
		if err != nil {
			fail(http.StatusUnauthorized, "Unauthorized")
			return
		}

		query := r.URL.Query()
		agentName := query.Get("agent_name")
		if agentName == "" {
			fail(http.StatusBadRequest, "agent_name is required")
			return
		}
		since, err := parseTime(query.Get("lastCheckTimestamp"), false)
		if err != nil {
			fail(http.StatusBadRequest, err.Error())
			return
		}

		updates, err := handler.CheckUpdates(r.Context(), operator, agentName, since)
		if err != nil {
			logger.Error("check updates", slog.String("agent_name", agentName), sl.Err(err))
			fail(response.StatusCode(err), err.Error())
			return
		}

		if len(updates.UpdatedConversations) > 0 {
			logger.Debug("conversations updated",
				slog.String("agent_name", agentName),
				slog.Int("count", len(updates.UpdatedConversations)),
			)
		}
		render.JSON(w, r, updates)
	}
}
