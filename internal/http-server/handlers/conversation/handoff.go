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

// Take pauses the automation of a conversation for a human operator.
func Take(log *slog.Logger, handler Core) http.HandlerFunc {
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

		var req entity.TakeRequest
		if err = render.Bind(r, &req); err != nil {
			logger.Debug("bad take request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger = logger.With(
			slog.String("agent_id", req.AgentID),
			slog.String("user_id", req.UserID),
			slog.String("taken_by", req.TakenBy),
		)

		lock, err := handler.TakeConversation(r.Context(), operator, &req)
		if err != nil {
			logger.Warn("take conversation", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		logger.Info("conversation taken")
		render.JSON(w, r, response.Ok(lock))
	}
}

// Release hands a conversation back to the automation.
func Release(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.conversation"),
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

		var req entity.ReleaseRequest
		if err = render.Bind(r, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		lock, err := handler.ReleaseConversation(r.Context(), operator, &req)
		if err != nil {
			logger.Warn("release conversation", slog.String("agent_id", req.AgentID), sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		logger.Info("conversation released",
			slog.String("agent_id", req.AgentID),
			slog.String("user_id", req.UserID),
		)
		render.JSON(w, r, response.Ok(lock))
	}
}

// Lock returns the handoff state of one conversation. A conversation that was
// never taken reports is_taken=false.
func Lock(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.conversation"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
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
		key := entity.ConversationKey{
			AgentID:       query.Get("agent_id"),
			UserID:        query.Get("user_id"),
			PhoneNumberID: query.Get("phone_number_id"),
		}
		if key.AgentID == "" || key.UserID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("agent_id and user_id are required"))
			return
		}

		lock, err := handler.GetHandoffLock(r.Context(), operator, key)
		if err != nil {
			logger.Error("get handoff lock", slog.String("agent_id", key.AgentID), sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		render.JSON(w, r, response.Ok(lock))
	}
}

// Taken lists the conversations of an agent currently held by operators.
func Taken(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.conversation"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
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

		agentID := r.URL.Query().Get("agent_id")
		if agentID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("agent_id is required"))
			return
		}

		locks, err := handler.ListTakenConversations(r.Context(), operator, agentID)
		if err != nil {
			logger.Error("list taken conversations", slog.String("agent_id", agentID), sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		render.JSON(w, r, response.Ok(locks))
	}
}
