package lead

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/api/cont"
	"AgentDesk/internal/lib/api/response"
	"AgentDesk/internal/lib/sl"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// fullRunTimeout bounds a pipeline pass over every agent started from the API.
const fullRunTimeout = 15 * time.Minute

type runRequest struct {
	AgentID string `json:"agent_id"`
}

// Run starts a pipeline pass. With agent_id the pass is synchronous and the
// result is returned; without it (admins only) every agent is processed in
// the background.
func Run(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.lead")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("lead pipeline not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Lead pipeline not available"))
			return
		}
		operator, err := cont.GetUser(r.Context())
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Unauthorized"))
			return
		}

		var req runRequest
		if r.ContentLength != 0 {
			if err = render.DecodeJSON(r.Body, &req); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("Invalid request body"))
				return
			}
		}
		if req.AgentID == "" {
			req.AgentID = r.URL.Query().Get("agent_id")
		}

		if req.AgentID != "" {
			result, err := handler.RunAgentLeads(r.Context(), operator, req.AgentID)
			if err != nil {
				logger.Error("lead run", slog.String("agent_id", req.AgentID), sl.Err(err))
				render.Status(r, response.StatusCode(err))
				render.JSON(w, r, response.Error(err.Error()))
				return
			}
			logger.Info("lead run finished",
				slog.String("agent_id", result.AgentID),
				slog.Int("fetched", result.Fetched),
				slog.Int("synced", result.Synced),
				slog.Int("failed", result.Failed),
			)
			render.JSON(w, r, response.Ok(result))
			return
		}

		if !operator.IsAdmin() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error(entity.ErrForbidden.Error()))
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), fullRunTimeout)
			defer cancel()
			results, err := handler.RunLeads(ctx)
			if err != nil {
				logger.Warn("lead run", sl.Err(err))
				return
			}
			logger.Info("lead run finished", slog.Int("agents", len(results)))
		}()

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.Ok(nil))
	}
}

func Log(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.lead"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Lead pipeline not available"))
			return
		}
		operator, err := cont.GetUser(r.Context())
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Unauthorized"))
			return
		}

		agentID := r.URL.Query().Get("agent_id")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		logs, err := handler.ListLeadLogs(r.Context(), operator, agentID, limit)
		if err != nil {
			logger.Error("list lead log", slog.String("agent_id", agentID), sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		render.JSON(w, r, response.Ok(logs))
	}
}
