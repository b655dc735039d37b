package agent

import (
	"AgentDesk/internal/lib/api/response"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/service/workflow"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Executions lists runs of the agent's workflow. Query: status, limit,
// cursor, include_data.
func Executions(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		query := r.URL.Query()

		opts := workflow.ListOptions{
			Status: query.Get("status"),
			Cursor: query.Get("cursor"),
		}
		if v := query.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("limit must be a positive number"))
				return
			}
			opts.Limit = limit
		}
		if v := query.Get("include_data"); v != "" {
			opts.IncludeData, _ = strconv.ParseBool(v)
		}

		page, err := handler.ListAgentExecutions(r.Context(), operator, id, opts)
		if err != nil {
			logger.Error("list executions", slog.String("agent_id", id), sl.Err(err))
			fail(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(page))
	}
}

func Execution(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		executionID := chi.URLParam(r, "execution_id")

		execution, err := handler.GetAgentExecution(r.Context(), operator, id, executionID)
		if err != nil {
			logger.Error("get execution",
				slog.String("agent_id", id),
				slog.String("execution_id", executionID),
				sl.Err(err),
			)
			fail(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(execution))
	}
}
