package agent

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/api/cont"
	"AgentDesk/internal/lib/api/response"
	"AgentDesk/internal/lib/sl"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func prepare(log *slog.Logger, handler Core, w http.ResponseWriter, r *http.Request) (*slog.Logger, *entity.Operator, bool) {
	logger := log.With(
		sl.Module("http.handlers.agent"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	if handler == nil {
		logger.Error("agent service not available")
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("Agent service not available"))
		return nil, nil, false
	}
	operator, err := cont.GetUser(r.Context())
	if err != nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("Unauthorized"))
		return nil, nil, false
	}
	return logger.With(slog.String("user", operator.Username)), operator, true
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, response.StatusCode(err))
	render.JSON(w, r, response.Error(err.Error()))
}

// decode reads an agent body; operators may omit client_id, it defaults
// to their own tenant.
func decode(r *http.Request, operator *entity.Operator) (*entity.Agent, error) {
	var agent entity.Agent
	if err := render.DecodeJSON(r.Body, &agent); err != nil {
		return nil, err
	}
	if agent.ClientID == "" && !operator.IsAdmin() {
		agent.ClientID = operator.ClientID
	}
	if err := agent.Bind(r); err != nil {
		return nil, err
	}
	return &agent, nil
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		agents, err := handler.ListAgents(r.Context(), operator, r.URL.Query().Get("client_id"))
		if err != nil {
			logger.Error("list agents", sl.Err(err))
			fail(w, r, err)
			return
		}
		logger.Debug("agents listed", slog.Int("count", len(agents)))
		render.JSON(w, r, response.Ok(agents))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		agent, err := handler.GetAgent(r.Context(), operator, id)
		if err != nil {
			logger.Debug("get agent", slog.String("agent_id", id), sl.Err(err))
			fail(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(agent))
	}
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		agent, err := decode(r, operator)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		created, err := handler.CreateAgent(r.Context(), operator, agent)
		if err != nil {
			logger.Error("create agent", slog.String("name", agent.Name), sl.Err(err))
			fail(w, r, err)
			return
		}
		logger.Info("agent created",
			slog.String("agent_id", created.ID),
			slog.String("name", created.Name),
		)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(created))
	}
}

func Update(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		agent, err := decode(r, operator)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		updated, err := handler.UpdateAgent(r.Context(), operator, id, agent)
		if err != nil {
			logger.Error("update agent", slog.String("agent_id", id), sl.Err(err))
			fail(w, r, err)
			return
		}
		logger.Info("agent updated", slog.String("agent_id", id))
		render.JSON(w, r, response.Ok(updated))
	}
}

func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if err := handler.DeleteAgent(r.Context(), operator, id); err != nil {
			logger.Error("delete agent", slog.String("agent_id", id), sl.Err(err))
			fail(w, r, err)
			return
		}
		logger.Info("agent deleted", slog.String("agent_id", id))
		render.JSON(w, r, response.Ok(nil))
	}
}
