package client

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

const module = "http.handlers.client"

// prepare resolves the request logger and operator; ok is false when the
// reply was already written.
func prepare(log *slog.Logger, handler Core, w http.ResponseWriter, r *http.Request) (*slog.Logger, *entity.Operator, bool) {
	logger := log.With(
		sl.Module(module),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	if handler == nil {
		logger.Error("client service not available")
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("Client service not available"))
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

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		clients, err := handler.ListClients(r.Context(), operator)
		if err != nil {
			logger.Error("list clients", sl.Err(err))
			fail(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(clients))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		client, err := handler.GetClient(r.Context(), operator, id)
		if err != nil {
			logger.Debug("get client", slog.String("client_id", id), sl.Err(err))
			fail(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(client))
	}
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, operator, ok := prepare(log, handler, w, r)
		if !ok {
			return
		}
		var client entity.Client
		if err := render.Bind(r, &client); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		created, err := handler.CreateClient(r.Context(), operator, &client)
		if err != nil {
			logger.Error("create client", sl.Err(err))
			fail(w, r, err)
			return
		}
		logger.Info("client created", slog.String("client_id", created.ID))
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
		var client entity.Client
		if err := render.Bind(r, &client); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		client.ID = chi.URLParam(r, "id")
		updated, err := handler.UpdateClient(r.Context(), operator, &client)
		if err != nil {
			logger.Error("update client", slog.String("client_id", client.ID), sl.Err(err))
			fail(w, r, err)
			return
		}
		logger.Info("client updated", slog.String("client_id", updated.ID))
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
		if err := handler.DeleteClient(r.Context(), operator, id); err != nil {
			logger.Error("delete client", slog.String("client_id", id), sl.Err(err))
			fail(w, r, err)
			return
		}
		logger.Info("client deleted", slog.String("client_id", id))
		render.JSON(w, r, response.Ok(nil))
	}
}
