package auth

import (
	"AgentDesk/entity"
	"AgentDesk/internal/http-server/middleware/authenticate"
	"AgentDesk/internal/lib/api/cont"
	"AgentDesk/internal/lib/api/response"
	"AgentDesk/internal/lib/sl"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.auth")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("auth service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Auth service not available"))
			return
		}

		var req entity.LoginRequest
		if err := render.Bind(r, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger = logger.With(slog.String("username", req.Username))

		session, err := handler.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			logger.Warn("login failed", sl.Err(err))
			status := response.StatusCode(err)
			msg := err.Error()
			if errors.Is(err, entity.ErrUnauthorized) {
				msg = "Invalid username or password"
			}
			render.Status(r, status)
			render.JSON(w, r, response.Error(msg))
			return
		}

		logger.Info("operator logged in", slog.String("role", session.Operator.Role))
		render.JSON(w, r, response.Ok(session))
	}
}

func Logout(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.auth"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Auth service not available"))
			return
		}

		token := authenticate.BearerToken(r)
		if err := handler.Logout(r.Context(), token); err != nil {
			logger.Error("logout", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}

// Me returns the operator bound to the session.
func Me(_ *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := cont.GetUser(r.Context())
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Unauthorized"))
			return
		}
		render.JSON(w, r, response.Ok(operator))
	}
}
