package api

import (
	"AgentDesk/internal/config"
	"AgentDesk/internal/http-server/handlers/agent"
	"AgentDesk/internal/http-server/handlers/auth"
	"AgentDesk/internal/http-server/handlers/client"
	"AgentDesk/internal/http-server/handlers/conversation"
	"AgentDesk/internal/http-server/handlers/errors"
	"AgentDesk/internal/http-server/handlers/lead"
	"AgentDesk/internal/http-server/handlers/report"
	"AgentDesk/internal/http-server/handlers/whatsapp"
	"AgentDesk/internal/http-server/middleware/authenticate"
	"AgentDesk/internal/http-server/middleware/metrics"
	"AgentDesk/internal/http-server/middleware/timeout"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/ws"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	auth.Core
	conversation.Core
	whatsapp.Core
	client.Core
	agent.Core
	report.Core
	lead.Core
}

// NewRouter builds the HTTP surface. Without a hub /ws is not routed; a nil
// hook makes the webhook answer 503.
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler, hook whatsapp.Webhook, hub *ws.Hub) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(conf.Listen.AllowOrigins),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	router.Use(metrics.New())

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Handle("/metrics", promhttp.Handler())

	// websocket connections outlive the request timeout and authenticate by query token
	if hub != nil {
		router.Get("/ws", ws.ServeWs(hub, handler))
	}

	router.Group(func(public chi.Router) {
		public.Use(timeout.Timeout(conf.Listen.TimeoutSec))
		public.Use(authenticate.New(log, handler, true))

		public.Route("/webhook/whatsapp", func(r chi.Router) {
			r.Get("/", whatsapp.WebhookVerify(log, hook))
			r.Post("/", whatsapp.WebhookHandler(log, hook))
		})
		public.With(render.SetContentType(render.ContentTypeJSON)).
			Post("/api/v1/auth/login", auth.Login(log, handler))
	})

	router.Group(func(private chi.Router) {
		private.Use(timeout.Timeout(conf.Listen.TimeoutSec))
		private.Use(render.SetContentType(render.ContentTypeJSON))
		private.Use(authenticate.New(log, handler, false))

		private.Route("/api/v1", func(v1 chi.Router) {
			v1.Route("/auth", func(r chi.Router) {
				r.Post("/logout", auth.Logout(log, handler))
				r.Get("/me", auth.Me(log))
			})
			v1.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversation.List(log, handler))
				r.Get("/check-updates", conversation.CheckUpdates(log, handler))
				r.Post("/take", conversation.Take(log, handler))
				r.Post("/release", conversation.Release(log, handler))
				r.Get("/lock", conversation.Lock(log, handler))
				r.Get("/taken", conversation.Taken(log, handler))
				r.Post("/mark-read", conversation.MarkRead(log, handler))
			})
			v1.Route("/whatsapp", func(r chi.Router) {
				r.Post("/send", whatsapp.Send(log, handler))
			})
			v1.Route("/clients", func(r chi.Router) {
				r.Get("/", client.List(log, handler))
				r.Post("/", client.Create(log, handler))
				r.Get("/{id}", client.Get(log, handler))
				r.Put("/{id}", client.Update(log, handler))
				r.Delete("/{id}", client.Delete(log, handler))
			})
			v1.Route("/agents", func(r chi.Router) {
				r.Get("/", agent.List(log, handler))
				r.Post("/", agent.Create(log, handler))
				r.Get("/{id}", agent.Get(log, handler))
				r.Put("/{id}", agent.Update(log, handler))
				r.Delete("/{id}", agent.Delete(log, handler))
				r.Get("/{id}/executions", agent.Executions(log, handler))
				r.Get("/{id}/executions/{execution_id}", agent.Execution(log, handler))
			})
			v1.Route("/reports", func(r chi.Router) {
				r.Get("/", report.List(log, handler))
				r.Get("/{id}", report.Get(log, handler))
			})
			v1.Route("/leads", func(r chi.Router) {
				r.Post("/run", lead.Run(log, handler))
				r.Get("/log", lead.Log(log, handler))
			})
		})
	})

	return router
}

// New serves the API until ctx is cancelled.
func New(ctx context.Context, conf *config.Config, log *slog.Logger, handler Handler, hook whatsapp.Webhook, hub *ws.Hub) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:           NewRouter(conf, log, handler, hook, hub),
		ErrorLog:          httpLog,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.httpServer.Shutdown(shutdownCtx); err != nil {
			server.log.Error("api server shutdown", sl.Err(err))
		}
	}()

	server.log.Info("starting api server", slog.String("address", serverAddress))

	if err = server.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func allowedOrigins(value string) []string {
	if value == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(value, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
