package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
	"gatepass/internal/config"
	"gatepass/internal/http-server/handlers/account"
	"gatepass/internal/http-server/handlers/activity"
	"gatepass/internal/http-server/handlers/errors"
	"gatepass/internal/http-server/handlers/ticket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"gatepass/internal/http-server/middleware/authenticate"
	"gatepass/internal/http-server/middleware/role"
	"gatepass/internal/http-server/middleware/timeout"
	"gatepass/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	account.Core
	ticket.Core
	activity.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(15))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/api/v1", func(rootApi chi.Router) {
		rootApi.Post("/auth/login", account.Login(log, handler))

		rootApi.Group(func(private chi.Router) {
			private.Use(authenticate.New(log, handler))

			private.Route("/auth", func(au chi.Router) {
				au.Get("/profile", account.Profile(log, handler))
				au.With(role.RequireAdmin).Post("/register", account.Register(log, handler))
				au.With(role.RequireAdmin).Get("/users", account.Users(log, handler))
				au.With(role.RequireAdmin).Delete("/users/{id}", account.Deactivate(log, handler))
			})

			private.Route("/tickets", func(tk chi.Router) {
				tk.With(role.RequireIssuer).Post("/assign", ticket.Assign(log, handler))
				tk.With(role.RequireIssuer).Post("/validate", ticket.Validate(log, handler))
				tk.With(role.RequireIssuer).Get("/stats", ticket.Stats(log, handler))
				tk.With(role.RequireAdmin).Post("/initialize", ticket.Initialize(log, handler))
				tk.With(role.RequireAdmin).Get("/", ticket.List(log, handler))
				tk.With(role.RequireAdmin).Get("/search", ticket.Search(log, handler))
			})

			private.With(role.RequireAdmin).Get("/activity/logs", activity.Logs(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
