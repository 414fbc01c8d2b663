package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"padron/internal/auth"
	"padron/internal/mailer"
	"padron/internal/ratelimiter"
	"padron/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         store.Storage
	logger        *zap.SugaredLogger
	mailer        mailer.Client
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr        string
	env         string
	db          dbConfig
	mail        mailConfig
	auth        authConfig
	seed        seedConfig
	rateLimiter ratelimiter.Config
}

type dbConfig struct {
	addr        string
	name        string
	maxPoolSize uint64
	maxIdleTime string
}

type authConfig struct {
	token tokenConfig
}

type tokenConfig struct {
	secret        string
	accessExp     time.Duration
	activationExp time.Duration
	iss           string
}

type mailConfig struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

type seedConfig struct {
	enabled       bool
	adminPassword string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Requests that outlive this deadline get cancelled through ctx.Done().
	r.Use(middleware.Timeout(60 * time.Second))

	// Unknown routes get the same structured error body as everything else.
	r.NotFound(app.pathNotFoundHandler)

	r.Get("/health", app.healthCheckHandler)
	r.Get("/debug/vars", expvar.Handler().ServeHTTP)

	// Public surface. Login and activation are the only routes reachable
	// without a token, so the rate limiter sits here.
	r.Route("/auth", func(r chi.Router) {
		r.Use(app.RateLimiterMiddleware)
		r.Post("/login", app.loginHandler)
		r.Post("/activate-account", app.activateAccountHandler)
		r.With(app.AuthTokenMiddleware, app.RequireRole(adminAuthority)).
			Post("/start-activate-account", app.startActivateAccountHandler)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(app.AuthTokenMiddleware)

		r.Route("/roles", func(r chi.Router) {
			r.Post("/", app.createRoleHandler)
			r.Post("/bulk", app.bulkCreateRolesHandler)
			r.Get("/", app.getRolesHandler)
			r.Get("/filter", app.searchRolesHandler)
			r.Get("/{id:[0-9]+}", app.getRoleHandler)
			r.Put("/{id:[0-9]+}", app.updateRoleHandler)
			r.Delete("/{id:[0-9]+}", app.deleteRoleHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", app.createUserHandler)
			r.Post("/bulk", app.bulkCreateUsersHandler)
			r.Get("/", app.getUsersHandler)
			r.Get("/filter", app.searchUsersHandler)
			r.Get("/{id:[0-9]+}", app.getUserHandler)
			r.Put("/{id:[0-9]+}", app.updateUserHandler)
			r.Delete("/{id:[0-9]+}", app.deleteUserHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
