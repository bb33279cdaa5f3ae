// package server contains the HTTP gateway: routing, middleware, guards and handlers
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/services"
	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for self-routing HTTP handlers.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Chain wraps h so that mws run in the order given: the first middleware sees the request first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Deps are the collaborators the gateway routes requests to.
type Deps struct {
	Users    models.CredentialStore
	Hasher   PasswordHasher
	Sessions SessionIssuer
	Broker   DelegationBroker
	Spotify  services.Service
	DB       Pinger
	Logger   *log.Logger
	Registry *prometheus.Registry // nil creates a private registry
}

// Server is the HTTP authentication gateway.
type Server struct {
	http   *http.Server
	router *BasicRouter
	logger *log.Logger
}

// New builds the gateway and registers every route.
func New(cfg shared.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	router := NewBasicRouter()
	router.Use(
		Recover(logger),
		Logging(logger),
		Instrument(NewMetrics(registry)),
		CORS(cfg.AllowedOrigins),
	)

	limited := RateLimit(NewRateLimiter(cfg.RateLimit, cfg.RateBurst))
	session := RequireSession(deps.Sessions, deps.Users, logger)
	delegated := RequireDelegation(deps.Broker, logger)

	auth := NewAuthHandler(deps.Users, deps.Hasher, deps.Sessions, logger)
	oauth := NewDelegationHandler(deps.Broker, logger)
	resource := NewResourceHandler(deps.Spotify, logger)

	register := Chain(http.HandlerFunc(auth.Register), limited)
	login := Chain(http.HandlerFunc(auth.Login), limited)
	link := Chain(http.HandlerFunc(oauth.Link), session)
	callback := Chain(http.HandlerFunc(oauth.Callback), session)
	status := Chain(http.HandlerFunc(oauth.Status), session)
	wrapped := Chain(resource, session, delegated)

	router.Handle(http.MethodPost, "/register", register)
	router.Handle(http.MethodPost, "/login", login)
	router.Handle(http.MethodGet, "/delegation/link", link)
	router.Handle(http.MethodPost, "/delegation/callback", callback)
	router.Handle(http.MethodGet, "/delegation/status", status)
	router.Handle(http.MethodGet, "/protected-resource", wrapped)

	router.Handle(http.MethodPost, "/api/register", register)
	router.Handle(http.MethodPost, "/api/login", login)
	router.Handle(http.MethodGet, "/api/spotify/link", link)
	router.Handle(http.MethodPost, "/api/callback", callback)
	router.Handle(http.MethodGet, "/api/get-wrapped", wrapped)

	router.Handler(NewHealthHandler(deps.DB))
	router.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		router: router,
		logger: logger,
	}
}

// Handler returns the root handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Infof("starting gateway at %v", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverErrors
}
