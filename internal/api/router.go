package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"honeypot-lab/internal/api/handlers"
	apimiddleware "honeypot-lab/internal/api/middleware"
	"honeypot-lab/internal/config"
	"honeypot-lab/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	limiter  apimiddleware.RateLimitStore
	channels http.Handler
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. limiter and channels may be nil.
func NewRouter(cfg config.Config, h *handlers.Handlers, limiter apimiddleware.RateLimitStore, channels http.Handler, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		limiter:  limiter,
		channels: channels,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Rate limiting
	if r.config.RateLimit.Enabled && r.limiter != nil {
		router.Use(apimiddleware.RateLimiter(r.limiter, r.config.RateLimit, r.logger))
	}

	// Public routes
	router.Group(func(pub chi.Router) {
		pub.Get("/health", r.handlers.Health.Check)
		pub.Get("/ready", r.handlers.Health.Ready)
	})

	// Channel webhooks authenticate with their provider, not our API key
	if r.channels != nil {
		router.Handle("/twilio/*", r.channels)
		router.Handle("/meta/*", r.channels)
	}

	// WebSocket feed; no request timeout on a long-lived connection
	router.With(apimiddleware.APIKeyAuth(r.config.Auth.APIKeys)).
		Get("/ws/feed", r.handlers.Streaming.HandleWebSocket)

	// Authenticated request/response routes
	router.Group(func(auth chi.Router) {
		auth.Use(apimiddleware.APIKeyAuth(r.config.Auth.APIKeys))
		if r.config.Server.RequestTimeout > 0 {
			auth.Use(middleware.Timeout(r.config.Server.RequestTimeout))
		}

		auth.Post("/message", r.handlers.Message.Handle)

		auth.Route("/api/v1", func(api chi.Router) {
			api.Get("/sessions/{id}", r.handlers.Sessions.Get)
			api.Get("/sessions/{id}/reports", r.handlers.Sessions.ListReports)
			api.Get("/stats", r.handlers.Stats.Get)
			api.Get("/streaming/stats", r.handlers.Streaming.GetStats)
		})
	})

	// 404 handler
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})

	// 405 handler
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"method not allowed"}`))
	})

	return router
}
