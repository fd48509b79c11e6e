package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stonenotes/stonenotes/internal/auth"
	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/internal/service"
	"github.com/stonenotes/stonenotes/pkg/health"
	"github.com/stonenotes/stonenotes/pkg/middleware"
)

// ServiceName labels metrics and traces emitted by the router.
const ServiceName = "notes"

// RouterConfig holds everything the router mounts.
type RouterConfig struct {
	Authenticator     *auth.Authenticator
	Users             *service.UserService
	Auth              *service.AuthService
	Notes             *service.NoteService
	Health            *health.Handler
	Logger            *slog.Logger
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all notes service routes registered.
// Every request passes through the authenticator; routes that need an
// identity are additionally gated by RequireAuth.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.Metrics(ServiceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(cfg.Authenticator.Middleware)

	// Health check endpoints
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, cfg.Logger)
	}

	requireAuth := middleware.RequireAuth(auth.Identify)

	authHandler := NewAuthHandler(cfg.Users, cfg.Auth, cfg.Logger)
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.With(requireAuth).Post("/logout-all", authHandler.LogoutAll)
	})

	userHandler := NewUserHandler(cfg.Users, cfg.Logger)
	r.Route("/api/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.NoStore)

		r.Get("/me", userHandler.GetProfile)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireRole(auth.Authorities, domain.RoleAdmin))
		r.Use(middleware.NoStore)

		r.Post("/users/{id}/logout-all", authHandler.RevokeUserSessions)
	})

	noteHandler := NewNoteHandler(cfg.Notes, cfg.Logger)
	r.Route("/api/notes", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(ContentTypeJSON)

		r.Get("/", noteHandler.List)
		r.Post("/", noteHandler.Create)
		r.Get("/{id}", noteHandler.Get)
		r.Put("/{id}", noteHandler.Update)
		r.Delete("/{id}", noteHandler.Delete)
	})

	return r
}
