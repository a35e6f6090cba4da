package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/go-auth-sessions/internal/api"
	"github.com/FACorreiaa/go-auth-sessions/internal/api/auth"
	"github.com/FACorreiaa/go-auth-sessions/internal/api/user"
)

// Config contains dependencies needed for route assembly. Server-wide
// middleware (request ID, logging, recoverer) is applied in main before
// this router is mounted.
type Config struct {
	AuthHandler            *auth.HandlerImpl
	UserHandler            *user.HandlerImpl
	AuthenticateMiddleware func(http.Handler) http.Handler
	RateLimitMiddleware    func(http.Handler) http.Handler
	Pool                   *pgxpool.Pool
}

// SetupRouter initializes and configures the main application router.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Pool != nil {
			if err := cfg.Pool.Ping(r.Context()); err != nil {
				api.ErrorResponseWithCode(w, r, http.StatusServiceUnavailable,
					"DEPENDENCY_UNAVAILABLE", "database unreachable")
				return
			}
		}
		api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes, rate limited per client.
		r.Group(func(r chi.Router) {
			if cfg.RateLimitMiddleware != nil {
				r.Use(cfg.RateLimitMiddleware)
			}
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.RefreshSession)
			r.Post("/auth/logout", cfg.AuthHandler.Logout)
		})

		// Routes requiring a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Post("/auth/logout-all", cfg.AuthHandler.LogoutAll)
			r.Get("/users/me", cfg.UserHandler.GetProfile)
			r.Put("/users/me", cfg.UserHandler.UpdateProfile)
		})
	})

	return r
}
