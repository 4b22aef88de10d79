/**
 * @description
 * This file sets up the HTTP router for the dashboard BFF using the go-chi/chi router.
 * It defines the API routes, applies middleware for logging, metrics, CORS and
 * session checks, and maps the routes to their corresponding handler functions.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/joelwasike/globpay-crypto-dash/internal/logging"
	"github.com/joelwasike/globpay-crypto-dash/internal/metrics"
	"github.com/joelwasike/globpay-crypto-dash/internal/navigation"
)

// RouterConfig holds the router's infrastructure dependencies.
type RouterConfig struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// NewRouter creates a new Chi router and registers the dashboard routes.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	// Setup middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Dashboard is healthy"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
	})

	// Views that require a logged-in merchant
	r.Route("/api/views", func(r chi.Router) {
		r.Use(RequireSession(h.sessions))

		r.Get("/dashboard", h.handleDashboard)
		r.Get("/transactions", h.handleTransactions)
		r.Get("/deposits", h.handleDeposits)
		r.Get("/withdrawals", h.handleWithdrawals)
		r.Post("/withdrawals", h.handleWithdraw)
		r.Get("/analytics", h.handleAnalytics)
		r.Get("/profile", h.handleGetProfile)
		r.Put("/profile", h.handleUpdateProfile)
		r.Put("/profile/password", h.handleChangePassword)
		r.Post("/profile/api-key", h.handleRegenerateAPIKey)
		r.Get("/merchants", h.handleMerchants)
		r.Post("/merchants", h.handleCreateMerchant)
	})

	return r
}

// RequireSession answers 401 with a redirect to the login screen when nobody is logged in.
func RequireSession(sessions SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := sessions.Current(); !ok {
				respondWithJSON(w, http.StatusUnauthorized, errorResponse{
					Error:    "Not authenticated",
					Redirect: navigation.LoginPath,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
