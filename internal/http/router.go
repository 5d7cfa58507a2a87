package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/growth-api/internal/auth"
	"github.com/redmonkez12/growth-api/internal/config"
	"github.com/redmonkez12/growth-api/internal/httputil"
	"github.com/redmonkez12/growth-api/internal/logging"
	"github.com/redmonkez12/growth-api/internal/session"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, authHandler *auth.Handler, sessions *session.Manager, aiProxy http.Handler, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders(!cfg.Server.IsDevelopment()))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	// The AI service is public and streams its own encoding
	r.Handle(AIProxyPrefix, aiProxy)
	r.Handle(AIProxyPrefix+"/*", aiProxy)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Use(sessions.Middleware)

		r.Post("/api/register", authHandler.Register)
		r.Post("/api/login", authHandler.Login)
		r.Post("/api/logout", authHandler.Logout)
		r.Post("/api/forgot-password", authHandler.ForgotPassword)
		r.Post("/api/reset-password", authHandler.ResetPassword)
		r.Get("/api/verify-email", authHandler.VerifyEmail)
		r.Post("/api/resend-verification", authHandler.ResendVerification)

		r.Get("/auth/google", authHandler.GoogleLogin)
		r.Get("/auth/google/callback", authHandler.GoogleCallback)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(session.RequireAuth)
			r.Get("/api/current_user", authHandler.CurrentUser)
			r.Put("/api/profile", authHandler.UpdateProfile)
		})
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
