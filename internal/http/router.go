package http

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/redmonkez12/contacts-api/internal/account"
	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/config"
	"github.com/redmonkez12/contacts-api/internal/contact"
	"github.com/redmonkez12/contacts-api/internal/files"
	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/logging"
	"github.com/redmonkez12/contacts-api/internal/schema"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	cfg *config.Config,
	accountHandler *account.Handler,
	contactHandler *contact.Handler,
	authMiddleware *auth.Middleware,
	logger *logging.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)               // Security headers on all responses
	r.Use(middleware.Recoverer)          // Recover from panics
	r.Use(middleware.RequestID)          // Add request ID
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(logging.RequestLogger(logger)) // Structured logging with request context
	r.Use(middleware.Compress(5))        // Compress responses

	// Unknown routes answer JSON like everything else.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, map[string]string{"message": "Not found."}, http.StatusNotFound)
	})

	r.Get("/health", handleHealth)

	// Stored avatars are served straight from disk.
	avatarDir := filepath.Join(cfg.Files.PublicDir, "avatars")
	r.Handle(files.PublicAvatarPath+"/*", http.StripPrefix(files.PublicAvatarPath+"/", http.FileServer(http.Dir(avatarDir))))

	r.Route("/users", func(r chi.Router) {
		// Public account routes
		r.With(schema.Validate[account.SignupRequest]()).Post("/signup", accountHandler.Signup)
		r.With(schema.Validate[account.LoginRequest]()).Post("/login", accountHandler.Login)
		r.With(schema.Validate[account.VerifyRequest]()).Post("/verify", accountHandler.ResendVerification)
		r.Get("/verify/{token}", accountHandler.VerifyEmail)

		// Protected account routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/logout", accountHandler.Logout)
			r.Get("/current", accountHandler.Current)
			r.With(schema.Validate[account.SubscriptionRequest]()).Patch("/", accountHandler.UpdateSubscription)
			r.Patch("/avatars", accountHandler.UpdateAvatar)
		})
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)
		r.Get("/", contactHandler.List)
		r.With(schema.Validate[contact.UpsertRequest]()).Post("/", contactHandler.Create)
		r.Get("/{contactId}", contactHandler.Get)
		r.With(schema.Validate[contact.UpsertRequest]()).Put("/{contactId}", contactHandler.Update)
		r.With(schema.Validate[contact.FavoriteRequest]()).Patch("/{contactId}/favorite", contactHandler.SetFavorite)
		r.Delete("/{contactId}", contactHandler.Delete)
	})

	return r
}

// handleHealth is a simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
