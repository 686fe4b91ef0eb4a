package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/teftar/api/app"
	"github.com/teftar/api/handlers"
	"github.com/teftar/api/internal/observability"
	"github.com/teftar/api/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(cors.Handler(corsOptions(deps.Config.CORS.AllowedOrigins)))

	health := handlers.NewHealthHandler(deps.DB.DB, deps.Logger)
	accounts := handlers.NewAuthHandler(deps.Accounts, deps.Logger)
	clients := handlers.NewClientHandler(deps.Clients, deps.Logger)

	r.Get("/", health.HandleRoot)
	r.Get("/health", health.HandleHealth)
	r.Get("/health/ready", health.HandleReadiness)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", accounts.HandleSignUp)
		r.Post("/signin", accounts.HandleSignIn)
		r.Post("/verify-email", accounts.HandleVerifyEmail)
	})

	r.Route("/clients", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Get("/", clients.HandleListClients)
		r.Post("/", clients.HandleCreateClient)
		r.Get("/{id}", clients.HandleGetClient)
		r.Put("/{id}", clients.HandleUpdateClient)
		r.Delete("/{id}", clients.HandleDeleteClient)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// corsOptions allows the configured origins with credentials, or any origin
// without them when none are configured.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
		return opts
	}
	opts.AllowedOrigins = origins
	opts.AllowCredentials = true
	return opts
}
