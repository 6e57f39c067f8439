package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/contacts-be/internal/api/handlers"
	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/isdelr/contacts-be/internal/ratelimit"
	"github.com/isdelr/contacts-be/internal/services"
	"github.com/rs/zerolog/log"
)

// Deps bundles what the router needs to build its handlers.
type Deps struct {
	Auth     *auth.Service
	Users    services.UserServiceProvider
	Contacts services.ContactServiceProvider
	// Limiter throttles GET /api/contacts. Nil disables rate limiting.
	Limiter     ratelimit.Limiter
	Health      func(ctx context.Context) error
	CORSOrigins []string
	BaseURL     string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(deps.Users, deps.BaseURL)
	userHandler := handlers.NewUserHandler(deps.Users)
	contactHandler := handlers.NewContactHandler(deps.Contacts)
	requireUser := auth.Middleware(deps.Auth)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"helloworld"}` + "\n"))
	})
	r.Get("/healthz", healthz(deps.Health))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Get("/refresh_token", authHandler.RefreshToken)
			r.Get("/confirmed_email/{token}", authHandler.ConfirmedEmail)
			r.Post("/request_email", authHandler.RequestEmail)
			r.With(requireUser).Post("/logout", authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", userHandler.GetMe)
				r.Patch("/avatar", userHandler.UpdateAvatar)
			})

			r.Route("/contacts", func(r chi.Router) {
				list := http.Handler(http.HandlerFunc(contactHandler.GetAll))
				if deps.Limiter != nil {
					list = ratelimit.Middleware(deps.Limiter, "contacts", ratelimit.ContactsListLimit())(list)
				}
				r.Method(http.MethodGet, "/", list)
				r.Post("/", contactHandler.Create)
				r.Get("/search", contactHandler.Search)
				r.Get("/birthdays", contactHandler.Birthdays)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", contactHandler.Get)
					r.Put("/", contactHandler.Update)
					r.Delete("/", contactHandler.Delete)
				})
			})
		})
	})

	return r
}

func healthz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				log.Error().Err(err).Msg("Health check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}` + "\n"))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	}
}
