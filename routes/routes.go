package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/fact-history/app"
	"github.com/upb/fact-history/handlers"
	"github.com/upb/fact-history/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.History, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	h := handlers.NewFactHistoryHandler(deps.History, deps.Logger)

	r.Route("/api/v1/fact-history", func(r chi.Router) {
		r.Post("/events", h.HandleAppend)
		r.Get("/events/{eventId}", h.HandleGetEvent)

		r.Get("/facts/{factId}/history", h.HandleGetHistory)
		r.Get("/facts/{factId}/chain", h.HandleGetChain)

		r.Get("/spaces/{spaceId}/changes", h.HandleGetChanges)
		r.Get("/spaces/{spaceId}/counts", h.HandleCountByAction)
		r.Get("/spaces/{spaceId}/activity", h.HandleGetActivity)

		// Destructive maintenance requires the maintainer role
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole(deps.Config.Auth.MaintainerRole))

			r.Delete("/facts/{factId}", h.HandleEraseFact)
			r.Delete("/users/{userId}", h.HandleEraseUser)
			r.Delete("/spaces/{spaceId}", h.HandleEraseSpace)
			r.Post("/purge", h.HandlePurge)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
