package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// Browser frontends are served from other origins. Will restrict in
	// production.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/", apiHandler.RootHandler)
	r.Get("/universes", apiHandler.ListUniversesHandler)
	r.Post("/universe/system-prompt", apiHandler.UniversePromptHandler)

	r.Route("/story", func(r chi.Router) {
		r.Post("/generate", apiHandler.GenerateStoryHandler)
		r.Post("/generate-custom", apiHandler.GenerateCustomStoryHandler)
		r.Get("/history", apiHandler.HistoryHandler)
		r.Get("/trending", apiHandler.TrendingHandler)

		// Static /share prefix wins over the {storyID} param route.
		r.Get("/share/{token}", apiHandler.SharedStoryHandler)

		r.Get("/{storyID}", apiHandler.GetStoryHandler)
		r.Post("/{storyID}/rate", apiHandler.RateStoryHandler)
		r.Get("/{storyID}/ratings", apiHandler.RatingStatsHandler)
		r.Post("/{storyID}/share", apiHandler.ShareStoryHandler)
	})

	return r
}
