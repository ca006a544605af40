package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	if s.cfg.Server.RateLimit.Enabled {
		r.Use(s.rateLimitMiddleware(s.cfg.Server.RateLimit))
	}

	r.Route("/api/v2.0", func(r chi.Router) {
		r.Get("/", s.handleLanding)
		r.Get("/healthcheck", s.handleHealthcheck)

		r.Post("/testcases", s.handleCreateTestcase)
		r.Get("/testcases", s.handleListTestcases)
		// Testcase names may contain slashes, so everything below
		// /testcases/ is resolved by one wildcard handler.
		r.Get("/testcases/*", s.handleTestcaseSubtree)

		r.Post("/groups", s.handleCreateGroup)
		r.Get("/groups", s.handleListGroups)
		r.Get("/groups/{uuid}", s.handleGetGroup)
		r.Get("/groups/{uuid}/results", s.handleGroupResults)

		r.Post("/results", s.handleCreateResult)
		r.Get("/results", s.handleListResults)
		r.Get("/results/latest", s.handleLatestResults)
		r.Get("/results/{id}", s.handleGetResult)
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
