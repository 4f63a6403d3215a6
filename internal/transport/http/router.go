package http

import (
	"net/http"
	"time"

	"trivia-quiz-service/internal/auth"
	"trivia-quiz-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	Service        AttemptAPI
	Feed           LeaderboardFeed
	Tokens         *auth.TokenService
	CookieName     string
	AllowedOrigins []string
}

// NewRouter mounts the quiz API, the leaderboard feed and the ops endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	if cfg.Feed != nil {
		r.Get("/ws/leaderboard", NewWSHandler(cfg.Feed).ServeWS)
	}

	h := NewHandlers(cfg.Service)
	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(30 * time.Second))
		api.Use(auth.Middleware(cfg.Tokens, cfg.CookieName))

		api.Post("/api/quiz/attempt", h.RecordAttempt)
		api.Get("/api/quiz/attempts", h.ListAttempts)
		api.Get("/api/quiz/stats", h.Stats)
		api.Get("/api/quiz/leaderboard", h.Leaderboard)
		api.Get("/api/users/count", h.CountUsers)
	})
	return r
}
