package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/match-arena/handlers"
	"github.com/Dosada05/match-arena/middleware"
	"github.com/Dosada05/match-arena/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Options struct {
	JWTSecret          []byte
	AllowedOrigins     []string
	RateLimitPerMinute int
}

type Handlers struct {
	Match       *handlers.MatchHandler
	Timer       *handlers.TimerHandler
	Matchmaking *handlers.MatchmakingHandler
	Admin       *handlers.AdminHandler
	WebSocket   *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	auth := middleware.Authenticate(opts.JWTSecret)

	// WebSocket без таймаута и лимитера: соединение долгоживущее.
	router.Route("/ws", func(r chi.Router) {
		r.Use(auth)
		r.Get("/matches/{matchID}", h.WebSocket.ServeMatch)
		r.Get("/users/{userID}", h.WebSocket.ServeUser)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
		r.Use(chiMiddleware.Timeout(15 * time.Second))
		r.Use(auth)

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", h.Match.GetMatch)
			r.Post("/start", h.Match.StartMatch)
			r.Post("/scores", h.Match.SubmitScore)
			r.Post("/finalize", h.Match.FinalizeMatch)
			r.Get("/submissions", h.Match.GetSubmissions)

			r.Get("/timer", h.Timer.GetTimer)
			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(models.RoleAdmin))
				r.Post("/timer/pause", h.Timer.PauseTimer)
				r.Post("/timer/resume", h.Timer.ResumeTimer)
				r.Post("/timer/reset", h.Timer.ResetTimer)
				r.Delete("/timer", h.Timer.StopTimer)
			})
		})

		r.Route("/matchmaking", func(r chi.Router) {
			r.Post("/queue", h.Matchmaking.JoinQueue)
			r.Delete("/queue", h.Matchmaking.LeaveQueue)
			r.Get("/stats", h.Matchmaking.GetStats)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Authorize(models.RoleAdmin))
			r.Post("/disputes/{disputeID}/resolve", h.Admin.ResolveDispute)
		})
	})
}
