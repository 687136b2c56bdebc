package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/iago/feed-agent-back/internal/http/handlers"
	"github.com/iago/feed-agent-back/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *logrus.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxyHeaders derives the client IP from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
}

// publicPaths stay reachable without the bearer token.
var publicPaths = []string{"/healthz"}

func NewRouter(deps RouterDependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Trace(deps.Logger))
	router.Use(chimw.Recoverer)
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	}))
	if deps.TrustProxyHeaders {
		router.Use(chimw.RealIP)
	}
	router.Use(middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst))
	router.Use(middleware.Auth(middleware.AuthConfig{
		Token:       deps.AuthToken,
		PublicPaths: publicPaths,
	}))

	router.Get("/healthz", deps.API.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Post("/chat", deps.API.Chat)
		r.Post("/chat/filtered", deps.API.ChatFiltered)
		r.Post("/chat/{threadID}", deps.API.ChatThread)
		r.Get("/threads/{threadID}", deps.API.Thread)
		r.Post("/turn-jobs", deps.API.EnqueueTurn)
		r.Get("/jobs/{jobID}", deps.API.JobStatus)
	})

	return router
}
