package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hackclub/mediadrop/internal/auth"
	"github.com/hackclub/mediadrop/internal/config"
	"github.com/hackclub/mediadrop/internal/media"
	"github.com/hackclub/mediadrop/internal/metrics"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

type Server struct {
	config       *config.Config
	logger       zerolog.Logger
	mediaHandler *media.Handler
	tokens       *auth.TokenManager
	limiter      *RateLimiter
	authLimiter  *RateLimiter
	metrics      *metrics.Metrics
	defaultGroup string
}

// NewServer wires the HTTP surface. tokens may be nil, in which case the
// media routes are open.
func NewServer(
	cfg *config.Config,
	logger zerolog.Logger,
	mediaHandler *media.Handler,
	tokens *auth.TokenManager,
	m *metrics.Metrics,
) *Server {
	return &Server{
		config:       cfg,
		logger:       logger,
		mediaHandler: mediaHandler,
		tokens:       tokens,
		limiter:      NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		authLimiter:  NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		metrics:      m,
		defaultGroup: cfg.DefaultGroup,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	// RealIP trusts X-Forwarded-For and X-Real-IP as sent. Run behind a
	// proxy that overwrites them, or client IP rate limits can be dodged.
	r.Use(middleware.RealIP)
	r.Use(s.LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.HealthCheck)
	r.Get("/api/config", s.HandleConfig)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/media", func(r chi.Router) {
		if s.tokens != nil {
			r.Use(s.AuthMiddleware)
		}
		r.Use(s.limiter.Middleware)

		r.Post("/", s.mediaHandler.HandleUpload)
		r.Get("/{group}", s.mediaHandler.HandleList)
		r.Delete("/{group}/{name}", s.mediaHandler.HandleDelete)
	})

	return r
}

// Handlers

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
	})
}

func (s *Server) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"publicBaseUrl":  s.config.PublicBaseURL,
		"defaultGroup":   s.defaultGroup,
		"maxUploadBytes": s.config.MaxUploadBytes,
	})
}
