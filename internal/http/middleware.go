package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hackclub/mediadrop/internal/auth"
	"golang.org/x/time/rate"
)

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Str("user_agent", r.UserAgent())
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			event = event.Str("request_id", reqID)
		}
		event.Msg("request")
	})
}

// AuthMiddleware requires a valid bearer token and stores its claims on the
// request context. Failed attempts draw from a per-IP budget; once it is
// spent the client gets 429 before its token is looked at.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if s.authLimiter.exhausted(ip) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			s.authLimiter.consume(ip)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := s.tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			s.authLimiter.consume(ip)
			s.logger.Debug().Err(err).Str("ip", ip).Msg("authentication failed")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// RateLimiter keeps one token bucket per client key and forgets idle ones.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	maxAge time.Duration

	mu    sync.Mutex
	store map[string]*limiterEntry
}

type limiterEntry struct {
	limiter *rate.Limiter
	updated time.Time
}

// NewRateLimiter returns a limiter; rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:  rate.Limit(rps),
		burst:  burst,
		maxAge: 10 * time.Minute,
		store:  make(map[string]*limiterEntry),
	}
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, ok := l.store[key]; ok {
		entry.updated = now
		return entry.limiter
	}

	for k, entry := range l.store {
		if now.Sub(entry.updated) > l.maxAge {
			delete(l.store, k)
		}
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	l.store[key] = &limiterEntry{limiter: lim, updated: now}
	return lim
}

// exhausted reports whether key has no token left, without spending one.
func (l *RateLimiter) exhausted(key string) bool {
	if l.limit <= 0 {
		return false
	}
	return l.get(key).Tokens() < 1
}

func (l *RateLimiter) consume(key string) {
	if l.limit > 0 {
		l.get(key).Allow()
	}
}

// Middleware keys on the token subject when present, otherwise on client IP.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r)
		if claims := auth.ClaimsFrom(r.Context()); claims != nil {
			key = "sub:" + claims.Subject
		}

		if !l.get(key).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
