// Package web exposes the pricing ingestion service over HTTP: the upload
// endpoint, the paginated pricing query, the progress websocket, and the
// health and metrics endpoints.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tourops/pricing-ingest/internal/cache"
	"github.com/tourops/pricing-ingest/internal/config"
	"github.com/tourops/pricing-ingest/internal/hub"
	"github.com/tourops/pricing-ingest/internal/ingest"
	"github.com/tourops/pricing-ingest/internal/store"
	"github.com/tourops/pricing-ingest/internal/web/middleware"
)

// PricingReader serves paginated pricing rows. *store.PricingStore
// implements it; tests substitute a fake.
type PricingReader interface {
	PricingPage(ctx context.Context, operatorID uuid.UUID, page, pageSize int) ([]store.PricingRow, error)
}

// Deps carries the collaborators the server wires together.
type Deps struct {
	Config  *config.Config
	Sink    ingest.BulkSink
	Pricing PricingReader
	Cache   cache.PageCache
	Hub     *hub.Hub
	Metrics *ingest.Metrics

	// Registry backs the /metrics endpoint. Nil disables it.
	Registry *prometheus.Registry
}

// Server is the HTTP server for the pricing ingestion service.
type Server struct {
	cfg     *config.Config
	sink    ingest.BulkSink
	pricing PricingReader
	cache   cache.PageCache
	hub     *hub.Hub
	metrics *ingest.Metrics

	router *chi.Mux
	server *http.Server
}

// NewServer builds the router with middleware and routes configured.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:     d.Config,
		sink:    d.Sink,
		pricing: d.Pricing,
		cache:   d.Cache,
		hub:     d.Hub,
		metrics: d.Metrics,
		router:  chi.NewRouter(),
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	s.setupMiddleware()
	s.setupRoutes(d.Registry)
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	s.router.Route("/api/touroperators/{tourOperatorID}", func(r chi.Router) {
		r.Get("/pricing", s.handlePricingPage)

		// Uploads get a tighter limit than reads.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				uploads := newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute)
				r.Use(uploads.middleware)
			}
			r.Post("/pricing-upload", s.handlePricingUpload)
		})
	})

	if s.hub != nil {
		s.router.Get("/ws/progress", s.hub.ServeHTTP)
	}

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	if registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
}

// Start begins listening for HTTP requests. It blocks until the listener
// fails or Shutdown runs.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window limiter keyed by client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup evicts idle visitor entries so the map stays bounded.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
