// Package server exposes the decision engine over HTTP: evaluation,
// history, rule management, health, and stats, plus the Prometheus
// exposition endpoint.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/prioritizer"
)

// Options configures a Server.
type Options struct {
	Addr   string
	Engine *prioritizer.Engine
	// Gatherer backs /metrics; nil falls back to the default registry.
	Gatherer prometheus.Gatherer
	// RateLimitRPS enables per-client token-bucket limiting when positive.
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *zap.Logger
}

// Server is the HTTP API in front of a prioritizer engine.
type Server struct {
	addr    string
	engine  *prioritizer.Engine
	limiter *clientLimiter
	router  chi.Router
	logger  *zap.Logger
}

// New creates a Server and mounts its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		addr:   opts.Addr,
		engine: opts.Engine,
		logger: logger.Named("server"),
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/notifications/evaluate", s.handleEvaluate)
		r.Get("/notifications/history/{userID}", s.handleHistory)
		r.Post("/notifications/{eventID}/dispatch", s.handleForceDispatch)
		r.Post("/rules", s.handleAddRule)
		r.Get("/rules", s.handleListRules)
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// Handler returns the mounted router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	if s.limiter != nil {
		go s.limiter.run(ctx)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("HTTP API stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requestLogger logs one line per request with method, path, status, and
// duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// rateLimit rejects clients that exceed their token bucket with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
