// Package http is the read-only observability surface: signal history,
// live signals, per-symbol regime, the stage funnel, and Prometheus metrics.
// It never mutates pipeline state.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/config"
)

// Server is the read-only HTTP server.
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *Handlers
}

// NewServer wires routes and middleware. The port is probed up front so a
// bind conflict fails at startup instead of at first request.
func NewServer(cfg config.HTTPConfig, handlers *Handlers, gatherer prometheus.Gatherer) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("port %d is busy or unavailable: %w", cfg.Port, err)
	}
	listener.Close()

	router := mux.NewRouter()
	s := &Server{router: router, handlers: handlers}

	router.Use(s.requestIDMiddleware)
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/health", handlers.Health).Methods("GET")
	router.HandleFunc("/signals", handlers.Signals).Methods("GET")
	router.HandleFunc("/signals/active", handlers.ActiveSignals).Methods("GET")
	router.HandleFunc("/signals/{id}", handlers.Signal).Methods("GET")
	router.HandleFunc("/regime/{symbol}", handlers.Regime).Methods("GET")
	router.HandleFunc("/funnel", handlers.Funnel).Methods("GET")
	router.HandleFunc("/reputation", handlers.Reputation).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFound)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", w.Header().Get("X-Request-ID")).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
