package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sawpanic/punit/internal/model"
)

// ServerConfig holds the dashboard server's listen and timeout settings,
// local-only by default.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns sane local-only defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         9191,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is PUnit's read-only dashboard: the latest verdict per use case,
// Prometheus metrics, and a websocket feed of live sample outcomes.
type Server struct {
	router  *mux.Router
	server  *http.Server
	config  ServerConfig
	metrics *MetricsRegistry

	mu       sync.RWMutex
	verdicts map[string]model.Verdict

	stream *Stream
}

// NewServer builds a dashboard server bound to config.Host:config.Port.
// Verifies the port is free before wiring routes, matching the donor's
// fail-fast startup check.
func NewServer(config ServerConfig, metrics *MetricsRegistry, stream *Stream) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("port %d is busy or unavailable: %w", config.Port, err)
	}
	listener.Close()

	s := &Server{
		router:   mux.NewRouter(),
		config:   config,
		metrics:  metrics,
		verdicts: make(map[string]model.Verdict),
		stream:   stream,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(correlationIDMiddleware)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/verdicts", s.handleVerdicts).Methods(http.MethodGet)
	s.router.HandleFunc("/verdicts/{useCaseId}", s.handleVerdict).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", Handler(s.metrics.Registry())).Methods(http.MethodGet)
	}
	if s.stream != nil {
		s.router.HandleFunc("/stream", s.stream.ServeHTTP).Methods(http.MethodGet)
	}
}

// RecordVerdict publishes a verdict for display on the dashboard.
func (s *Server) RecordVerdict(useCaseID string, v model.Verdict) {
	s.mu.Lock()
	s.verdicts[useCaseID] = v
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVerdicts(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.verdicts)
}

func (s *Server) handleVerdict(w http.ResponseWriter, r *http.Request) {
	useCaseID := mux.Vars(r)["useCaseId"]
	s.mu.RLock()
	v, ok := s.verdicts[useCaseID]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ListenAndServe starts the server, blocking until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// correlationIDMiddleware tags every request with a UUID for log
// correlation, mirroring the donor's use of google/uuid at the HTTP layer.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r)
	})
}
