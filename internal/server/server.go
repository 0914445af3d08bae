package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/server/endpoints"
	"github.com/tomehq/tome/internal/svcctx"
)

// Server is the tome API process: the HTTP surface plus the event pump
// that bridges the broker's fanout exchange into the in-process hub for
// SSE subscribers. It does not own its backends; serve builds the
// services and tears them down after Start returns.
type Server struct {
	httpServer *http.Server
	services   *svcctx.Services
	logger     *slog.Logger

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 4242)
	Port int
	// Services carries every initialized service for context enrichment.
	Services *svcctx.Services
	// SwaggerSpecPath overrides the default swagger.json location.
	SwaggerSpecPath string
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 4242
	}
	if cfg.Services == nil {
		return nil, errors.New("server requires services")
	}
	logger := cfg.Services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		services: cfg.Services,
		logger:   logger,
	}

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: cfg.SwaggerSpecPath}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	// No WriteTimeout: the events endpoint holds its response open for
	// the life of the subscription.
	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

// Start runs the HTTP server and the event pump. It blocks until the
// context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	go s.pumpEvents(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// pumpEvents forwards broker event broadcasts into the hub until ctx is
// cancelled. Undecodable payloads are dropped with a warning; the stream
// is best-effort.
func (s *Server) pumpEvents(ctx context.Context) {
	if s.services.Broker == nil || s.services.Hub == nil {
		return
	}

	err := s.services.Broker.ConsumeEvents(ctx, func(body []byte) {
		ev, err := events.Decode(body)
		if err != nil {
			s.logger.Warn("dropping undecodable event", "error", err)
			return
		}
		s.services.Hub.Publish(ev)
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Error("event consumer stopped", "error", err)
	}
}

// shutdown drains SSE subscribers and stops the HTTP server. The hub
// closes first so open event streams unblock before Shutdown waits on
// their connections.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	if s.services.Hub != nil {
		s.services.Hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wired HTTP handler. Tests drive it through
// httptest without opening a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or broker aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services.Store == nil || s.services.Broker == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
