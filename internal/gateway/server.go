// Package gateway is the HTTP surface of the travel agent: the query and
// stream-query endpoints, session reset, health, and a WebSocket chat
// bridge for interactive clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deepakmehta1/travel-mcp-prod/internal/agent"
	"github.com/deepakmehta1/travel-mcp-prod/internal/config"
	"github.com/deepakmehta1/travel-mcp-prod/internal/logging"
)

// queryTimeout bounds one full orchestration run.
const queryTimeout = 5 * time.Minute

// Server is the travel agent HTTP + WebSocket server.
type Server struct {
	cfg    config.Config
	log    *logging.Logger
	runner *agent.Runner

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server around an agent runner.
func New(cfg config.Config, log *logging.Logger, runner *agent.Runner) *Server {
	allowed := cfg.Server.AllowedOrigins
	return &Server{
		cfg:    cfg,
		log:    log.Sub("gateway"),
		runner: runner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowed),
		},
	}
}

// checkWebSocketOrigin validates WebSocket Origin headers. Requests with
// no Origin (same-origin or non-browser clients) are always allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Handler builds the full middleware-wrapped route handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)
}

// Start begins listening. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// streaming responses outlive any sane write timeout
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("model", s.runner.Model()).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
