package inspect

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kbukum/dikit/config"
	"github.com/kbukum/dikit/di"
	"github.com/kbukum/dikit/logger"
	"github.com/kbukum/dikit/observability"
)

// Server serves the inspection routes for one registry.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	listener   net.Listener
	log        *logger.Logger
}

// New creates a Server with recovery, request-ID and request logging
// middleware and the inspection routes mounted.
func New(cfg config.InspectConfig, serviceName string, reg *di.Registry, log *logger.Logger, checkers ...observability.HealthChecker) *Server {
	if log.Enabled(zerolog.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log = log.WithComponent("inspect")

	engine := gin.New()
	engine.Use(Recovery(log), RequestID(), RequestLogger(log))
	Mount(engine, serviceName, reg, cfg.AllowWarm, checkers...)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		engine: engine,
		log:    log,
	}
}

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the address and serves in the background. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("inspect server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("inspect server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("inspect server started", logger.Fields("addr", s.Addr()))
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("inspect server shutdown: %w", err)
	}
	s.log.Info("inspect server stopped")
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
