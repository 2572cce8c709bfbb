// Package adminapi provides a minimal, localhost-bindable read-only
// status/introspection HTTP server for HydraDNS: health, stats, and
// cache/delegation occupancy. It carries no configuration, zone, or
// custom-DNS mutation endpoints — this spec's configuration lives in TOML
// files managed by internal/config, not a database an API can write to.
package adminapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hydraresolve/hydraresolve/internal/adminapi/handlers"
	"github.com/hydraresolve/hydraresolve/internal/config"
)

// Server is the read-only admin/status HTTP server.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handler    *handlers.Handler
	engine     *gin.Engine
	httpServer *http.Server
}

// New creates a Server. nodeID identifies this instance in responses (and
// distinguishes concurrent engine instances in logs, mirroring the
// cluster-sync node identity).
func New(cfg *config.Config, logger *slog.Logger, nodeID string) *Server {
	if cfg == nil {
		panic("adminapi.New: cfg is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	h := handlers.New(logger, nodeID)
	RegisterRoutes(engine, h, cfg)

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{cfg: cfg, logger: logger, handler: h, engine: engine, httpServer: httpServer}
}

// Handler exposes the underlying handler so callers can wire introspection
// hooks (DNS stats, cache stats, delegations) once the resolver components
// that back them exist.
func (s *Server) Handler() *handlers.Handler {
	return s.handler
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
