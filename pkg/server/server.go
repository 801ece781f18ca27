// Package server exposes the posture state over HTTP: session control,
// the aggregate data document, sparse updates from producers, history and
// stats, Prometheus metrics and a live websocket status stream.
package server

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/metrics"
	"github.com/teslashibe/go-posture/pkg/monitor"
	"github.com/teslashibe/go-posture/pkg/session"
)

// Controller is what the HTTP layer drives. *session.Aggregator serves a
// store-only API process; *monitor.Monitor also runs the camera pipeline.
type Controller interface {
	Start(ctx context.Context) (*session.Session, error)
	Stop(ctx context.Context) (*session.Session, error)
	Apply(ctx context.Context, u session.Update) error
	Snapshot() session.State
	History() []*session.Session
	Stats() session.Stats
	Monitoring() bool
}

// FrameStatusProvider is implemented by controllers that process frames.
type FrameStatusProvider interface {
	Status() monitor.FrameStatus
}

var (
	_ Controller          = (*session.Aggregator)(nil)
	_ Controller          = (*monitor.Monitor)(nil)
	_ FrameStatusProvider = (*monitor.Monitor)(nil)
	_ session.Observer    = (*metrics.Metrics)(nil)
)

// Config configures the server.
type Config struct {
	AppName    string
	AccessLog  bool
	EnableCORS bool
}

// DefaultConfig returns the settings used by the binaries.
func DefaultConfig() Config {
	return Config{
		AppName:    "Posture Monitor API",
		AccessLog:  false,
		EnableCORS: true,
	}
}

// Server is the HTTP API.
type Server struct {
	app     *fiber.App
	ctl     Controller
	hub     *hub.Hub
	metrics *metrics.Metrics
	logger  *slog.Logger

	remoteConnected atomic.Bool
	remoteKnown     atomic.Bool
}

// New builds the fiber app and registers every route. hub and metrics may
// be nil, which disables /ws/status and /metrics.
func New(cfg Config, ctl Controller, h *hub.Hub, m *metrics.Metrics) *Server {
	s := &Server{
		ctl:     ctl,
		hub:     h,
		metrics: m,
		logger:  log.Component("server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	if cfg.EnableCORS {
		app.Use(cors.New())
	}
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/", s.handleIndex)
	app.Post("/start", s.handleStart)
	app.Post("/stop", s.handleStop)
	app.Get("/data", s.handleData)
	app.Post("/update", s.handleUpdate)
	app.Get("/health", s.handleHealth)
	app.Get("/history", s.handleHistory)
	app.Get("/stats", s.handleStats)
	app.Get("/status", s.handleStatus)

	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	if h != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/status", websocket.New(h.Serve))
	}

	s.app = app
	return s
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// SetRemoteConnected records the latest remote health result for /status.
func (s *Server) SetRemoteConnected(ok bool) {
	s.remoteConnected.Store(ok)
	s.remoteKnown.Store(true)
}
