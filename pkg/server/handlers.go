package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-posture/pkg/capture"
	"github.com/teslashibe/go-posture/pkg/monitor"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/session"
)

// StatusResponse is the body of every command endpoint.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DataResponse is the /data document.
type DataResponse struct {
	GoodCount      int                `json:"goodCount"`
	BadCount       int                `json:"badCount"`
	PostureHistory []int              `json:"postureHistory"`
	LatestPosture  posture.Label      `json:"latestPosture"`
	Sessions       []*session.Session `json:"sessions"`
	IsMonitoring   bool               `json:"isMonitoring"`
}

// LiveStatus is the /status document.
type LiveStatus struct {
	Monitoring      bool                 `json:"monitoring"`
	Score           int                  `json:"score"`
	RemoteConnected *bool                `json:"remoteConnected,omitempty"`
	Subscribers     int                  `json:"subscribers"`
	Frame           *monitor.FrameStatus `json:"frame,omitempty"`
}

func success(msg string) StatusResponse {
	return StatusResponse{Status: "success", Message: msg}
}

func failure(msg string) StatusResponse {
	return StatusResponse{Status: "error", Message: msg}
}

// handleStart opens a session. Starting twice is not an error for clients.
func (s *Server) handleStart(c *fiber.Ctx) error {
	_, err := s.ctl.Start(c.UserContext())
	switch {
	case err == nil:
		return c.JSON(success("Monitoring started"))
	case errors.Is(err, session.ErrAlreadyMonitoring):
		return c.JSON(success("Monitoring already started"))
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(failure(err.Error()))
	default:
		return err
	}
}

// handleStop closes the active session; stopping while idle succeeds.
func (s *Server) handleStop(c *fiber.Ctx) error {
	_, err := s.ctl.Stop(c.UserContext())
	switch {
	case err == nil:
		return c.JSON(success("Monitoring stopped"))
	case errors.Is(err, session.ErrNotMonitoring):
		return c.JSON(success("Monitoring already stopped"))
	default:
		return err
	}
}

func (s *Server) handleData(c *fiber.Ctx) error {
	st := s.ctl.Snapshot()
	return c.JSON(DataResponse{
		GoodCount:      st.GoodCount,
		BadCount:       st.BadCount,
		PostureHistory: st.PostureHistory,
		LatestPosture:  st.LatestPosture,
		Sessions:       st.Sessions,
		IsMonitoring:   st.IsMonitoring,
	})
}

// handleUpdate applies a sparse update from a frame producer.
func (s *Server) handleUpdate(c *fiber.Ctx) error {
	var u session.Update
	if err := c.BodyParser(&u); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid body: " + err.Error()))
	}
	if err := s.ctl.Apply(c.UserContext(), u); err != nil {
		if errors.Is(err, session.ErrInvalidUpdate) {
			return c.Status(fiber.StatusBadRequest).JSON(failure(err.Error()))
		}
		return err
	}
	return c.JSON(StatusResponse{Status: "success"})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{Status: "healthy"})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	return c.JSON(s.ctl.History())
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.ctl.Stats())
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.ctl.Snapshot()
	out := LiveStatus{
		Monitoring: s.ctl.Monitoring(),
		Score:      st.Score(),
	}
	if s.remoteKnown.Load() {
		ok := s.remoteConnected.Load()
		out.RemoteConnected = &ok
	}
	if s.hub != nil {
		out.Subscribers = s.hub.ClientCount()
	}
	if p, ok := s.ctl.(FrameStatusProvider); ok {
		fs := p.Status()
		if fs.Seq > 0 {
			out.Frame = &fs
		}
	}
	return c.JSON(out)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>Posture Monitor API</title></head>
<body>
<h1>Posture Monitor API</h1>
<ul>
<li><code>POST /start</code> start a monitoring session</li>
<li><code>POST /stop</code> stop the active session</li>
<li><code>GET /data</code> counters, history and sessions</li>
<li><code>POST /update</code> push a sparse state update</li>
<li><code>GET /history</code> sessions, newest first</li>
<li><code>GET /stats</code> session statistics</li>
<li><code>GET /status</code> live pipeline status</li>
<li><code>GET /health</code> health check</li>
<li><code>GET /metrics</code> Prometheus metrics</li>
<li><code>GET /ws/status</code> websocket status stream</li>
</ul>
</body>
</html>`

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html")
	return c.SendString(indexHTML)
}

// handleError renders unhandled errors as the JSON error shape.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(failure(err.Error()))
}
