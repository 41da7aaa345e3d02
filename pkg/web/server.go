// Package web provides the posture dashboard: REST control endpoints and
// live status and alert streams.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	accesslog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/pose"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/protocol"
)

// AlertHistorySize is the number of recent alerts kept for /api/alerts.
const AlertHistorySize = 100

// Controller is the monitor surface the dashboard drives.
type Controller interface {
	StartCalibration() string
	Stop()
	Resume() error
	UpdateSettingsFunc(func(*posture.Settings)) error
	Settings() posture.Settings
	Snapshot() posture.Snapshot
}

// Config configures the dashboard server.
type Config struct {
	// StaticDir, when set, is served at /.
	StaticDir string

	// Metrics, when set, is served at /metrics.
	Metrics http.Handler

	// AccessLog enables per-request logging.
	AccessLog bool

	Logger *slog.Logger
}

// Server is the web dashboard server
type Server struct {
	app     *fiber.App
	ctrl    Controller
	logger  *slog.Logger
	started time.Time
	valid   *validator.Validate

	// Alert history (last AlertHistorySize entries)
	alerts   []protocol.AlertData
	alertsMu sync.RWMutex

	statusHub *hub.Hub
	alertHub  *hub.Hub

	staticDir string
}

// NewServer creates a new dashboard server
func NewServer(ctrl Controller, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		ctrl:      ctrl,
		logger:    logger.With("component", "web"),
		started:   time.Now(),
		valid:     newValidator(),
		alerts:    make([]protocol.AlertData, 0, AlertHistorySize),
		statusHub: hub.New("status", logger),
		alertHub:  hub.New("alerts", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Posture Guardian",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.AccessLog {
		app.Use(accesslog.New())
	}

	app.Get("/health", s.handleHealth)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/calibrate", s.handleCalibrate)
	api.Post("/stop", s.handleStop)
	api.Post("/resume", s.handleResume)
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handleUpdateConfig)
	api.Get("/alerts", s.handleGetAlerts)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/alerts", websocket.New(s.handleAlertsWS))

	s.app = app
	s.staticDir = cfg.StaticDir
	return s
}

// App returns the Fiber app so other components can register routes.
func (s *Server) App() *fiber.App {
	return s.app
}

// API returns the /api router.
func (s *Server) API() fiber.Router {
	return s.app.Group("/api")
}

// Run starts the hubs and serves on addr until ctx is cancelled.
// Static files are mounted last so routes registered by other components
// take precedence.
func (s *Server) Run(ctx context.Context, addr string) error {
	if s.staticDir != "" {
		s.app.Static("/", s.staticDir)
	}
	go s.statusHub.Run(ctx)
	go s.alertHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}

// PublishOutcome broadcasts the status produced by one frame.
func (s *Server) PublishOutcome(out posture.Outcome) {
	data := statusData(out.State, out.Status)
	if out.Assessment != nil {
		data.ShoulderDiff = out.Assessment.ShoulderDiff
		data.NeckDiff = out.Assessment.NeckDiff
	}
	s.broadcast(s.statusHub, protocol.TypeStatus, data)
}

// PublishSnapshot broadcasts the monitor's current status.
func (s *Server) PublishSnapshot() {
	snap := s.ctrl.Snapshot()
	s.broadcast(s.statusHub, protocol.TypeStatus, statusData(snap.State, snap.Status))
}

// PublishAlert records an alert in the history and broadcasts it.
// It returns the alert as sent so it can be forwarded elsewhere.
func (s *Server) PublishAlert(alert posture.Alert) protocol.AlertData {
	data := protocol.AlertData{
		ID: uuid.NewString(),
		At: alert.At,
	}

	s.alertsMu.Lock()
	s.alerts = append(s.alerts, data)
	if len(s.alerts) > AlertHistorySize {
		s.alerts = s.alerts[1:]
	}
	s.alertsMu.Unlock()

	s.broadcast(s.alertHub, protocol.TypeAlert, data)
	return data
}

// PublishCalibration broadcasts a finished capture window and the
// resulting status.
func (s *Server) PublishCalibration(res posture.CalibrationResult) {
	data := protocol.CalibrationData{
		Session: res.Session,
		Success: res.Success,
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	if res.Success {
		data.Baseline = protocol.FromSignature(res.Baseline)
	}
	s.broadcast(s.statusHub, protocol.TypeCalibration, data)
	s.PublishSnapshot()
}

// SeedAlerts restores alert history, newest first as returned by Alerts.
// Alerts already recorded are kept and stay newer than the seeded ones.
func (s *Server) SeedAlerts(history []protocol.AlertData) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()

	seeded := make([]protocol.AlertData, 0, len(history)+len(s.alerts))
	for i := len(history) - 1; i >= 0; i-- {
		seeded = append(seeded, history[i])
	}
	seeded = append(seeded, s.alerts...)
	if len(seeded) > AlertHistorySize {
		seeded = seeded[len(seeded)-AlertHistorySize:]
	}
	s.alerts = seeded
}

// Alerts returns up to limit recent alerts, newest first.
func (s *Server) Alerts(limit int) []protocol.AlertData {
	s.alertsMu.RLock()
	defer s.alertsMu.RUnlock()

	if limit <= 0 || limit > len(s.alerts) {
		limit = len(s.alerts)
	}
	out := make([]protocol.AlertData, 0, limit)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.alerts[i])
	}
	return out
}

// StatusClients returns the number of connected status stream clients.
func (s *Server) StatusClients() int {
	return s.statusHub.ClientCount()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) broadcast(h *hub.Hub, t protocol.MessageType, data interface{}) {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		s.logger.Error("encode message", "type", t, "error", err)
		return
	}
	if err := h.BroadcastMessage(msg); err != nil {
		s.logger.Error("broadcast", "type", t, "error", err)
	}
}

func statusData(state posture.State, st posture.Status) protocol.StatusData {
	return protocol.StatusData{
		State: state.String(),
		Code:  string(st.Code),
		Text:  st.Text,
		Color: st.Color,
		Count: st.Count,
	}
}

func baselineData(b *pose.Signature) *protocol.SignatureData {
	if b == nil {
		return nil
	}
	return protocol.FromSignature(*b)
}
