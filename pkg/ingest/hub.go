// Package ingest provides the WebSocket endpoint pose detectors push
// landmark frames to.
package ingest

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/teslashibe/go-posture/pkg/pose"
	"github.com/teslashibe/go-posture/pkg/protocol"
)

// DefaultMaxFPS is the per-detector frame rate limit.
const DefaultMaxFPS = 60

// Frame is one landmark frame received from a detector.
type Frame struct {
	Seq      uint64    // hub-wide sequence, starts at 1
	Detector string    // detector connection ID
	FrameID  uint64    // detector's own frame counter
	Set      pose.Set  // nil when no person was detected
	Received time.Time
}

// Config configures the ingest hub.
type Config struct {
	// MaxFPS limits frames accepted per detector connection.
	// Frames above the limit are dropped.
	MaxFPS float64

	Logger *slog.Logger
}

// DefaultConfig returns the default ingest configuration.
func DefaultConfig() Config {
	return Config{MaxFPS: DefaultMaxFPS}
}

// DetectorConnection represents a connected pose detector.
type DetectorConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time
	Frames    uint64

	limiter *rate.Limiter
	mu      sync.Mutex
}

// Send sends a message to the detector.
func (d *DetectorConnection) Send(msg *protocol.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return d.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages detector connections and keeps the latest frame.
type Hub struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	detectors map[string]*DetectorConnection
	onFrame   func(Frame)

	frameMu sync.Mutex
	latest  Frame
	seq     uint64

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	framesDropped    atomic.Uint64
}

// NewHub creates a new detector hub.
func NewHub(cfg Config) *Hub {
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = DefaultMaxFPS
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:       cfg,
		logger:    logger.With("component", "ingest"),
		detectors: make(map[string]*DetectorConnection),
	}
}

// OnFrame sets the callback for accepted frames.
func (h *Hub) OnFrame(callback func(Frame)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/detector", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/detector", websocket.New(h.handleDetector))
	app.Get("/ws/detector/:id", websocket.New(h.handleDetector))
}

// handleDetector handles a detector WebSocket connection.
func (h *Hub) handleDetector(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	det := &DetectorConnection{
		ID:        id,
		Conn:      c,
		Connected: now,
		LastSeen:  now,
		limiter:   rate.NewLimiter(rate.Limit(h.cfg.MaxFPS), burstFor(h.cfg.MaxFPS)),
	}

	h.mu.Lock()
	h.detectors[id] = det
	count := len(h.detectors)
	h.mu.Unlock()

	h.logger.Info("detector connected", "id", id, "total", count)

	defer func() {
		h.mu.Lock()
		if h.detectors[id] == det {
			delete(h.detectors, id)
		}
		count := len(h.detectors)
		h.mu.Unlock()

		h.logger.Info("detector disconnected", "id", id, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("detector read error", "id", id, "error", err)
			return
		}

		det.mu.Lock()
		det.LastSeen = time.Now()
		det.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(det, data)
	}
}

// burstFor allows a tenth of a second of frames to arrive together.
func burstFor(fps float64) int {
	b := int(fps / 10)
	if b < 1 {
		return 1
	}
	return b
}

// handleMessage processes an incoming message from a detector.
func (h *Hub) handleMessage(det *DetectorConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Debug("parse error", "id", det.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeLandmarks:
		if !det.limiter.Allow() {
			h.framesDropped.Add(1)
			return
		}
		lms, err := msg.GetLandmarksData()
		if err != nil {
			h.logger.Debug("bad landmarks payload", "id", det.ID, "error", err)
			return
		}
		h.accept(det, lms)

	case protocol.TypePing:
		if err := h.SendPong(det.ID, msg.Timestamp); err != nil {
			h.logger.Debug("pong failed", "id", det.ID, "error", err)
		}
	}
}

// accept stores a frame as the latest and notifies the frame callback.
func (h *Hub) accept(det *DetectorConnection, lms *protocol.LandmarksData) {
	h.framesReceived.Add(1)

	det.mu.Lock()
	det.Frames++
	det.mu.Unlock()

	h.frameMu.Lock()
	h.seq++
	f := Frame{
		Seq:      h.seq,
		Detector: det.ID,
		FrameID:  lms.FrameID,
		Set:      lms.Set(),
		Received: time.Now(),
	}
	h.latest = f
	h.frameMu.Unlock()

	h.mu.RLock()
	cb := h.onFrame
	h.mu.RUnlock()
	if cb != nil {
		cb(f)
	}
}

// Latest returns the most recent frame from any detector.
// ok is false until the first frame arrives.
func (h *Hub) Latest() (f Frame, ok bool) {
	h.frameMu.Lock()
	defer h.frameMu.Unlock()
	return h.latest, h.seq > 0
}

// SendPong sends a pong response to a detector.
func (h *Hub) SendPong(detectorID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage(pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToDetector(detectorID, msg)
}

// sendToDetector sends a message to a specific detector.
func (h *Hub) sendToDetector(detectorID string, msg *protocol.Message) error {
	h.mu.RLock()
	det, ok := h.detectors[detectorID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "detector not connected")
	}

	h.messagesSent.Add(1)
	return det.Send(msg)
}

// GetDetector returns a detector connection by ID.
func (h *Hub) GetDetector(detectorID string) *DetectorConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.detectors[detectorID]
}

// DetectorCount returns the number of connected detectors.
func (h *Hub) DetectorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.detectors)
}

// Stats contains hub statistics.
type Stats struct {
	DetectorCount    int    `json:"detector_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesDropped    uint64 `json:"frames_dropped"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		DetectorCount:    h.DetectorCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		FramesDropped:    h.framesDropped.Load(),
	}
}

// DetectorInfo contains info about a connected detector.
type DetectorInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Frames    uint64    `json:"frames"`
}

// GetDetectorInfos returns info about all connected detectors.
func (h *Hub) GetDetectorInfos() []DetectorInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]DetectorInfo, 0, len(h.detectors))
	for _, d := range h.detectors {
		d.mu.Lock()
		infos = append(infos, DetectorInfo{
			ID:        d.ID,
			Connected: d.Connected,
			LastSeen:  d.LastSeen,
			Frames:    d.Frames,
		})
		d.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for detector inspection.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	detectors := api.Group("/detectors")

	detectors.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"detectors": h.GetDetectorInfos(),
			"count":     h.DetectorCount(),
		})
	})

	detectors.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
