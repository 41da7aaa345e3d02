package ingest

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-posture/pkg/pose"
	"github.com/teslashibe/go-posture/pkg/protocol"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(Config{})

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.DetectorCount() != 0 {
		t.Error("DetectorCount should be 0 initially")
	}
	if hub.cfg.MaxFPS != DefaultMaxFPS {
		t.Errorf("MaxFPS = %v, want default %d", hub.cfg.MaxFPS, DefaultMaxFPS)
	}
	if _, ok := hub.Latest(); ok {
		t.Error("Latest should report no frame initially")
	}
}

func TestGetStats(t *testing.T) {
	hub := NewHub(DefaultConfig())

	stats := hub.GetStats()
	if stats.DetectorCount != 0 || stats.MessagesReceived != 0 || stats.FramesReceived != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestBurstFor(t *testing.T) {
	tests := []struct {
		fps  float64
		want int
	}{
		{1, 1},
		{30, 3},
		{60, 6},
	}
	for _, tt := range tests {
		if got := burstFor(tt.fps); got != tt.want {
			t.Errorf("burstFor(%v) = %d, want %d", tt.fps, got, tt.want)
		}
	}
}

func TestGetDetectorNotFound(t *testing.T) {
	hub := NewHub(DefaultConfig())

	if hub.GetDetector("nonexistent") != nil {
		t.Error("GetDetector should return nil for unknown detector")
	}
	if err := hub.SendPong("nonexistent", 0); err == nil {
		t.Error("SendPong should fail for unknown detector")
	}
}

func startServer(t *testing.T, hub *Hub, addr string) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	go app.Listen(addr)
	time.Sleep(100 * time.Millisecond)
	return app
}

func sendLandmarks(t *testing.T, ws *websocket.Conn, frameID uint64, set pose.Set) {
	t.Helper()
	msg, err := protocol.NewLandmarksMessage(frameID, set)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := msg.Bytes()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebSocketConnection(t *testing.T) {
	hub := NewHub(DefaultConfig())
	app := startServer(t, hub, ":18180")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18180/ws/detector/cam-1", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	if hub.DetectorCount() != 1 {
		t.Errorf("DetectorCount = %d, want 1", hub.DetectorCount())
	}
	if hub.GetDetector("cam-1") == nil {
		t.Error("GetDetector should return the connected detector")
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if hub.DetectorCount() != 0 {
		t.Errorf("DetectorCount = %d, want 0 after disconnect", hub.DetectorCount())
	}
}

func TestGeneratedDetectorID(t *testing.T) {
	hub := NewHub(DefaultConfig())
	app := startServer(t, hub, ":18181")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18181/ws/detector", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	infos := hub.GetDetectorInfos()
	if len(infos) != 1 {
		t.Fatalf("GetDetectorInfos() = %d entries, want 1", len(infos))
	}
	if len(infos[0].ID) != 36 {
		t.Errorf("generated ID %q should be a UUID", infos[0].ID)
	}
}

func TestLandmarksFrame(t *testing.T) {
	hub := NewHub(DefaultConfig())

	var frames atomic.Int32
	var gotDetector atomic.Value
	hub.OnFrame(func(f Frame) {
		gotDetector.Store(f.Detector)
		frames.Add(1)
	})

	app := startServer(t, hub, ":18182")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18182/ws/detector/frame-test", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	set := pose.Set{
		pose.LeftShoulder: {Point: pose.Point{X: 0.4, Y: 0.5}},
	}
	sendLandmarks(t, ws, 11, set)
	sendLandmarks(t, ws, 12, nil)

	time.Sleep(100 * time.Millisecond)

	if frames.Load() != 2 {
		t.Errorf("frame callback called %d times, want 2", frames.Load())
	}
	if gotDetector.Load() != "frame-test" {
		t.Errorf("detector = %v, want frame-test", gotDetector.Load())
	}

	f, ok := hub.Latest()
	if !ok {
		t.Fatal("Latest should report a frame")
	}
	if f.Seq != 2 || f.FrameID != 12 {
		t.Errorf("latest = seq %d frame %d, want seq 2 frame 12", f.Seq, f.FrameID)
	}
	if f.Set != nil {
		t.Error("not-detected frame should carry a nil set")
	}

	if stats := hub.GetStats(); stats.FramesReceived != 2 {
		t.Errorf("FramesReceived = %d, want 2", stats.FramesReceived)
	}
}

func TestRateLimit(t *testing.T) {
	hub := NewHub(Config{MaxFPS: 1})
	app := startServer(t, hub, ":18183")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18183/ws/detector/burst", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	for i := 0; i < 5; i++ {
		sendLandmarks(t, ws, uint64(i), nil)
	}
	time.Sleep(100 * time.Millisecond)

	stats := hub.GetStats()
	if stats.FramesReceived != 1 {
		t.Errorf("FramesReceived = %d, want 1", stats.FramesReceived)
	}
	if stats.FramesDropped != 4 {
		t.Errorf("FramesDropped = %d, want 4", stats.FramesDropped)
	}
}

func TestPingPong(t *testing.T) {
	hub := NewHub(DefaultConfig())
	app := startServer(t, hub, ":18184")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18184/ws/detector/ping-test", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	msg, _ := protocol.NewMessage(protocol.TypePing, nil)
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, respData, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}

	var resp protocol.Message
	json.Unmarshal(respData, &resp)

	if resp.Type != protocol.TypePong {
		t.Errorf("Type = %s, want pong", resp.Type)
	}
}

func TestAPIListDetectors(t *testing.T) {
	hub := NewHub(DefaultConfig())
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/detectors/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "detectors") {
		t.Error("Response should contain 'detectors' field")
	}
}

func TestAPIStats(t *testing.T) {
	hub := NewHub(DefaultConfig())
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/detectors/stats", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
}
