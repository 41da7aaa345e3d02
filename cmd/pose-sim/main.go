// pose-sim: synthetic pose detector
// Streams landmark frames to posture-guardian over WebSocket, cycling
// through upright, slouched and absent phases.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/pose"
	"github.com/teslashibe/go-posture/pkg/protocol"
)

var (
	url     = flag.String("url", "ws://localhost:8080/ws/detector/sim", "Detector endpoint")
	fps     = flag.Float64("fps", 30, "Frames per second")
	pattern = flag.String("pattern", "good:5s,bad:5s,away:2s", "Phases to cycle through (good|bad|away:duration)")
	jitter  = flag.Float64("jitter", 0.003, "Landmark noise in normalized units")
	logLvl  = flag.String("log", "info", "Log level")
)

type phase struct {
	kind string
	dur  time.Duration
}

func main() {
	flag.Parse()
	log.Init(*logLvl)

	phases, err := parsePattern(*pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ dial %s: %v\n", *url, err)
		os.Exit(1)
	}
	defer ws.Close()
	log.Info("🎥 streaming synthetic poses", "url", *url, "fps", *fps, "pattern", *pattern)

	// Drain pongs and detect disconnects.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				stop()
				return
			}
		}
	}()

	if err := stream(ctx, ws, phases); err != nil && ctx.Err() == nil {
		log.Error("stream failed", "error", err)
		os.Exit(1)
	}

	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func stream(ctx context.Context, ws *websocket.Conn, phases []phase) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / *fps))
	defer ticker.Stop()

	var frameID uint64
	idx := 0
	phaseEnd := time.Now().Add(phases[0].dur)
	log.Info("phase", "kind", phases[0].kind, "duration", phases[0].dur)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if now.After(phaseEnd) {
				idx = (idx + 1) % len(phases)
				phaseEnd = now.Add(phases[idx].dur)
				log.Info("phase", "kind", phases[idx].kind, "duration", phases[idx].dur)
			}

			frameID++
			msg, err := protocol.NewLandmarksMessage(frameID, frame(phases[idx].kind, *jitter))
			if err != nil {
				return err
			}
			data, err := msg.Bytes()
			if err != nil {
				return err
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

// frame builds a landmark set for the given phase.
func frame(kind string, noise float64) pose.Set {
	var set pose.Set
	switch kind {
	case "away":
		return nil
	case "bad":
		// Right shoulder dropped and head pushed forward.
		set = pose.Set{
			pose.LeftEar:       lm(0.60, 0.33),
			pose.RightEar:      lm(0.70, 0.35),
			pose.LeftShoulder:  lm(0.40, 0.50),
			pose.RightShoulder: lm(0.60, 0.58),
			pose.LeftHip:       lm(0.42, 0.80),
			pose.RightHip:      lm(0.58, 0.80),
		}
	default:
		set = pose.Set{
			pose.LeftEar:       lm(0.45, 0.30),
			pose.RightEar:      lm(0.55, 0.30),
			pose.LeftShoulder:  lm(0.40, 0.50),
			pose.RightShoulder: lm(0.60, 0.50),
			pose.LeftHip:       lm(0.42, 0.80),
			pose.RightHip:      lm(0.58, 0.80),
		}
	}

	for name, l := range set {
		l.X += (rand.Float64()*2 - 1) * noise
		l.Y += (rand.Float64()*2 - 1) * noise
		set[name] = l
	}
	return set
}

func lm(x, y float64) pose.Landmark {
	return pose.Landmark{Point: pose.Point{X: x, Y: y}, Visibility: 0.95}
}

func parsePattern(s string) ([]phase, error) {
	var phases []phase
	for _, part := range strings.Split(s, ",") {
		kind, durStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("invalid phase %q, want kind:duration", part)
		}
		switch kind {
		case "good", "bad", "away":
		default:
			return nil, fmt.Errorf("unknown phase kind %q", kind)
		}
		d, err := time.ParseDuration(durStr)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid duration in %q", part)
		}
		phases = append(phases, phase{kind: kind, dur: d})
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	return phases, nil
}
