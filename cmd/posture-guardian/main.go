// posture-guardian: real-time posture monitoring service
// Receives pose landmarks from a detector, compares them against a
// calibrated baseline and raises alerts on sustained bad posture.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/teslashibe/go-posture/internal/config"
	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/debug"
	"github.com/teslashibe/go-posture/pkg/ingest"
	"github.com/teslashibe/go-posture/pkg/metrics"
	"github.com/teslashibe/go-posture/pkg/notify"
	"github.com/teslashibe/go-posture/pkg/pipeline"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/web"
)

var (
	version = "0.3.0"

	envFile       = flag.String("env", ".env", "Environment file to load (missing file is ignored)")
	port          = flag.Int("port", config.DefaultPort, "HTTP server port")
	debugFlag     = flag.Bool("debug", false, "Enable debug logging")
	debugFrames   = flag.Bool("debug-frames", false, "Print per-frame angle diffs (very verbose)")
	sensitivity   = flag.Int("sensitivity", posture.DefaultSensitivity, "Allowed deviation in degrees (5-20)")
	alertDuration = flag.Int("alert-duration", posture.DefaultAlertDuration, "Seconds between alerts (1-10)")
	badSustain    = flag.Duration("bad-sustain", 0, "Bad posture duration before alerting (0 = frame count)")
	calibrate     = flag.Bool("calibrate", false, "Start calibrating immediately")
	staticDir     = flag.String("static", "", "Directory served at / (dashboard assets)")
	redisAddr     = flag.String("redis", "", "Redis address for alert fan-out")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := cfg.LogLevel
	if *debugFlag {
		logLevel = "debug"
	}
	log.InitWithOptions(log.Options{Level: logLevel, File: cfg.LogFile})
	debug.Configure(*debugFlag, *debugFrames)

	fmt.Println()
	fmt.Println("🧍 Posture Guardian v" + version)
	fmt.Printf("   Sensitivity: %d° | Alert every %ds | Calibration window %v\n",
		cfg.Monitor.Settings.SensitivityDegrees,
		cfg.Monitor.Settings.AlertDurationSeconds,
		cfg.Monitor.CalibrationWindow)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Core
	monitor, err := posture.New(cfg.Monitor, posture.WithLogger(log.With("component", "posture")))
	if err != nil {
		return err
	}
	met := metrics.New()

	srv := web.NewServer(monitor, web.Config{
		StaticDir: *staticDir,
		Metrics:   met.Handler(),
		AccessLog: *debugFlag,
		Logger:    log.L(),
	})

	// Detector ingest
	detectors := ingest.NewHub(ingest.Config{
		MaxFPS: cfg.MaxIngestFPS,
		Logger: log.L(),
	})
	detectors.RegisterRoutes(srv.App())
	detectors.RegisterAPIRoutes(srv.API())
	detectors.OnFrame(func(ingest.Frame) {
		met.FramesIngested.Add(1)
	})

	met.GaugeFunc("detectors_connected", "Connected pose detectors", func() float64 {
		return float64(detectors.DetectorCount())
	})
	met.GaugeFunc("ingest_frames_dropped", "Detector frames dropped by the rate limit", func() float64 {
		return float64(detectors.GetStats().FramesDropped)
	})
	met.GaugeFunc("dashboard_clients", "Connected status stream clients", func() float64 {
		return float64(srv.StatusClients())
	})

	// Alert fan-out
	var alerts *notify.Async
	if cfg.RedisAddr != "" {
		pub, err := notify.NewRedis(ctx, notify.RedisConfig{
			Addr:    cfg.RedisAddr,
			Channel: cfg.AlertChannel,
			Logger:  log.L(),
		})
		if err != nil {
			log.Warn("alert fan-out disabled", "error", err)
		} else {
			if hist, err := pub.Recent(ctx, web.AlertHistorySize); err != nil {
				log.Warn("alert history unavailable", "error", err)
			} else {
				srv.SeedAlerts(hist)
				log.Info("alert history restored", "alerts", len(hist))
			}
			alerts = notify.NewAsync(pub, 16, func(err error) {
				met.AlertsFailed.Add(1)
				log.Warn("alert publish failed", "error", err)
			})
			defer alerts.Close()
		}
	}

	// Monitor callbacks
	var statusMu sync.Mutex
	var lastText string
	monitor.OnStatus(func(st posture.Status) {
		met.SetState(monitor.State())

		statusMu.Lock()
		changed := st.Text != lastText
		lastText = st.Text
		statusMu.Unlock()
		if changed {
			debug.Log("📋 Status: %s\n", st.Text)
		}
	})
	monitor.OnAlert(func(a posture.Alert) {
		data := srv.PublishAlert(a)
		log.Info("🚨 bad posture alert", "id", data.ID)
		if alerts != nil && !alerts.Send(data) {
			met.AlertsFailed.Add(1)
			log.Warn("alert queue full, dropping alert", "id", data.ID)
		}
	})
	monitor.OnCalibration(func(res posture.CalibrationResult) {
		met.ObserveCalibration(res)
		srv.PublishCalibration(res)
	})

	// Frame pipeline
	runner := pipeline.New(pipeline.Config{
		TickInterval:  cfg.TickInterval,
		StaleAfter:    cfg.StaleAfter,
		MinVisibility: cfg.MinVisibility,
	}, pipeline.SourceFunc(func() (pipeline.Frame, bool) {
		f, ok := detectors.Latest()
		return pipeline.Frame{Seq: f.Seq, Set: f.Set, Received: f.Received}, ok
	}), monitor, pipeline.WithLogger(log.With("component", "pipeline")))
	runner.OnOutcome(func(out posture.Outcome) {
		met.ObserveOutcome(out)
		srv.PublishOutcome(out)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()

	if *calibrate {
		monitor.StartCalibration()
	}

	log.Info("🚀 posture guardian ready",
		"dashboard", fmt.Sprintf("http://localhost:%d", cfg.Port),
		"detector", fmt.Sprintf("ws://localhost:%d/ws/detector", cfg.Port))

	err = srv.Run(ctx, fmt.Sprintf(":%d", cfg.Port))
	stop()
	wg.Wait()
	monitor.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server: %w", err)
	}

	log.Info("👋 shut down", "processed", runner.GetStats().Processed)
	return nil
}

// applyFlags overrides configuration with flags given on the command line.
func applyFlags(cfg *config.Service) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "sensitivity":
			cfg.Monitor.Settings.SensitivityDegrees = *sensitivity
		case "alert-duration":
			cfg.Monitor.Settings.AlertDurationSeconds = *alertDuration
		case "bad-sustain":
			cfg.Monitor.BadSustain = *badSustain
		case "redis":
			cfg.RedisAddr = *redisAddr
		}
	})
}
