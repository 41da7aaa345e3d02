// Package config provides configuration helpers for go-posture commands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/teslashibe/go-posture/pkg/posture"
)

// Default service configuration.
const (
	DefaultPort          = 8080
	DefaultTickInterval  = 33 * time.Millisecond // ~30 FPS
	DefaultStaleAfter    = 500 * time.Millisecond
	DefaultMinVisibility = 0.5
	DefaultMaxIngestFPS  = 60
	DefaultAlertChannel  = "posture:alerts"
)

// Service is the full runtime configuration of the posture service.
type Service struct {
	Port     int
	LogLevel string
	LogFile  string

	Monitor posture.Config

	TickInterval  time.Duration
	StaleAfter    time.Duration
	MinVisibility float64
	MaxIngestFPS  float64

	RedisAddr    string
	AlertChannel string
}

// Default returns the service defaults.
func Default() Service {
	return Service{
		Port:          DefaultPort,
		LogLevel:      "info",
		Monitor:       posture.DefaultConfig(),
		TickInterval:  DefaultTickInterval,
		StaleAfter:    DefaultStaleAfter,
		MinVisibility: DefaultMinVisibility,
		MaxIngestFPS:  DefaultMaxIngestFPS,
		AlertChannel:  DefaultAlertChannel,
	}
}

// LoadDotEnv loads variables from the given .env files into the environment.
// Missing files are ignored; existing variables are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv returns the defaults overridden by environment variables.
//
//	PORT, LOG_LEVEL, LOG_FILE, REDIS_ADDR, POSTURE_ALERT_CHANNEL,
//	POSTURE_SENSITIVITY, POSTURE_ALERT_DURATION, POSTURE_CALIBRATION_WINDOW,
//	POSTURE_BAD_FRAMES, POSTURE_BAD_SUSTAIN, POSTURE_FRAME_RATE,
//	POSTURE_TICK_INTERVAL, POSTURE_STALE_AFTER, POSTURE_MIN_VISIBILITY,
//	POSTURE_MAX_INGEST_FPS
func FromEnv() (Service, error) {
	cfg := Default()
	e := &envReader{}

	e.int("PORT", &cfg.Port)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("LOG_FILE", &cfg.LogFile)
	e.str("REDIS_ADDR", &cfg.RedisAddr)
	e.str("POSTURE_ALERT_CHANNEL", &cfg.AlertChannel)

	e.int("POSTURE_SENSITIVITY", &cfg.Monitor.Settings.SensitivityDegrees)
	e.int("POSTURE_ALERT_DURATION", &cfg.Monitor.Settings.AlertDurationSeconds)
	e.duration("POSTURE_CALIBRATION_WINDOW", &cfg.Monitor.CalibrationWindow)
	e.int("POSTURE_BAD_FRAMES", &cfg.Monitor.BadFrameThreshold)
	e.duration("POSTURE_BAD_SUSTAIN", &cfg.Monitor.BadSustain)
	e.float("POSTURE_FRAME_RATE", &cfg.Monitor.NominalFrameRate)

	e.duration("POSTURE_TICK_INTERVAL", &cfg.TickInterval)
	e.duration("POSTURE_STALE_AFTER", &cfg.StaleAfter)
	e.float("POSTURE_MIN_VISIBILITY", &cfg.MinVisibility)
	e.float("POSTURE_MAX_INGEST_FPS", &cfg.MaxIngestFPS)

	if e.err != nil {
		return cfg, e.err
	}
	return cfg, cfg.Validate()
}

// Validate checks the service configuration, including the monitor's.
func (s Service) Validate() error {
	if err := s.Monitor.Validate(); err != nil {
		return err
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", s.Port)
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("config: tick interval must be positive, got %v", s.TickInterval)
	}
	if s.StaleAfter <= 0 {
		return fmt.Errorf("config: stale-after must be positive, got %v", s.StaleAfter)
	}
	if s.MinVisibility < 0 || s.MinVisibility > 1 {
		return fmt.Errorf("config: min visibility %v out of range [0, 1]", s.MinVisibility)
	}
	if s.MaxIngestFPS <= 0 {
		return fmt.Errorf("config: max ingest fps must be positive, got %v", s.MaxIngestFPS)
	}
	return nil
}

// envReader parses variables and keeps the first error.
type envReader struct {
	err error
}

func (e *envReader) str(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" || e.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = f
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = d
}
