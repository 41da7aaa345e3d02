// Package pipeline drives the posture monitor from a stream of detector
// frames: one tick per camera frame, at most one monitor call per tick.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-posture/pkg/pose"
	"github.com/teslashibe/go-posture/pkg/posture"
)

// Frame is one landmark set as seen by the runner. Seq must change
// whenever a new set arrives.
type Frame struct {
	Seq      uint64
	Set      pose.Set
	Received time.Time
}

// Source provides the most recent detector frame.
type Source interface {
	Latest() (Frame, bool)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func() (Frame, bool)

// Latest calls f.
func (f SourceFunc) Latest() (Frame, bool) {
	return f()
}

// Processor consumes one landmark set per frame.
type Processor interface {
	ProcessFrame(pose.Set) posture.Outcome
}

// Config holds pipeline configuration.
type Config struct {
	// TickInterval is how often the source is polled (~33ms for 30 FPS).
	TickInterval time.Duration

	// StaleAfter is how long without a new frame before the detector is
	// considered gone and "no person" is reported.
	StaleAfter time.Duration

	// MinVisibility drops landmarks the detector is less confident about.
	MinVisibility float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:  33 * time.Millisecond,
		StaleAfter:    500 * time.Millisecond,
		MinVisibility: 0.5,
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the time source used for staleness checks.
func WithClock(c posture.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Stats contains runner statistics.
type Stats struct {
	Ticks     uint64 `json:"ticks"`
	Processed uint64 `json:"processed"`
	Stale     uint64 `json:"stale"`
}

// Runner polls a Source and feeds new frames to a Processor.
// Tick is not safe for concurrent use; Run calls it from one goroutine.
type Runner struct {
	cfg    Config
	src    Source
	proc   Processor
	clock  posture.Clock
	logger *slog.Logger

	lastSeq uint64
	stale   bool

	onOutcome func(posture.Outcome)

	ticks     atomic.Uint64
	processed atomic.Uint64
	staled    atomic.Uint64
}

// New creates a runner.
func New(cfg Config, src Source, proc Processor, opts ...Option) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	r := &Runner{
		cfg:    cfg,
		src:    src,
		proc:   proc,
		clock:  posture.SystemClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnOutcome sets the callback invoked with every processed outcome.
// Set it before Run.
func (r *Runner) OnOutcome(callback func(posture.Outcome)) {
	r.onOutcome = callback
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	r.logger.Info("pipeline started", "tick", r.cfg.TickInterval, "stale_after", r.cfg.StaleAfter)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pipeline stopped", "processed", r.processed.Load())
			return ctx.Err()
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick processes the latest frame if it is new. When the source has gone
// quiet for longer than StaleAfter a single no-person frame is processed.
// It reports whether the processor was called.
func (r *Runner) Tick() (posture.Outcome, bool) {
	r.ticks.Add(1)

	f, ok := r.src.Latest()
	if ok && f.Seq != r.lastSeq {
		r.lastSeq = f.Seq
		r.stale = false

		set := f.Set
		if set != nil {
			set = set.Visible(r.cfg.MinVisibility)
		}
		return r.process(set), true
	}

	if r.stale {
		return posture.Outcome{}, false
	}
	if ok && r.clock.Now().Sub(f.Received) <= r.cfg.StaleAfter {
		return posture.Outcome{}, false
	}

	r.stale = true
	r.staled.Add(1)
	if ok {
		r.logger.Debug("detector frames stale", "last_frame", f.Received)
	}
	return r.process(nil), true
}

func (r *Runner) process(set pose.Set) posture.Outcome {
	out := r.proc.ProcessFrame(set)
	r.processed.Add(1)
	if r.onOutcome != nil {
		r.onOutcome(out)
	}
	return out
}

// GetStats returns runner statistics.
func (r *Runner) GetStats() Stats {
	return Stats{
		Ticks:     r.ticks.Load(),
		Processed: r.processed.Load(),
		Stale:     r.staled.Load(),
	}
}
