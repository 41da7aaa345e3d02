package posture

import (
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-posture/pkg/pose"
)

// BaselineStrategy decides which signatures seen during a capture window
// make up the baseline.
type BaselineStrategy interface {
	// Reset discards everything offered so far.
	Reset()
	// Offer submits a valid signature observed during the window.
	Offer(sig pose.Signature)
	// Baseline returns the current baseline, if any.
	Baseline() (pose.Signature, bool)
}

// FirstWins adopts the first valid signature of the window and ignores the rest.
// Calibration quality equals that single frame's quality, so the subject
// should hold still while capturing.
type FirstWins struct {
	sig pose.Signature
	ok  bool
}

// Reset implements BaselineStrategy.
func (f *FirstWins) Reset() {
	f.sig = pose.Signature{}
	f.ok = false
}

// Offer implements BaselineStrategy.
func (f *FirstWins) Offer(sig pose.Signature) {
	if !f.ok {
		f.sig = sig
		f.ok = true
	}
}

// Baseline implements BaselineStrategy.
func (f *FirstWins) Baseline() (pose.Signature, bool) {
	return f.sig, f.ok
}

// CalibrationResult reports how a capture window ended.
type CalibrationResult struct {
	Session  string         `json:"session"`
	Success  bool           `json:"success"`
	Baseline pose.Signature `json:"baseline"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Err      error          `json:"-"`
}

// Calibrator captures the reference baseline during a timed window.
// It is not safe for concurrent use; Monitor serializes access.
type Calibrator struct {
	strategy BaselineStrategy
	window   time.Duration

	session   string
	startedAt time.Time

	baseline    pose.Signature
	hasBaseline bool
}

// NewCalibrator creates a calibrator. A nil strategy means FirstWins.
func NewCalibrator(window time.Duration, strategy BaselineStrategy) *Calibrator {
	if strategy == nil {
		strategy = &FirstWins{}
	}
	return &Calibrator{
		strategy: strategy,
		window:   window,
	}
}

// Start opens a new capture window, clearing any existing baseline.
// It returns the session ID.
func (c *Calibrator) Start(now time.Time) string {
	c.strategy.Reset()
	c.baseline = pose.Signature{}
	c.hasBaseline = false
	c.session = uuid.New().String()
	c.startedAt = now
	return c.session
}

// Offer submits a signature observed during the window.
func (c *Calibrator) Offer(sig pose.Signature) {
	c.strategy.Offer(sig)
	c.baseline, c.hasBaseline = c.strategy.Baseline()
}

// Finish closes the window.
func (c *Calibrator) Finish(now time.Time) CalibrationResult {
	res := CalibrationResult{
		Session:  c.session,
		Started:  c.startedAt,
		Finished: now,
	}
	if !c.hasBaseline {
		res.Err = ErrCalibrationTimeout
		return res
	}
	res.Success = true
	res.Baseline = c.baseline
	return res
}

// Abort discards an open window and whatever it captured.
func (c *Calibrator) Abort() {
	c.strategy.Reset()
	c.baseline = pose.Signature{}
	c.hasBaseline = false
}

// Baseline returns the captured baseline, if any.
func (c *Calibrator) Baseline() (pose.Signature, bool) {
	return c.baseline, c.hasBaseline
}

// Session returns the ID of the latest capture window.
func (c *Calibrator) Session() string {
	return c.session
}
