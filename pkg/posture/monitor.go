// Package posture implements posture monitoring: baseline calibration,
// deviation scoring against the baseline, and debounced alerting.
package posture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-posture/pkg/debug"
	"github.com/teslashibe/go-posture/pkg/pose"
)

// Alert is raised when bad posture has persisted past the threshold.
type Alert struct {
	At time.Time `json:"at"`
}

// Outcome describes what one frame did to the monitor.
type Outcome struct {
	State      State           `json:"state"`
	Class      Classification  `json:"class"`
	Status     Status          `json:"status"`
	Signature  *pose.Signature `json:"signature,omitempty"`
	Assessment *Assessment     `json:"assessment,omitempty"`
	Alert      *Alert          `json:"alert,omitempty"`
}

// Snapshot is a point-in-time view of the monitor.
type Snapshot struct {
	State     State           `json:"state"`
	Status    Status          `json:"status"`
	Settings  Settings        `json:"settings"`
	Baseline  *pose.Signature `json:"baseline,omitempty"`
	Session   string          `json:"session,omitempty"`
	BadCount  int             `json:"bad_count"`
	Threshold int             `json:"threshold"`
	FrameRate float64         `json:"frame_rate"`
	LastAlert *time.Time      `json:"last_alert,omitempty"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithStrategy replaces the FirstWins baseline policy.
func WithStrategy(s BaselineStrategy) Option {
	return func(m *Monitor) {
		m.strategy = s
	}
}

// Monitor is the posture state machine.
//
// Frames and the calibration deadline arrive from different goroutines;
// both go through mu, so checking and setting the baseline is one critical
// section. Callbacks run after mu is released.
type Monitor struct {
	cfg      Config
	clock    Clock
	logger   *slog.Logger
	strategy BaselineStrategy

	mu         sync.Mutex
	state      State
	status     Status
	calib      *Calibrator
	debounce   *Debouncer
	deadline   Timer
	generation uint64

	onAlert       func(Alert)
	onStatus      func(Status)
	onCalibration func(CalibrationResult)
}

// New creates a monitor in the Idle state.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:    cfg,
		clock:  SystemClock(),
		logger: slog.Default(),
		status: NewStatus(StatusAwaiting, 0),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.calib = NewCalibrator(cfg.CalibrationWindow, m.strategy)
	m.debounce = NewDebouncer(cfg)
	return m, nil
}

// OnAlert sets the callback for alerts.
func (m *Monitor) OnAlert(callback func(Alert)) {
	m.mu.Lock()
	m.onAlert = callback
	m.mu.Unlock()
}

// OnStatus sets the callback for status changes.
func (m *Monitor) OnStatus(callback func(Status)) {
	m.mu.Lock()
	m.onStatus = callback
	m.mu.Unlock()
}

// OnCalibration sets the callback for finished capture windows.
func (m *Monitor) OnCalibration(callback func(CalibrationResult)) {
	m.mu.Lock()
	m.onCalibration = callback
	m.mu.Unlock()
}

// events collects callbacks to run once mu is released.
type events struct {
	status      *Status
	alert       *Alert
	calibration *CalibrationResult

	onAlert       func(Alert)
	onStatus      func(Status)
	onCalibration func(CalibrationResult)
}

func (m *Monitor) eventsLocked() events {
	return events{
		onAlert:       m.onAlert,
		onStatus:      m.onStatus,
		onCalibration: m.onCalibration,
	}
}

func (e events) dispatch() {
	if e.calibration != nil && e.onCalibration != nil {
		e.onCalibration(*e.calibration)
	}
	if e.status != nil && e.onStatus != nil {
		e.onStatus(*e.status)
	}
	if e.alert != nil && e.onAlert != nil {
		e.onAlert(*e.alert)
	}
}

// setStatusLocked records a new status and queues it for dispatch.
func (m *Monitor) setStatusLocked(ev *events, s Status) {
	m.status = s
	ev.status = &s
}

// StartCalibration opens a capture window, clearing any existing baseline.
// Calling it while already calibrating restarts the window.
// It returns the calibration session ID.
func (m *Monitor) StartCalibration() string {
	m.mu.Lock()
	ev := m.eventsLocked()

	m.cancelDeadlineLocked()
	session := m.calib.Start(m.clock.Now())
	m.state = Calibrating
	m.debounce.Reset()

	gen := m.generation
	m.deadline = m.clock.AfterFunc(m.cfg.CalibrationWindow, func() {
		m.finishCalibration(gen)
	})
	m.setStatusLocked(&ev, NewStatus(StatusCapturing, 0))
	m.mu.Unlock()

	m.logger.Info("calibration started", "session", session, "window", m.cfg.CalibrationWindow)
	ev.dispatch()
	return session
}

// finishCalibration closes the capture window started in generation gen.
// A deadline from an older generation is ignored.
func (m *Monitor) finishCalibration(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != Calibrating {
		m.mu.Unlock()
		m.logger.Debug("stale calibration deadline ignored")
		return
	}
	ev := m.eventsLocked()

	m.deadline = nil
	m.generation++
	res := m.calib.Finish(m.clock.Now())
	if res.Success {
		m.state = Monitoring
		m.debounce.Reset()
		m.setStatusLocked(&ev, NewStatus(StatusCalibrated, 0))
	} else {
		m.state = Idle
		m.setStatusLocked(&ev, NewStatus(StatusAwaiting, 0))
	}
	ev.calibration = &res
	m.mu.Unlock()

	if res.Success {
		m.logger.Info("calibration complete", "session", res.Session, "baseline", res.Baseline.String())
	} else {
		m.logger.Warn("calibration failed", "session", res.Session, "error", res.Err)
	}
	ev.dispatch()
}

// cancelDeadlineLocked stops any pending capture deadline and invalidates
// callbacks that already fired but have not yet acquired mu.
func (m *Monitor) cancelDeadlineLocked() {
	if m.deadline != nil {
		m.deadline.Stop()
		m.deadline = nil
	}
	m.generation++
}

// Stop returns to Idle from any state. An open capture window is discarded;
// a completed baseline is kept for Resume.
func (m *Monitor) Stop() {
	m.mu.Lock()
	ev := m.eventsLocked()

	m.cancelDeadlineLocked()
	if m.state == Calibrating {
		m.calib.Abort()
	}
	prev := m.state
	m.state = Idle
	m.debounce.Reset()
	m.setStatusLocked(&ev, NewStatus(StatusAwaiting, 0))
	m.mu.Unlock()

	m.logger.Info("monitoring stopped", "from", prev.String())
	ev.dispatch()
}

// Resume re-enters Monitoring with the retained baseline.
func (m *Monitor) Resume() error {
	m.mu.Lock()
	switch {
	case m.state == Monitoring:
		m.mu.Unlock()
		return nil
	case m.state == Calibrating:
		m.mu.Unlock()
		return ErrCalibrationInProgress
	}
	if _, ok := m.calib.Baseline(); !ok {
		m.mu.Unlock()
		return ErrNotCalibrated
	}
	ev := m.eventsLocked()
	m.state = Monitoring
	m.debounce.Reset()
	m.setStatusLocked(&ev, NewStatus(StatusCalibrated, 0))
	m.mu.Unlock()

	m.logger.Info("monitoring resumed")
	ev.dispatch()
	return nil
}

// ProcessFrame runs one tick. A nil or incomplete set means no person was detected.
func (m *Monitor) ProcessFrame(lms pose.Set) Outcome {
	sig, sigErr := pose.ComputeSignature(lms)

	m.mu.Lock()
	ev := m.eventsLocked()
	now := m.clock.Now()
	out := Outcome{State: m.state}

	if sigErr != nil {
		out.Class = Unknown
		if m.state == Monitoring {
			m.debounce.Observe(Unknown, now)
		}
		m.setStatusLocked(&ev, NewStatus(StatusNoPerson, 0))
		out.Status = m.status
		m.mu.Unlock()

		debug.TrackLog("👤 No person detected: %v\n", sigErr)
		ev.dispatch()
		return out
	}
	out.Signature = &sig

	switch m.state {
	case Idle:
		m.setStatusLocked(&ev, NewStatus(StatusAwaiting, 0))

	case Calibrating:
		m.calib.Offer(sig)
		m.setStatusLocked(&ev, NewStatus(StatusCapturing, 0))

	case Monitoring:
		baseline, _ := m.calib.Baseline()
		a := Assess(sig, baseline, m.cfg.Settings.SensitivityDegrees)
		out.Class = a.Class
		out.Assessment = &a

		debug.TrackLog("Shoulder diff: %.1f° | Neck diff: %.1f° | Sensitivity: %d°\n",
			a.ShoulderDiff, a.NeckDiff, m.cfg.Settings.SensitivityDegrees)

		d := m.debounce.Observe(a.Class, now)
		if d.Class == Bad {
			m.setStatusLocked(&ev, NewStatus(StatusBad, d.Count))
		} else {
			m.setStatusLocked(&ev, NewStatus(StatusGood, 0))
		}
		if d.Fire {
			alert := Alert{At: now}
			out.Alert = &alert
			ev.alert = &alert
		}
	}
	out.Status = m.status
	m.mu.Unlock()

	if out.Alert != nil {
		m.logger.Info("posture alert", "bad_count", out.Status.Count)
	}
	ev.dispatch()
	return out
}

// Settings returns the current settings.
func (m *Monitor) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Settings
}

// UpdateSettings validates and applies new settings.
// Out-of-range values are rejected and nothing changes.
func (m *Monitor) UpdateSettings(s Settings) error {
	return m.UpdateSettingsFunc(func(cur *Settings) { *cur = s })
}

// UpdateSettingsFunc applies update to a copy of the current settings under
// the monitor lock, so concurrent partial updates never overwrite each other.
// The result is validated before it replaces the current settings.
func (m *Monitor) UpdateSettingsFunc(update func(*Settings)) error {
	m.mu.Lock()
	s := m.cfg.Settings
	update(&s)
	if err := s.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.cfg.Settings = s
	m.debounce.SetCooldown(s.AlertDuration())
	m.mu.Unlock()

	m.logger.Info("settings updated",
		"sensitivity_degrees", s.SensitivityDegrees,
		"alert_duration_seconds", s.AlertDurationSeconds)
	return nil
}

// SetSensitivity changes the sensitivity in degrees (5-20).
func (m *Monitor) SetSensitivity(degrees int) error {
	return m.UpdateSettingsFunc(func(s *Settings) { s.SensitivityDegrees = degrees })
}

// SetAlertDuration changes the alert cooldown in seconds (1-10).
func (m *Monitor) SetAlertDuration(seconds int) error {
	return m.UpdateSettingsFunc(func(s *Settings) { s.AlertDurationSeconds = seconds })
}

// State returns the current mode.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the last emitted status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Baseline returns the captured baseline, if any.
func (m *Monitor) Baseline() (pose.Signature, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calib.Baseline()
}

// Snapshot returns a consistent view of the monitor.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:     m.state,
		Status:    m.status,
		Settings:  m.cfg.Settings,
		Session:   m.calib.Session(),
		BadCount:  m.debounce.Count(),
		Threshold: m.debounce.Threshold(),
		FrameRate: m.debounce.FrameRate(),
	}
	if b, ok := m.calib.Baseline(); ok {
		snap.Baseline = &b
	}
	if at, ok := m.debounce.LastAlert(); ok {
		snap.LastAlert = &at
	}
	return snap
}
