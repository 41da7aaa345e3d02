package posture

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-posture/pkg/pose"
)

// fakeClock fires AfterFunc callbacks synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()

	for _, f := range due {
		f()
	}
}

// pending returns the number of timers that have neither fired nor been stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(t *testing.T, cfg Config) (*Monitor, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	m, err := New(cfg, WithClock(clk), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return m, clk
}

// uprightSet is a subject sitting straight.
func uprightSet() pose.Set {
	return pose.Set{
		pose.LeftShoulder:  {Point: pose.Point{X: 0.4, Y: 0.5}},
		pose.RightShoulder: {Point: pose.Point{X: 0.6, Y: 0.5}},
		pose.LeftEar:       {Point: pose.Point{X: 0.45, Y: 0.3}},
		pose.RightEar:      {Point: pose.Point{X: 0.55, Y: 0.3}},
		pose.LeftHip:       {Point: pose.Point{X: 0.42, Y: 0.8}},
		pose.RightHip:      {Point: pose.Point{X: 0.58, Y: 0.8}},
	}
}

// leaningSet has the right shoulder raised about 26 degrees.
func leaningSet() pose.Set {
	lms := uprightSet()
	lms[pose.RightShoulder] = pose.Landmark{Point: pose.Point{X: 0.6, Y: 0.4}}
	return lms
}

// calibrated returns a monitor in Monitoring with the upright baseline.
func calibrated(t *testing.T, cfg Config) (*Monitor, *fakeClock) {
	t.Helper()
	m, clk := newTestMonitor(t, cfg)
	m.StartCalibration()
	m.ProcessFrame(uprightSet())
	clk.Advance(cfg.CalibrationWindow)
	if m.State() != Monitoring {
		t.Fatalf("State = %v, want monitoring after calibration", m.State())
	}
	return m, clk
}
