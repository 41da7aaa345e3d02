package posture

import (
	"math"
	"time"
)

// cadenceSmoothing is the EMA weight given to each new frame interval.
const cadenceSmoothing = 0.2

// Decision is the debouncer's verdict for one frame.
type Decision struct {
	Class Classification
	Count int  // consecutive bad frames, including this one
	Fire  bool // an alert should be raised now
}

// Debouncer turns a stream of classifications into rate-limited alerts.
//
// Good frames reset the consecutive bad count, Unknown frames leave it
// untouched. An alert fires when the count exceeds the threshold and the
// cooldown since the previous alert has elapsed. Firing does not reset the
// count, so a continuous bad run keeps re-qualifying once the cooldown ends.
type Debouncer struct {
	threshold   int
	sustain     time.Duration
	nominalRate float64
	cooldown    time.Duration

	count     int
	lastAlert time.Time
	alerted   bool

	// Cadence measurement
	lastFrame time.Time
	interval  time.Duration
}

// NewDebouncer creates a debouncer from the monitor configuration.
func NewDebouncer(cfg Config) *Debouncer {
	return &Debouncer{
		threshold:   cfg.BadFrameThreshold,
		sustain:     cfg.BadSustain,
		nominalRate: cfg.NominalFrameRate,
		cooldown:    cfg.Settings.AlertDuration(),
	}
}

// Observe feeds one classification observed at now.
func (d *Debouncer) Observe(c Classification, now time.Time) Decision {
	d.measure(now)

	switch c {
	case Good:
		d.count = 0
	case Bad:
		d.count++
		if d.count > d.Threshold() && d.cooledDown(now) {
			d.lastAlert = now
			d.alerted = true
			return Decision{Class: c, Count: d.count, Fire: true}
		}
	}
	return Decision{Class: c, Count: d.count}
}

// cooledDown reports whether enough time has passed since the last alert.
// An alert exactly at the boundary is allowed.
func (d *Debouncer) cooledDown(now time.Time) bool {
	return !d.alerted || now.Sub(d.lastAlert) >= d.cooldown
}

// measure updates the smoothed frame interval.
func (d *Debouncer) measure(now time.Time) {
	if !d.lastFrame.IsZero() {
		dt := now.Sub(d.lastFrame)
		if dt > 0 {
			if d.interval == 0 {
				d.interval = dt
			} else {
				d.interval = time.Duration(float64(d.interval)*(1-cadenceSmoothing) + float64(dt)*cadenceSmoothing)
			}
		}
	}
	d.lastFrame = now
}

// Threshold returns the number of consecutive bad frames that must be exceeded.
func (d *Debouncer) Threshold() int {
	if d.sustain <= 0 {
		return d.threshold
	}
	return FramesFor(d.sustain, d.FrameRate())
}

// FrameRate returns the measured cadence, or the nominal rate before any
// interval has been measured.
func (d *Debouncer) FrameRate() float64 {
	if d.interval <= 0 {
		return d.nominalRate
	}
	return float64(time.Second) / float64(d.interval)
}

// FramesFor converts a sustain duration into a frame count at the given rate.
// The result is at least 1.
func FramesFor(sustain time.Duration, fps float64) int {
	n := int(math.Round(sustain.Seconds() * fps))
	if n < 1 {
		return 1
	}
	return n
}

// SetCooldown changes the minimum time between alerts.
func (d *Debouncer) SetCooldown(cooldown time.Duration) {
	d.cooldown = cooldown
}

// Count returns the current consecutive bad count.
func (d *Debouncer) Count() int {
	return d.count
}

// LastAlert returns when the last alert fired, if ever.
func (d *Debouncer) LastAlert() (time.Time, bool) {
	return d.lastAlert, d.alerted
}

// Reset clears the bad count and cadence measurement.
// The cooldown survives so a restart cannot be used to bypass it.
func (d *Debouncer) Reset() {
	d.count = 0
	d.lastFrame = time.Time{}
	d.interval = 0
}
