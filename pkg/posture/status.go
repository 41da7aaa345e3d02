package posture

import "fmt"

// State is the monitor's top-level mode.
type State int

const (
	// Idle waits for a calibration request.
	Idle State = iota
	// Calibrating has a capture window open.
	Calibrating
	// Monitoring compares frames against the baseline.
	Monitoring
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Calibrating:
		return "calibrating"
	case Monitoring:
		return "monitoring"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusCode identifies an entry of the status vocabulary.
type StatusCode string

const (
	StatusAwaiting   StatusCode = "awaiting_calibration"
	StatusCapturing  StatusCode = "capturing"
	StatusCalibrated StatusCode = "calibrated"
	StatusGood       StatusCode = "good"
	StatusBad        StatusCode = "bad"
	StatusNoPerson   StatusCode = "no_person"
)

// Status is what the presentation layer shows after each tick.
type Status struct {
	Code  StatusCode `json:"code"`
	Text  string     `json:"text"`
	Color string     `json:"color"`
	Count int        `json:"count,omitempty"`
}

// NewStatus builds the status for a code. Count is only used by StatusBad.
func NewStatus(code StatusCode, count int) Status {
	s := Status{Code: code}
	switch code {
	case StatusCapturing:
		s.Text, s.Color = "capturing", "yellow"
	case StatusCalibrated:
		s.Text, s.Color = "calibrated, monitoring", "lightgreen"
	case StatusGood:
		s.Text, s.Color = "good posture", "lightgreen"
	case StatusBad:
		s.Text, s.Color = fmt.Sprintf("bad posture (count=%d)", count), "red"
		s.Count = count
	case StatusNoPerson:
		s.Text, s.Color = "no person detected", "white"
	default:
		s.Code = StatusAwaiting
		s.Text, s.Color = "awaiting calibration", "white"
	}
	return s
}
