package posture

import (
	"math"

	"github.com/teslashibe/go-posture/pkg/pose"
)

// Classification is the per-frame verdict.
type Classification int

const (
	// None means the frame was not evaluated (no baseline to compare with).
	None Classification = iota
	// Good posture, within sensitivity of the baseline.
	Good
	// Bad posture, deviating from the baseline.
	Bad
	// Unknown means no usable landmarks were found in the frame.
	Unknown
)

// String implements fmt.Stringer.
func (c Classification) String() string {
	switch c {
	case Good:
		return "good"
	case Bad:
		return "bad"
	case Unknown:
		return "unknown"
	default:
		return "none"
	}
}

// MarshalText encodes the classification by name.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Assessment is the detail behind a classification.
type Assessment struct {
	Class        Classification `json:"class"`
	ShoulderDiff float64        `json:"shoulder_diff"`
	NeckDiff     float64        `json:"neck_diff"`
	HeadForward  bool           `json:"head_forward"` // head moved forward relative to baseline
}

// Assess compares a live signature against the baseline.
func Assess(sig, baseline pose.Signature, sensitivityDegrees int) Assessment {
	a := Assessment{
		ShoulderDiff: math.Abs(sig.ShoulderSlope - baseline.ShoulderSlope),
		NeckDiff:     math.Abs(sig.NeckAngle - baseline.NeckAngle),
		HeadForward:  sig.HeadForward && !baseline.HeadForward,
	}

	limit := float64(sensitivityDegrees)
	if a.ShoulderDiff > limit || a.NeckDiff > limit || a.HeadForward {
		a.Class = Bad
	} else {
		a.Class = Good
	}
	return a
}

// Evaluate classifies a live signature as Good or Bad. It is deterministic.
func Evaluate(sig, baseline pose.Signature, sensitivityDegrees int) Classification {
	return Assess(sig, baseline, sensitivityDegrees).Class
}
