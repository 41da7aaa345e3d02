package pose

import (
	"errors"
	"fmt"
	"strings"
)

// HeadForwardMargin is how far (normalized x) the ear midpoint must lead the
// shoulder midpoint before the head counts as pushed forward.
const HeadForwardMargin = 0.05

// ErrMissingLandmarks is returned when a frame lacks usable landmarks.
// It is a per-frame condition, not a failure of the pipeline.
var ErrMissingLandmarks = errors.New("pose: missing landmarks")

// Signature summarizes a posture. It is an immutable value.
type Signature struct {
	ShoulderSlope float64 `json:"shoulder_slope"` // degrees, 0-180
	NeckAngle     float64 `json:"neck_angle"`     // degrees, 0-180
	HeadForward   bool    `json:"head_forward"`
}

// String implements fmt.Stringer.
func (s Signature) String() string {
	return fmt.Sprintf("shoulder=%.1f° neck=%.1f° head_forward=%v", s.ShoulderSlope, s.NeckAngle, s.HeadForward)
}

// ComputeSignature derives a posture signature from a landmark set.
// Both shoulders, ears and hips must be present with finite coordinates,
// and the midpoints must not coincide; otherwise ErrMissingLandmarks is returned.
func ComputeSignature(lms Set) (Signature, error) {
	if missing := lms.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, n := range missing {
			names[i] = string(n)
		}
		return Signature{}, fmt.Errorf("%w: %s", ErrMissingLandmarks, strings.Join(names, ", "))
	}

	leftShoulder := lms[LeftShoulder].Point
	rightShoulder := lms[RightShoulder].Point

	ear := Midpoint(lms[LeftEar].Point, lms[RightEar].Point)
	shoulder := Midpoint(leftShoulder, rightShoulder)
	hip := Midpoint(lms[LeftHip].Point, lms[RightHip].Point)

	switch {
	case coincident(leftShoulder, rightShoulder):
		return Signature{}, fmt.Errorf("%w: degenerate shoulders", ErrMissingLandmarks)
	case coincident(shoulder, ear):
		return Signature{}, fmt.Errorf("%w: degenerate ear/shoulder", ErrMissingLandmarks)
	case coincident(shoulder, hip):
		return Signature{}, fmt.Errorf("%w: degenerate hip/shoulder", ErrMissingLandmarks)
	}

	return Signature{
		ShoulderSlope: Slope(leftShoulder, rightShoulder),
		NeckAngle:     AngleBetween(hip, shoulder, ear),
		HeadForward:   ear.X > shoulder.X+HeadForwardMargin,
	}, nil
}
