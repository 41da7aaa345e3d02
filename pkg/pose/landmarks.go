// Package pose provides the 2-D body landmark model and the geometry used
// to derive a posture signature from it.
package pose

import "math"

// Name identifies a body landmark.
type Name string

// Landmarks used for posture analysis.
const (
	LeftEar       Name = "left_ear"
	RightEar      Name = "right_ear"
	LeftShoulder  Name = "left_shoulder"
	RightShoulder Name = "right_shoulder"
	LeftHip       Name = "left_hip"
	RightHip      Name = "right_hip"
)

// MediaPipe pose landmark indices for the landmarks we care about.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
var mediaPipeIndex = map[int]Name{
	7:  LeftEar,
	8:  RightEar,
	11: LeftShoulder,
	12: RightShoulder,
	23: LeftHip,
	24: RightHip,
}

// Required lists the landmarks a signature cannot be computed without.
var Required = []Name{LeftShoulder, RightShoulder, LeftEar, RightEar, LeftHip, RightHip}

// Point is a 2-D point in normalized image coordinates (0-1).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether both coordinates are real numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Landmark is a detected keypoint.
// Visibility is the detector confidence (0-1); zero means not reported.
type Landmark struct {
	Point
	Visibility float64 `json:"visibility,omitempty"`
}

// Set holds the landmarks detected in a single frame.
type Set map[Name]Landmark

// FromMediaPipe builds a Set from a MediaPipe-ordered landmark slice.
// Indices we do not use are ignored; a short slice yields a partial set.
func FromMediaPipe(lms []Landmark) Set {
	set := make(Set, len(mediaPipeIndex))
	for idx, name := range mediaPipeIndex {
		if idx < len(lms) {
			set[name] = lms[idx]
		}
	}
	return set
}

// Visible returns a copy of the set without landmarks whose reported
// visibility is below min. Landmarks with no reported visibility are kept.
func (s Set) Visible(min float64) Set {
	if min <= 0 {
		return s
	}
	out := make(Set, len(s))
	for name, lm := range s {
		if lm.Visibility > 0 && lm.Visibility < min {
			continue
		}
		out[name] = lm
	}
	return out
}

// Missing returns the required landmarks absent from the set or carrying
// non-finite coordinates.
func (s Set) Missing() []Name {
	var missing []Name
	for _, name := range Required {
		lm, ok := s[name]
		if !ok || !lm.Finite() {
			missing = append(missing, name)
		}
	}
	return missing
}
