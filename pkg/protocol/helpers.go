package protocol

import (
	"github.com/teslashibe/go-posture/pkg/pose"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewLandmarksMessage creates a landmarks message from a named landmark set.
// A nil set means no person was detected.
func NewLandmarksMessage(frameID uint64, set pose.Set) (*Message, error) {
	data := LandmarksData{
		FrameID:  frameID,
		Detected: set != nil,
	}
	for name, lm := range set {
		data.Landmarks = append(data.Landmarks, LandmarkData{
			Name:       string(name),
			X:          lm.X,
			Y:          lm.Y,
			Visibility: lm.Visibility,
		})
	}
	return NewMessage(TypeLandmarks, data)
}

// NewStatusMessage creates a status message
func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewAlertMessage creates an alert message
func NewAlertMessage(alert AlertData) (*Message, error) {
	return NewMessage(TypeAlert, alert)
}

// NewCalibrationMessage creates a calibration result message
func NewCalibrationMessage(cal CalibrationData) (*Message, error) {
	return NewMessage(TypeCalibration, cal)
}

// NewPongMessage creates a pong message
func NewPongMessage(pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing message data
// =============================================================================

// GetLandmarksData extracts landmarks data from a message
func (m *Message) GetLandmarksData() (*LandmarksData, error) {
	var data LandmarksData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAlertData extracts alert data from a message
func (m *Message) GetAlertData() (*AlertData, error) {
	var data AlertData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Set converts the frame to a landmark set. It returns nil when no person
// was detected. Named landmarks take precedence over indexed ones.
func (d *LandmarksData) Set() pose.Set {
	if !d.Detected {
		return nil
	}

	var set pose.Set
	if len(d.Indexed) > 0 {
		lms := make([]pose.Landmark, len(d.Indexed))
		for i, l := range d.Indexed {
			lms[i] = l.landmark()
		}
		set = pose.FromMediaPipe(lms)
	} else {
		set = make(pose.Set, len(d.Landmarks))
	}

	for _, l := range d.Landmarks {
		if l.Name == "" {
			continue
		}
		set[pose.Name(l.Name)] = l.landmark()
	}
	return set
}

func (l LandmarkData) landmark() pose.Landmark {
	return pose.Landmark{
		Point:      pose.Point{X: l.X, Y: l.Y},
		Visibility: l.Visibility,
	}
}

// FromSignature converts a posture signature.
func FromSignature(sig pose.Signature) *SignatureData {
	return &SignatureData{
		ShoulderSlope: sig.ShoulderSlope,
		NeckAngle:     sig.NeckAngle,
		HeadForward:   sig.HeadForward,
	}
}
