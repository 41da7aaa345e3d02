// Package protocol defines the WebSocket message types exchanged with pose
// detector clients and dashboard clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Detector → Service messages
	TypeLandmarks MessageType = "landmarks" // Pose landmarks for one frame

	// Service → Dashboard messages
	TypeStatus      MessageType = "status"      // Status after a tick
	TypeAlert       MessageType = "alert"       // Posture alert fired
	TypeCalibration MessageType = "calibration" // Capture window finished
	TypeSettings    MessageType = "settings"    // Settings changed

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Detector → Service Message Types
// =============================================================================

// LandmarkData is one detected keypoint in normalized image coordinates.
type LandmarkData struct {
	Name       string  `json:"name,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility,omitempty"`
}

// LandmarksData carries the detector output for one frame.
// Landmarks are matched by name; Indexed holds the raw MediaPipe-ordered
// array for detectors that do not name their keypoints.
type LandmarksData struct {
	FrameID   uint64         `json:"frame_id,omitempty"`
	Detected  bool           `json:"detected"`
	Landmarks []LandmarkData `json:"landmarks,omitempty"`
	Indexed   []LandmarkData `json:"indexed,omitempty"`
}

// =============================================================================
// Service → Dashboard Message Types
// =============================================================================

// SignatureData is a posture signature.
type SignatureData struct {
	ShoulderSlope float64 `json:"shoulder_slope"`
	NeckAngle     float64 `json:"neck_angle"`
	HeadForward   bool    `json:"head_forward"`
}

// StatusData is emitted after each tick.
type StatusData struct {
	State        string  `json:"state"`
	Code         string  `json:"code"`
	Text         string  `json:"text"`
	Color        string  `json:"color"`
	Count        int     `json:"count,omitempty"`
	ShoulderDiff float64 `json:"shoulder_diff,omitempty"`
	NeckDiff     float64 `json:"neck_diff,omitempty"`
}

// AlertData announces a posture alert.
type AlertData struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

// CalibrationData reports the end of a capture window.
type CalibrationData struct {
	Session  string         `json:"session"`
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Baseline *SignatureData `json:"baseline,omitempty"`
}

// SettingsData is the runtime configuration surface.
type SettingsData struct {
	SensitivityDegrees   int `json:"sensitivity_degrees"`
	AlertDurationSeconds int `json:"alert_duration_seconds"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PongData contains pong response
type PongData struct {
	PingTS    int64 `json:"ping_ts"`
	PongTS    int64 `json:"pong_ts"`
	LatencyMs int64 `json:"latency_ms"`
}
