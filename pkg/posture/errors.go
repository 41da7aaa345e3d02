package posture

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrInvalidConfiguration is returned when a setting is outside its documented range.
	ErrInvalidConfiguration = errors.New("posture: invalid configuration")

	// ErrCalibrationTimeout is reported when a capture window ends without a baseline.
	ErrCalibrationTimeout = errors.New("posture: calibration window elapsed without a valid signature")

	// ErrNotCalibrated is returned when monitoring is requested without a baseline.
	ErrNotCalibrated = errors.New("posture: no baseline captured")

	// ErrCalibrationInProgress is returned when an operation conflicts with an open capture window.
	ErrCalibrationInProgress = errors.New("posture: calibration in progress")
)

// ConfigError describes a rejected setting.
type ConfigError struct {
	Field string
	Value any
	Min   any
	Max   any
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Min == nil && e.Max == nil {
		return fmt.Sprintf("posture: invalid %s: %v", e.Field, e.Value)
	}
	return fmt.Sprintf("posture: %s=%v out of range [%v, %v]", e.Field, e.Value, e.Min, e.Max)
}

// Unwrap returns ErrInvalidConfiguration so callers can use errors.Is.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}
