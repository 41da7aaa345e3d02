package posture

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Setting ranges.
const (
	MinSensitivity     = 5
	MaxSensitivity     = 20
	DefaultSensitivity = 8

	MinAlertDuration     = 1
	MaxAlertDuration     = 10
	DefaultAlertDuration = 3
)

// Defaults for the fixed parts of the state machine.
const (
	DefaultCalibrationWindow = 3 * time.Second
	DefaultBadFrameThreshold = 6
	DefaultBadSustain        = time.Second
	DefaultFrameRate         = 30.0
)

var settingRanges = map[string][2]int{
	"sensitivity_degrees":    {MinSensitivity, MaxSensitivity},
	"alert_duration_seconds": {MinAlertDuration, MaxAlertDuration},
}

// SettingRange returns the accepted range of a setting by its JSON name.
func SettingRange(field string) (min, max int, ok bool) {
	r, ok := settingRanges[field]
	return r[0], r[1], ok
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Settings is the runtime-adjustable configuration surface.
type Settings struct {
	// Maximum tolerated deviation from the baseline, in whole degrees.
	SensitivityDegrees int `json:"sensitivity_degrees" validate:"min=5,max=20"`

	// Minimum time between two alerts.
	AlertDurationSeconds int `json:"alert_duration_seconds" validate:"min=1,max=10"`
}

// DefaultSettings returns the startup settings.
func DefaultSettings() Settings {
	return Settings{
		SensitivityDegrees:   DefaultSensitivity,
		AlertDurationSeconds: DefaultAlertDuration,
	}
}

// AlertDuration returns the alert cooldown as a duration.
func (s Settings) AlertDuration() time.Duration {
	return time.Duration(s.AlertDurationSeconds) * time.Second
}

// Validate rejects out-of-range values. Values are never clamped.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		cerr := &ConfigError{Field: fe.Field(), Value: fe.Value()}
		if r, ok := settingRanges[fe.Field()]; ok {
			cerr.Min, cerr.Max = r[0], r[1]
		}
		return cerr
	}
	return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
}

// Config holds everything needed to construct a Monitor.
type Config struct {
	Settings Settings

	// CalibrationWindow is how long a capture window stays open.
	CalibrationWindow time.Duration

	// BadFrameThreshold is the number of consecutive bad frames that must be
	// exceeded before an alert may fire.
	BadFrameThreshold int

	// BadSustain, when non-zero, expresses the threshold as a duration of
	// sustained bad posture. The frame count is then derived from the
	// measured frame cadence (NominalFrameRate until measured).
	BadSustain time.Duration

	// NominalFrameRate is the expected input cadence in frames per second.
	NominalFrameRate float64
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		Settings:          DefaultSettings(),
		CalibrationWindow: DefaultCalibrationWindow,
		BadFrameThreshold: DefaultBadFrameThreshold,
		NominalFrameRate:  DefaultFrameRate,
	}
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.CalibrationWindow <= 0 {
		return &ConfigError{Field: "calibration_window", Value: c.CalibrationWindow}
	}
	if c.BadFrameThreshold < 1 {
		return &ConfigError{Field: "bad_frame_threshold", Value: c.BadFrameThreshold}
	}
	if c.BadSustain < 0 {
		return &ConfigError{Field: "bad_sustain", Value: c.BadSustain}
	}
	if c.NominalFrameRate <= 0 {
		return &ConfigError{Field: "nominal_frame_rate", Value: c.NominalFrameRate}
	}
	return nil
}
