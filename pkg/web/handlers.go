package web

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/protocol"
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	State     string                  `json:"state"`
	Status    protocol.StatusData     `json:"status"`
	Settings  protocol.SettingsData   `json:"settings"`
	Baseline  *protocol.SignatureData `json:"baseline,omitempty"`
	Session   string                  `json:"session,omitempty"`
	BadCount  int                     `json:"bad_count"`
	Threshold int                     `json:"threshold"`
	FrameRate float64                 `json:"frame_rate"`
	LastAlert *time.Time              `json:"last_alert,omitempty"`
}

// ConfigRequest is the body of PUT /api/config. Omitted fields keep their
// current value.
type ConfigRequest struct {
	SensitivityDegrees   *int `json:"sensitivity_degrees" validate:"omitempty,min=5,max=20"`
	AlertDurationSeconds *int `json:"alert_duration_seconds" validate:"omitempty,min=1,max=10"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Min   any    `json:"min,omitempty"`
	Max   any    `json:"max,omitempty"`
}

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

// errorHandler renders errors as JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	snap := s.ctrl.Snapshot()
	return c.JSON(fiber.Map{
		"status": "ok",
		"state":  snap.State.String(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// handleStatus returns the monitor's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap := s.ctrl.Snapshot()
	return c.JSON(StatusResponse{
		State:     snap.State.String(),
		Status:    statusData(snap.State, snap.Status),
		Settings:  settingsData(snap.Settings),
		Baseline:  baselineData(snap.Baseline),
		Session:   snap.Session,
		BadCount:  snap.BadCount,
		Threshold: snap.Threshold,
		FrameRate: snap.FrameRate,
		LastAlert: snap.LastAlert,
	})
}

// handleCalibrate opens a capture window
func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	session := s.ctrl.StartCalibration()
	s.PublishSnapshot()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"session": session,
		"state":   posture.Calibrating.String(),
	})
}

// handleStop stops monitoring
func (s *Server) handleStop(c *fiber.Ctx) error {
	s.ctrl.Stop()
	s.PublishSnapshot()
	return c.JSON(fiber.Map{"state": posture.Idle.String()})
}

// handleResume resumes monitoring with the retained baseline
func (s *Server) handleResume(c *fiber.Ctx) error {
	if err := s.ctrl.Resume(); err != nil {
		if errors.Is(err, posture.ErrNotCalibrated) || errors.Is(err, posture.ErrCalibrationInProgress) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
		}
		return err
	}
	s.PublishSnapshot()
	return c.JSON(fiber.Map{"state": posture.Monitoring.String()})
}

// handleGetConfig returns the runtime settings
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(settingsData(s.ctrl.Settings()))
}

// handleUpdateConfig applies new settings. Out-of-range values are
// rejected with 400 and nothing changes.
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	var req ConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid body: " + err.Error()})
	}

	if err := s.valid.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationError(err))
	}

	var settings posture.Settings
	err := s.ctrl.UpdateSettingsFunc(func(cur *posture.Settings) {
		if req.SensitivityDegrees != nil {
			cur.SensitivityDegrees = *req.SensitivityDegrees
		}
		if req.AlertDurationSeconds != nil {
			cur.AlertDurationSeconds = *req.AlertDurationSeconds
		}
		settings = *cur
	})
	if err != nil {
		var ce *posture.ConfigError
		if errors.As(err, &ce) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: err.Error(),
				Field: ce.Field,
				Min:   ce.Min,
				Max:   ce.Max,
			})
		}
		return err
	}

	data := settingsData(settings)
	s.broadcast(s.statusHub, protocol.TypeSettings, data)
	return c.JSON(data)
}

// handleGetAlerts returns recent alerts, newest first
func (s *Server) handleGetAlerts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", AlertHistorySize)
	alerts := s.Alerts(limit)
	return c.JSON(fiber.Map{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// handleStatusWS streams status, calibration and settings messages.
// The current status is sent on connect.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	snap := s.ctrl.Snapshot()
	var initial []byte
	if msg, err := protocol.NewStatusMessage(statusData(snap.State, snap.Status)); err == nil {
		initial, _ = msg.Bytes()
	}
	s.statusHub.Serve(c, initial)
}

// handleAlertsWS streams alerts
func (s *Server) handleAlertsWS(c *websocket.Conn) {
	s.alertHub.Serve(c, nil)
}

func settingsData(st posture.Settings) protocol.SettingsData {
	return protocol.SettingsData{
		SensitivityDegrees:   st.SensitivityDegrees,
		AlertDurationSeconds: st.AlertDurationSeconds,
	}
}

// validationError converts the first validator failure into a response.
func validationError(err error) ErrorResponse {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrorResponse{Error: err.Error()}
	}

	fe := verrs[0]
	resp := ErrorResponse{
		Error: "invalid configuration: " + fe.Field() + " failed " + fe.Tag() + "=" + fe.Param(),
		Field: fe.Field(),
	}
	if lo, hi, ok := posture.SettingRange(fe.Field()); ok {
		resp.Min, resp.Max = lo, hi
	}
	return resp
}
