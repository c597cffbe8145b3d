package web

import (
	"time"

	"github.com/google/uuid"

	"flightcore/internal/autopilot"
)

// TelemetryCounters reports downlink health.
type TelemetryCounters interface {
	Counters() (sent, errs uint64)
}

type Status struct {
	session uuid.UUID
	start   time.Time

	ahrs      AHRSController
	view      autopilot.View
	telemetry TelemetryCounters
	telemDest string
}

func NewStatus(session uuid.UUID, ahrsCtl AHRSController, view autopilot.View) *Status {
	return &Status{session: session, start: time.Now().UTC(), ahrs: ahrsCtl, view: view}
}

// SetTelemetry attaches the downlink counters shown in the status.
func (s *Status) SetTelemetry(dest string, c TelemetryCounters) {
	s.telemDest = dest
	s.telemetry = c
}

type PoseJSON struct {
	Position  [3]float64 `json:"position"`
	Velocity  [3]float64 `json:"velocity"`
	UpdatedAt string     `json:"updated_at,omitempty"`
}

type SetpointJSON struct {
	Position     [3]float64 `json:"position"`
	Velocity     [3]float64 `json:"velocity"`
	Acceleration [3]float64 `json:"acceleration"`
	HeadingDeg   float64    `json:"heading_deg"`
}

type GeofenceJSON struct {
	Enable  bool       `json:"enable"`
	Origin  [3]float64 `json:"origin"`
	LX      float64    `json:"lx"`
	LY      float64    `json:"ly"`
	HeightM float64    `json:"height_m"`
}

type AutopilotSnapshot struct {
	Mode          autopilot.Mode          `json:"mode"`
	Armed         bool                    `json:"armed"`
	MotorLocked   bool                    `json:"motor_locked"`
	MotorsEnabled bool                    `json:"motors_enabled"`
	AutoFlight    bool                    `json:"auto_flight"`
	Pose          PoseJSON                `json:"pose"`
	Setpoint      SetpointJSON            `json:"setpoint"`
	Geofence      GeofenceJSON            `json:"geofence"`
	Mission       autopilot.MissionStatus `json:"mission"`
}

type TelemetrySnapshot struct {
	Dest       string `json:"dest"`
	FramesSent uint64 `json:"intervals_sent"`
	SendErrors uint64 `json:"send_errors"`
}

type StatusSnapshot struct {
	Service   string             `json:"service"`
	Session   string             `json:"session"`
	NowUTC    string             `json:"now_utc"`
	UptimeSec int64              `json:"uptime_sec"`
	Attitude  *AttitudeSnapshot  `json:"attitude,omitempty"`
	Autopilot *AutopilotSnapshot `json:"autopilot,omitempty"`
	Telemetry *TelemetrySnapshot `json:"telemetry,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	snap := StatusSnapshot{
		Service:   "flightcore",
		Session:   s.session.String(),
		NowUTC:    nowUTC.Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(s.start).Seconds()),
	}
	if s.ahrs != nil {
		att := attitudeFromSnapshot(s.ahrs.Snapshot())
		snap.Attitude = &att
	}
	if s.view != nil {
		ap := autopilotSnapshot(s.view)
		snap.Autopilot = &ap
	}
	if s.telemetry != nil {
		sent, errs := s.telemetry.Counters()
		snap.Telemetry = &TelemetrySnapshot{Dest: s.telemDest, FramesSent: sent, SendErrors: errs}
	}
	return snap
}

func autopilotSnapshot(v autopilot.View) AutopilotSnapshot {
	pose := v.Pose()
	sp := v.Setpoint()
	fence := v.Geofence()
	ap := AutopilotSnapshot{
		Mode:          v.Mode(),
		Armed:         v.Armed(),
		MotorLocked:   v.MotorLocked(),
		MotorsEnabled: v.MotorsEnabled(),
		AutoFlight:    v.IsAutoFlightMode(),
		Pose:          PoseJSON{Position: pose.Position, Velocity: pose.Velocity},
		Setpoint: SetpointJSON{
			Position:     sp.Position,
			Velocity:     sp.Velocity,
			Acceleration: sp.Acceleration,
			HeadingDeg:   sp.HeadingDeg,
		},
		Geofence: GeofenceJSON{
			Enable:  fence.Enable,
			Origin:  fence.Origin,
			LX:      fence.LX,
			LY:      fence.LY,
			HeightM: fence.Height,
		},
		Mission: v.Mission(),
	}
	if !pose.UpdatedAt.IsZero() {
		ap.Pose.UpdatedAt = pose.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return ap
}
