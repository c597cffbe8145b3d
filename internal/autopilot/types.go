package autopilot

import (
	"math"
	"time"
)

// Pose is the measured vehicle state in ENU meters.
type Pose struct {
	Position  [3]float64
	Velocity  [3]float64
	UpdatedAt time.Time
}

// Setpoint is what the downstream controller tracks.
type Setpoint struct {
	Position     [3]float64
	Velocity     [3]float64
	Acceleration [3]float64
	HeadingDeg   float64
}

func (sp Setpoint) finite() bool {
	for _, v := range [][3]float64{sp.Position, sp.Velocity, sp.Acceleration} {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return !math.IsNaN(sp.HeadingDeg) && !math.IsInf(sp.HeadingDeg, 0)
}

// Geofence is an axis-aligned box. X and Y are centered on Origin; Z spans
// Origin[2] to Origin[2]+Height.
type Geofence struct {
	Enable bool
	Origin [3]float64
	LX     float64
	LY     float64
	Height float64
}

// Contains reports whether p is a legal position setpoint. A disabled fence
// accepts every finite position.
func (g Geofence) Contains(p [3]float64) bool {
	for _, x := range p {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	if !g.Enable {
		return true
	}
	if math.Abs(p[0]-g.Origin[0]) > g.LX/2 {
		return false
	}
	if math.Abs(p[1]-g.Origin[1]) > g.LY/2 {
		return false
	}
	return p[2] >= g.Origin[2] && p[2] <= g.Origin[2]+g.Height
}

// Floor is the lowest legal setpoint height; ok is false for a disabled
// fence.
func (g Geofence) Floor() (z float64, ok bool) {
	return g.Origin[2], g.Enable
}

// DefaultTouchRadius is used for waypoints added without one.
const DefaultTouchRadius = 0.1

// Waypoint is one mission entry. Latitude, Longitude, Altitude and Command
// mirror the mission protocol's item layout and are stored unmodified.
type Waypoint struct {
	Position    [3]float64
	HeadingDeg  float64
	Dwell       time.Duration
	TouchRadius float64

	Latitude  int32 // degrees * 1e7
	Longitude int32 // degrees * 1e7
	Altitude  float32
	Command   uint16
}

// TrajectorySegment holds polynomial coefficients in ascending powers of
// the time since the segment started.
type TrajectorySegment struct {
	X, Y, Z    [8]float64
	VX, VY, VZ [7]float64
	AX, AY, AZ [7]float64
	Yaw        [4]float64
	YawRate    [3]float64
	// FlightTime is the segment duration in seconds.
	FlightTime float64
}

// Limits are the takeoff and landing thresholds. Speeds are in m/s and
// heights in meters.
type Limits struct {
	TakeoffHeight      float64
	TakeoffSpeed       float64
	LandingSpeed       float64
	LandingAcceptLower float64
	LandingAcceptUpper float64
	// GroundThreshold is the altitude below which takeoff may be triggered.
	GroundThreshold float64
}

func DefaultLimits() Limits {
	return Limits{
		TakeoffHeight:      1.0,
		TakeoffSpeed:       0.32,
		LandingSpeed:       0.52,
		LandingAcceptLower: 0.10,
		LandingAcceptUpper: 0.12,
		GroundThreshold:    0.2,
	}
}

// MissionStatus summarizes both mission lists.
type MissionStatus struct {
	WaypointCount   int  `json:"waypoint_count"`
	WaypointIndex   int  `json:"waypoint_index"`
	Loop            bool `json:"loop"`
	Halted          bool `json:"halted"`
	TrajectoryCount int  `json:"trajectory_count"`
	TrajectoryIndex int  `json:"trajectory_index"`
}
