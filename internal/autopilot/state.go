package autopilot

import (
	"sync"
	"time"
)

// View is the read-only side of the autopilot state, used by the downstream
// controller, telemetry and the web API.
type View interface {
	Mode() Mode
	Armed() bool
	MotorLocked() bool
	// MotorsEnabled is the final output gate: false whenever the motors are
	// locked or the vehicle is disarmed, whatever the mode.
	MotorsEnabled() bool
	IsAutoFlightMode() bool

	Setpoint() Setpoint
	PositionSetpoint() [3]float64
	VelocitySetpoint() [3]float64
	AccelerationFeedforward() [3]float64

	Pose() Pose
	Geofence() Geofence
	Limits() Limits
	Mission() MissionStatus
	Waypoints() []Waypoint
}

// PoseSink is implemented by the state for the localization feed.
type PoseSink interface {
	UpdatePose(position, velocity [3]float64)
}

// State is the autopilot's single source of truth. Exported methods only
// read, except UpdatePose; everything else is written by the Supervisor.
type State struct {
	nowFn func() time.Time

	poseMu sync.RWMutex
	pose   Pose

	mu       sync.RWMutex
	setpoint Setpoint
	fence    Geofence
	limits   Limits
	mode     Mode

	armed         bool
	motorLocked   bool
	haltRequested bool
	loopMission   bool
	missionHalted bool

	waypoints  List[Waypoint]
	arrivedAt  time.Time
	trajectory List[TrajectorySegment]
	segStart   time.Time
	zTraj      bool
	yawTraj    bool
}

var (
	_ View     = (*State)(nil)
	_ PoseSink = (*State)(nil)
)

func NewState(limits Limits, fence Geofence) *State {
	return &State{
		nowFn:  func() time.Time { return time.Now().UTC() },
		limits: limits,
		fence:  fence,
		mode:   Manual,
	}
}

// UpdatePose stores the latest localization fix.
func (st *State) UpdatePose(position, velocity [3]float64) {
	now := st.nowFn()
	st.poseMu.Lock()
	st.pose = Pose{Position: position, Velocity: velocity, UpdatedAt: now}
	st.poseMu.Unlock()
}

func (st *State) Pose() Pose {
	st.poseMu.RLock()
	defer st.poseMu.RUnlock()
	return st.pose
}

func (st *State) Mode() Mode {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.mode
}

func (st *State) Armed() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.armed
}

func (st *State) MotorLocked() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.motorLocked
}

func (st *State) MotorsEnabled() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.armed && !st.motorLocked
}

func (st *State) IsAutoFlightMode() bool {
	return st.Mode().IsAuto()
}

func (st *State) Setpoint() Setpoint {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.setpoint
}

func (st *State) PositionSetpoint() [3]float64        { return st.Setpoint().Position }
func (st *State) VelocitySetpoint() [3]float64        { return st.Setpoint().Velocity }
func (st *State) AccelerationFeedforward() [3]float64 { return st.Setpoint().Acceleration }

func (st *State) Geofence() Geofence {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.fence
}

func (st *State) Limits() Limits {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.limits
}

func (st *State) Mission() MissionStatus {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return MissionStatus{
		WaypointCount:   st.waypoints.Len(),
		WaypointIndex:   st.waypoints.Index(),
		Loop:            st.loopMission,
		Halted:          st.missionHalted,
		TrajectoryCount: st.trajectory.Len(),
		TrajectoryIndex: st.trajectory.Index(),
	}
}

func (st *State) Waypoints() []Waypoint {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.waypoints.Snapshot()
}

// The helpers below require st.mu held for writing.

func (st *State) hold(p [3]float64) {
	st.setpoint.Position = p
	st.setpoint.Velocity = [3]float64{}
	st.setpoint.Acceleration = [3]float64{}
}
