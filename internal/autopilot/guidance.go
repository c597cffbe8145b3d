package autopilot

import "time"

// Generator computes the setpoint for one of the autonomous modes. Step is
// called once per supervisor tick with the state locked; it must not block.
type Generator interface {
	Step(g *Guidance)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(g *Guidance)

func (f GeneratorFunc) Step(g *Guidance) { f(g) }

// Guidance is the mutable handle a Generator gets for the duration of one
// tick. It must not be retained.
type Guidance struct {
	st   *State
	now  time.Time
	dt   float64
	pose Pose
}

func (g *Guidance) Now() time.Time { return g.now }

// DT is the supervisor tick period in seconds.
func (g *Guidance) DT() float64 { return g.dt }

func (g *Guidance) Pose() Pose         { return g.pose }
func (g *Guidance) Mode() Mode         { return g.st.mode }
func (g *Guidance) Setpoint() Setpoint { return g.st.setpoint }
func (g *Guidance) Limits() Limits     { return g.st.limits }

// InFence reports whether p may be written as a position target. Mission
// logic checks this before AssignPositionTarget.
func (g *Guidance) InFence(p [3]float64) bool { return g.st.fence.Contains(p) }

func (g *Guidance) Geofence() Geofence { return g.st.fence }

func (g *Guidance) AssignPositionTarget(p [3]float64)          { g.st.setpoint.Position = p }
func (g *Guidance) AssignVelocityTarget(v [3]float64)          { g.st.setpoint.Velocity = v }
func (g *Guidance) AssignAccelerationFeedforward(a [3]float64) { g.st.setpoint.Acceleration = a }
func (g *Guidance) AssignHeading(deg float64)                  { g.st.setpoint.HeadingDeg = deg }

// Hold sets the position target to p with zero velocity and acceleration.
func (g *Guidance) Hold(p [3]float64) { g.st.hold(p) }

// Transition switches mode. The caller leaves the setpoint consistent for
// the new mode.
func (g *Guidance) Transition(m Mode) { g.st.mode = m }

// Disarm clears the armed flag, e.g. on touchdown.
func (g *Guidance) Disarm() { g.st.armed = false }

func (g *Guidance) Waypoints() *List[Waypoint]           { return &g.st.waypoints }
func (g *Guidance) Trajectory() *List[TrajectorySegment] { return &g.st.trajectory }
func (g *Guidance) LoopMission() bool                    { return g.st.loopMission }

// ArrivedAt is when the current waypoint was reached; zero while en route.
func (g *Guidance) ArrivedAt() time.Time     { return g.st.arrivedAt }
func (g *Guidance) SetArrivedAt(t time.Time) { g.st.arrivedAt = t }

// SegmentStart is when the active trajectory segment began.
func (g *Guidance) SegmentStart() time.Time     { return g.st.segStart }
func (g *Guidance) SetSegmentStart(t time.Time) { g.st.segStart = t }

// TrajectoryAxes reports whether z and yaw follow the trajectory
// polynomials or stay at their values from when the trajectory started.
func (g *Guidance) TrajectoryAxes() (z, yaw bool) { return g.st.zTraj, g.st.yawTraj }
