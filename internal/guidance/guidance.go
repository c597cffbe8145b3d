// Package guidance implements the setpoint generators the autopilot
// dispatches to in its autonomous modes.
package guidance

import (
	"math"
	"time"

	"flightcore/internal/autopilot"
)

// Default returns a generator for every autonomous mode.
func Default() map[autopilot.Mode]autopilot.Generator {
	wp := Waypoints{}
	return map[autopilot.Mode]autopilot.Generator{
		autopilot.Takeoff:             Takeoff{},
		autopilot.Landing:             Landing{},
		autopilot.FollowWaypoint:      wp,
		autopilot.WaitNextWaypoint:    wp,
		autopilot.TrajectoryFollowing: Trajectory{},
	}
}

// Takeoff climbs at the takeoff speed to the takeoff height, then hovers.
// A vehicle resting below the fence floor starts its ramp at the floor.
type Takeoff struct{}

func (Takeoff) Step(g *autopilot.Guidance) {
	l := g.Limits()
	p := g.Setpoint().Position
	p[2] += l.TakeoffSpeed * g.DT()
	if floor, ok := g.Geofence().Floor(); ok && p[2] < floor {
		p[2] = floor
	}

	if p[2] >= l.TakeoffHeight {
		p[2] = l.TakeoffHeight
		if !g.InFence(p) {
			p = g.Pose().Position
		}
		g.Hold(p)
		g.Transition(autopilot.Hovering)
		return
	}
	if !g.InFence(p) {
		g.Hold(g.Pose().Position)
		g.Transition(autopilot.Hovering)
		return
	}
	g.AssignPositionTarget(p)
	g.AssignVelocityTarget([3]float64{0, 0, l.TakeoffSpeed})
	g.AssignAccelerationFeedforward([3]float64{})
}

// Landing descends at the landing speed. The target never goes below the
// lower acceptance height or the fence floor; once the measured height is
// inside the acceptance band the vehicle is disarmed and handed back to
// Manual.
type Landing struct{}

func (Landing) Step(g *autopilot.Guidance) {
	l := g.Limits()
	pose := g.Pose()
	if pose.Position[2] <= l.LandingAcceptUpper {
		g.Disarm()
		g.Hold(pose.Position)
		g.Transition(autopilot.Manual)
		return
	}

	p := g.Setpoint().Position
	p[2] -= l.LandingSpeed * g.DT()
	vz := -l.LandingSpeed
	lowest := l.LandingAcceptLower
	if floor, ok := g.Geofence().Floor(); ok && floor > lowest {
		lowest = floor
	}
	if p[2] <= lowest {
		p[2] = lowest
		vz = 0
	}
	if !g.InFence(p) {
		g.AssignVelocityTarget([3]float64{})
		g.AssignAccelerationFeedforward([3]float64{})
		return
	}
	g.AssignPositionTarget(p)
	g.AssignVelocityTarget([3]float64{0, 0, vz})
	g.AssignAccelerationFeedforward([3]float64{})
}

// Waypoints flies the mission list. It serves both FollowWaypoint and
// WaitNextWaypoint.
type Waypoints struct{}

func (Waypoints) Step(g *autopilot.Guidance) {
	list := g.Waypoints()
	wp, ok := list.Current()
	if !ok || !g.InFence(wp.Position) {
		g.Hold(g.Pose().Position)
		g.Transition(autopilot.Hovering)
		return
	}

	g.Hold(wp.Position)
	g.AssignHeading(wp.HeadingDeg)

	switch g.Mode() {
	case autopilot.FollowWaypoint:
		if distance(g.Pose().Position, wp.Position) <= wp.TouchRadius {
			g.SetArrivedAt(g.Now())
			g.Transition(autopilot.WaitNextWaypoint)
		}
	case autopilot.WaitNextWaypoint:
		if g.Now().Sub(g.ArrivedAt()) < wp.Dwell {
			return
		}
		g.SetArrivedAt(time.Time{})
		switch {
		case list.Advance():
			g.Transition(autopilot.FollowWaypoint)
		case g.LoopMission():
			list.SetIndex(0)
			g.Transition(autopilot.FollowWaypoint)
		default:
			g.Transition(autopilot.Hovering)
		}
	}
}

// Trajectory evaluates the active polynomial segment at the time elapsed
// since it started. Yaw coefficients are in degrees.
type Trajectory struct{}

func (Trajectory) Step(g *autopilot.Guidance) {
	list := g.Trajectory()
	seg, ok := list.Current()
	if !ok {
		g.Hold(g.Setpoint().Position)
		g.Transition(autopilot.Hovering)
		return
	}

	t := g.Now().Sub(g.SegmentStart()).Seconds()
	for t > seg.FlightTime {
		t -= seg.FlightTime
		g.SetSegmentStart(g.SegmentStart().Add(seconds(seg.FlightTime)))
		if !list.Advance() {
			if !g.LoopMission() {
				finishTrajectory(g, seg)
				return
			}
			list.SetIndex(0)
		}
		seg, _ = list.Current()
	}

	sp := evaluate(g, seg, t)
	if !g.InFence(sp.Position) {
		g.Hold(g.Pose().Position)
		g.Transition(autopilot.Hovering)
		return
	}
	g.AssignPositionTarget(sp.Position)
	g.AssignVelocityTarget(sp.Velocity)
	g.AssignAccelerationFeedforward(sp.Acceleration)
	g.AssignHeading(sp.HeadingDeg)
}

func finishTrajectory(g *autopilot.Guidance, last autopilot.TrajectorySegment) {
	end := evaluate(g, last, last.FlightTime).Position
	if !g.InFence(end) {
		end = g.Pose().Position
	}
	g.Hold(end)
	g.Transition(autopilot.Hovering)
}

func evaluate(g *autopilot.Guidance, seg autopilot.TrajectorySegment, t float64) autopilot.Setpoint {
	cur := g.Setpoint()
	zTraj, yawTraj := g.TrajectoryAxes()

	sp := autopilot.Setpoint{
		Position:     [3]float64{polyval(seg.X[:], t), polyval(seg.Y[:], t), cur.Position[2]},
		Velocity:     [3]float64{polyval(seg.VX[:], t), polyval(seg.VY[:], t), 0},
		Acceleration: [3]float64{polyval(seg.AX[:], t), polyval(seg.AY[:], t), 0},
		HeadingDeg:   cur.HeadingDeg,
	}
	if zTraj {
		sp.Position[2] = polyval(seg.Z[:], t)
		sp.Velocity[2] = polyval(seg.VZ[:], t)
		sp.Acceleration[2] = polyval(seg.AZ[:], t)
	}
	if yawTraj {
		sp.HeadingDeg = polyval(seg.Yaw[:], t)
	}
	return sp
}

// polyval evaluates c[0] + c[1]·t + c[2]·t² + ...
func polyval(c []float64, t float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*t + c[i]
	}
	return v
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
