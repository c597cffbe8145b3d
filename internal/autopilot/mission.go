package autopilot

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AddWaypoint appends wp to the mission. A zero TouchRadius gets
// DefaultTouchRadius.
func (s *Supervisor) AddWaypoint(wp Waypoint) error {
	if wp.TouchRadius <= 0 {
		wp.TouchRadius = DefaultTouchRadius
	}
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.mode.waypointMission() {
		return s.reject("waypoint add", ErrMissionExecuting)
	}
	if !st.fence.Contains(wp.Position) {
		return s.reject("waypoint add", ErrWaypointOutOfFence)
	}
	if err := st.waypoints.Add(wp); err != nil {
		return s.reject("waypoint add", err)
	}
	s.log.WithFields(logrus.Fields{
		"index": st.waypoints.Len() - 1,
		"pos":   wp.Position,
	}).Info("waypoint added")
	return nil
}

// StartMission flies the waypoint list from the first entry. With loop set
// the mission restarts after the last waypoint.
func (s *Supervisor) StartMission(loop bool) error {
	st := s.st
	st.mu.Lock()
	if st.mode.waypointMission() || st.mode == TrajectoryFollowing {
		st.mu.Unlock()
		return s.reject("mission start", ErrMissionExecuting)
	}
	if st.mode != Hovering {
		st.mu.Unlock()
		return s.reject("mission start", ErrNotInHoveringMode)
	}
	if st.waypoints.Len() == 0 {
		st.mu.Unlock()
		return s.reject("mission start", ErrListEmpty)
	}
	st.waypoints.SetIndex(0)
	st.loopMission = loop
	st.missionHalted = false
	st.arrivedAt = time.Time{}
	st.hold(st.setpoint.Position)
	st.mode = FollowWaypoint
	st.mu.Unlock()

	s.log.WithField("loop", loop).Info("mission started")
	s.logTransition(Hovering, FollowWaypoint, "command")
	return nil
}

// HaltMission stops the executing mission in place on the next tick. A
// halted waypoint mission can be resumed.
func (s *Supervisor) HaltMission() error {
	st := s.st
	st.mu.Lock()
	switch {
	case st.mode.waypointMission():
		st.missionHalted = true
	case st.mode == TrajectoryFollowing:
	default:
		st.mu.Unlock()
		return s.reject("mission halt", ErrNoExecutingMission)
	}
	st.haltRequested = true
	st.mu.Unlock()
	s.log.Info("mission halt requested")
	return nil
}

// ResumeMission continues a halted waypoint mission from the waypoint it
// was flying to.
func (s *Supervisor) ResumeMission() error {
	st := s.st
	st.mu.Lock()
	if !st.missionHalted {
		st.mu.Unlock()
		return s.reject("mission resume", ErrNoExecutingMission)
	}
	if st.mode != Hovering || st.haltRequested {
		st.mu.Unlock()
		return s.reject("mission resume", ErrNotInHoveringMode)
	}
	st.missionHalted = false
	st.arrivedAt = time.Time{}
	st.mode = FollowWaypoint
	st.mu.Unlock()
	s.logTransition(Hovering, FollowWaypoint, "resume")
	return nil
}

func (s *Supervisor) ClearWaypoints() error {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.mode.waypointMission() {
		return s.reject("waypoint clear", ErrMissionExecuting)
	}
	st.waypoints.Clear()
	st.missionHalted = false
	st.loopMission = false
	s.log.Info("waypoints cleared")
	return nil
}

// GotoPosition moves the hover point to pos. Unless changeZ is set the
// current target altitude is kept.
func (s *Supervisor) GotoPosition(pos [3]float64, changeZ bool) error {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.mode != Hovering {
		return s.reject("goto", ErrNotInHoveringMode)
	}
	if !changeZ {
		pos[2] = st.setpoint.Position[2]
	}
	if !st.fence.Contains(pos) {
		return s.reject("goto", ErrWaypointOutOfFence)
	}
	st.hold(pos)
	s.log.WithField("pos", pos).Info("goto")
	return nil
}

func (s *Supervisor) AddTrajectorySegment(seg TrajectorySegment) error {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.mode == TrajectoryFollowing {
		return s.reject("trajectory add", ErrMissionExecuting)
	}
	if !(seg.FlightTime > 0) {
		return s.reject("trajectory add", ErrInvalidSegment)
	}
	if err := st.trajectory.Add(seg); err != nil {
		return s.reject("trajectory add", err)
	}
	return nil
}

// StartTrajectory follows the segment list from Hovering. zTraj and yawTraj
// select whether altitude and heading follow the polynomials.
func (s *Supervisor) StartTrajectory(loop, zTraj, yawTraj bool) error {
	now := s.nowFn()
	st := s.st
	st.mu.Lock()
	if st.mode.waypointMission() || st.mode == TrajectoryFollowing {
		st.mu.Unlock()
		return s.reject("trajectory start", ErrMissionExecuting)
	}
	if st.mode != Hovering {
		st.mu.Unlock()
		return s.reject("trajectory start", ErrNotInHoveringMode)
	}
	if st.trajectory.Len() == 0 {
		st.mu.Unlock()
		return s.reject("trajectory start", ErrListEmpty)
	}
	st.trajectory.SetIndex(0)
	st.loopMission = loop
	st.missionHalted = false
	st.zTraj = zTraj
	st.yawTraj = yawTraj
	st.segStart = now
	st.hold(st.setpoint.Position)
	st.mode = TrajectoryFollowing
	st.mu.Unlock()

	s.log.WithFields(logrus.Fields{"loop": loop, "z": zTraj, "yaw": yawTraj}).Info("trajectory started")
	s.logTransition(Hovering, TrajectoryFollowing, "command")
	return nil
}

func (s *Supervisor) ClearTrajectory() error {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.mode == TrajectoryFollowing {
		return s.reject("trajectory clear", ErrMissionExecuting)
	}
	st.trajectory.Clear()
	return nil
}
