package autopilot

import "errors"

// Command results. A command that returns one of these made no change.
var (
	ErrNotInHoveringMode  = errors.New("autopilot: not in hovering mode")
	ErrAlreadyAirborne    = errors.New("autopilot: already airborne")
	ErrWaypointOutOfFence = errors.New("autopilot: waypoint out of geofence")
	ErrListFull           = errors.New("autopilot: list full")
	ErrListEmpty          = errors.New("autopilot: list empty")
	ErrMissionExecuting   = errors.New("autopilot: mission executing")
	ErrNoExecutingMission = errors.New("autopilot: no executing mission")
	ErrInvalidSegment     = errors.New("autopilot: invalid trajectory segment")
	ErrMotorLocked        = errors.New("autopilot: motor locked")
)
