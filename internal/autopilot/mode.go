package autopilot

import "fmt"

// Mode is the supervisor's flight mode. Exactly one is active at a time.
type Mode int

const (
	Manual Mode = iota
	Hovering
	FollowWaypoint
	WaitNextWaypoint
	TrajectoryFollowing
	Takeoff
	Landing
	MotorLocked

	modeCount
)

var modeNames = [modeCount]string{
	Manual:              "manual",
	Hovering:            "hovering",
	FollowWaypoint:      "follow_waypoint",
	WaitNextWaypoint:    "wait_next_waypoint",
	TrajectoryFollowing: "trajectory_following",
	Takeoff:             "takeoff",
	Landing:             "landing",
	MotorLocked:         "motor_locked",
}

func (m Mode) String() string {
	if m < 0 || m >= modeCount {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode is the inverse of String.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// IsAuto reports whether the supervisor generates setpoints in m.
func (m Mode) IsAuto() bool {
	return m != Manual && m != MotorLocked
}

func (m Mode) waypointMission() bool {
	return m == FollowWaypoint || m == WaitNextWaypoint
}
