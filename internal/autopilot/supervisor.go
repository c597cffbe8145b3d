package autopilot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RotationProvider supplies the current body-to-inertial rotation.
type RotationProvider interface {
	BodyToInertial() [3][3]float64
}

// PilotInput supplies roll and pitch stick deflection in degree
// equivalents. ok is false when no fresh input is available.
type PilotInput interface {
	Stick() (rollDeg, pitchDeg float64, ok bool)
}

type Config struct {
	// RateHz is the supervisor tick rate.
	RateHz float64
	// NudgeRate converts stick degrees into hover drift, in m/s per degree.
	NudgeRate float64
	// StickDeadband is the stick deflection in degrees ignored while hovering.
	StickDeadband float64
	Generators    map[Mode]Generator
	// Now overrides the wall clock.
	Now func() time.Time
}

const (
	DefaultRateHz        = 100.0
	DefaultNudgeRate     = 0.04
	DefaultStickDeadband = 5.0
)

// Supervisor runs the mode state machine. It is the only writer of the
// setpoint, mode, flags and mission lists.
type Supervisor struct {
	cfg   Config
	st    *State
	rot   RotationProvider
	pilot PilotInput
	gens  [modeCount]Generator
	log   *logrus.Entry

	nowFn func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewSupervisor(cfg Config, st *State, rot RotationProvider, pilot PilotInput, log *logrus.Entry) (*Supervisor, error) {
	if st == nil {
		return nil, fmt.Errorf("autopilot: state is nil")
	}
	if cfg.RateHz == 0 {
		cfg.RateHz = DefaultRateHz
	}
	if cfg.RateHz < 0 {
		return nil, fmt.Errorf("autopilot: rate must be > 0")
	}
	if cfg.NudgeRate == 0 {
		cfg.NudgeRate = DefaultNudgeRate
	}
	if cfg.StickDeadband == 0 {
		cfg.StickDeadband = DefaultStickDeadband
	}
	if log == nil {
		log = logrus.WithField("component", "autopilot")
	}
	s := &Supervisor{
		cfg:    cfg,
		st:     st,
		rot:    rot,
		pilot:  pilot,
		log:    log,
		nowFn:  func() time.Time { return time.Now().UTC() },
		stopCh: make(chan struct{}),
	}
	if cfg.Now != nil {
		s.nowFn = cfg.Now
	}
	for m, g := range cfg.Generators {
		if m < 0 || m >= modeCount {
			return nil, fmt.Errorf("autopilot: generator for unknown mode %d", int(m))
		}
		if !m.IsAuto() || m == Hovering {
			return nil, fmt.Errorf("autopilot: mode %s has no generator", m)
		}
		s.gens[m] = g
	}
	return s, nil
}

// State returns the read-only view.
func (s *Supervisor) State() View { return s.st }

func (s *Supervisor) dt() float64 { return 1.0 / s.cfg.RateHz }

func (s *Supervisor) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("autopilot: supervisor is nil")
	}
	s.log.WithField("rate_hz", s.cfg.RateHz).Info("autopilot started")
	go s.run(ctx)
	return nil
}

func (s *Supervisor) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Supervisor) run(ctx context.Context) {
	tick := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.RateHz))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-tick.C:
			s.Tick()
		}
	}
}

// Tick runs one supervisor step.
func (s *Supervisor) Tick() { s.tick(s.nowFn()) }

func (s *Supervisor) tick(now time.Time) {
	pose := s.st.Pose()
	rot := identity3
	if s.rot != nil {
		rot = s.rot.BodyToInertial()
	}
	var roll, pitch float64
	var stickOK bool
	if s.pilot != nil {
		roll, pitch, stickOK = s.pilot.Stick()
	}

	st := s.st
	st.mu.Lock()
	from := st.mode
	reason := ""

	switch {
	case st.haltRequested:
		// Halt wins over whatever the active mode would do this tick.
		st.haltRequested = false
		st.hold(pose.Position)
		st.mode = Hovering
		reason = "halt"
	case st.mode == Hovering:
		if stickOK {
			s.nudge(rot, roll, pitch)
		}
	case st.mode == Manual || st.mode == MotorLocked:
	default:
		if g := s.gens[st.mode]; g != nil {
			g.Step(&Guidance{st: st, now: now, dt: s.dt(), pose: pose})
			reason = "generator"
		}
	}

	if !st.setpoint.finite() {
		st.hold(pose.Position)
		st.mode = Hovering
		reason = "non-finite setpoint"
	}
	to := st.mode
	st.mu.Unlock()

	if from != to {
		s.logTransition(from, to, reason)
	}
}

var identity3 = [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// nudge moves the hover point by the pilot's stick. The body increment is
// NED; the setpoint is ENU.
func (s *Supervisor) nudge(r [3][3]float64, rollDeg, pitchDeg float64) {
	k := s.cfg.NudgeRate * s.dt()
	db := s.cfg.StickDeadband
	var xb, yb float64
	if pitchDeg > db || pitchDeg < -db {
		xb = pitchDeg * k
	}
	if rollDeg > db || rollDeg < -db {
		yb = -rollDeg * k
	}
	if xb == 0 && yb == 0 {
		return
	}
	xi := r[0][0]*xb + r[0][1]*yb
	yi := r[1][0]*xb + r[1][1]*yb

	p := s.st.setpoint.Position
	p[0] += yi
	p[1] += xi
	if !s.st.fence.Contains(p) {
		return
	}
	s.st.setpoint.Position = p
}

func (s *Supervisor) logTransition(from, to Mode, reason string) {
	s.log.WithFields(logrus.Fields{
		"from":   from.String(),
		"to":     to.String(),
		"reason": reason,
	}).Info("mode change")
}

func (s *Supervisor) reject(cmd string, err error) error {
	s.log.WithField("command", cmd).WithError(err).Warn("command rejected")
	return err
}

// RequestHalt asks the next tick to stop in place and hover.
func (s *Supervisor) RequestHalt() {
	s.st.mu.Lock()
	s.st.haltRequested = true
	s.st.mu.Unlock()
	s.log.Info("halt requested")
}

// TriggerAutoLanding starts a landing from Hovering.
func (s *Supervisor) TriggerAutoLanding() error {
	s.st.mu.Lock()
	if s.st.mode != Hovering {
		s.st.mu.Unlock()
		return s.reject("land", ErrNotInHoveringMode)
	}
	s.st.hold(s.st.setpoint.Position)
	s.st.mode = Landing
	s.st.mu.Unlock()
	s.logTransition(Hovering, Landing, "command")
	return nil
}

// TriggerAutoTakeoff starts a takeoff when the vehicle is on the ground,
// the motors are unlocked and the takeoff point is inside the fence.
func (s *Supervisor) TriggerAutoTakeoff() error {
	pose := s.st.Pose()
	s.st.mu.Lock()
	if s.st.motorLocked {
		s.st.mu.Unlock()
		return s.reject("takeoff", ErrMotorLocked)
	}
	if pose.Position[2] >= s.st.limits.GroundThreshold {
		s.st.mu.Unlock()
		return s.reject("takeoff", ErrAlreadyAirborne)
	}
	target := pose.Position
	target[2] = s.st.limits.TakeoffHeight
	if !s.st.fence.Contains(target) {
		s.st.mu.Unlock()
		return s.reject("takeoff", ErrWaypointOutOfFence)
	}
	from := s.st.mode
	s.st.hold(pose.Position)
	s.st.mode = Takeoff
	s.st.mu.Unlock()
	s.logTransition(from, Takeoff, "command")
	return nil
}

func (s *Supervisor) Arm() {
	s.st.mu.Lock()
	s.st.armed = true
	s.st.mu.Unlock()
	s.log.Warn("armed")
}

func (s *Supervisor) Disarm() {
	s.st.mu.Lock()
	s.st.armed = false
	s.st.mu.Unlock()
	s.log.Warn("disarmed")
}

// LockMotor cuts propulsion immediately, in flight too. Callers must have
// explicit operator confirmation.
func (s *Supervisor) LockMotor() {
	pose := s.st.Pose()
	s.st.mu.Lock()
	from := s.st.mode
	s.st.motorLocked = true
	s.st.hold(pose.Position)
	s.st.mode = MotorLocked
	s.st.mu.Unlock()
	s.log.Warn("motor locked")
	if from != MotorLocked {
		s.logTransition(from, MotorLocked, "lock")
	}
}

// UnlockMotor clears the lock. From MotorLocked the supervisor returns to
// Manual.
func (s *Supervisor) UnlockMotor() {
	pose := s.st.Pose()
	s.st.mu.Lock()
	from := s.st.mode
	s.st.motorLocked = false
	if from == MotorLocked {
		s.st.hold(pose.Position)
		s.st.mode = Manual
	}
	to := s.st.mode
	s.st.mu.Unlock()
	s.log.Warn("motor unlocked")
	if from != to {
		s.logTransition(from, to, "unlock")
	}
}
