package autopilot

import (
	"math"
	"sync"
	"time"
)

// StickInput is a PilotInput fed by an external link. A deflection expires
// after the timeout so a dropped link stops nudging.
type StickInput struct {
	timeout time.Duration
	nowFn   func() time.Time

	mu              sync.RWMutex
	rollDeg, pitchD float64
	at              time.Time
}

func NewStickInput(timeout time.Duration) *StickInput {
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	return &StickInput{timeout: timeout, nowFn: time.Now}
}

// Set records a deflection in degree equivalents. Non-finite values are
// ignored.
func (s *StickInput) Set(rollDeg, pitchDeg float64) {
	if math.IsNaN(rollDeg) || math.IsInf(rollDeg, 0) || math.IsNaN(pitchDeg) || math.IsInf(pitchDeg, 0) {
		return
	}
	now := s.nowFn()
	s.mu.Lock()
	s.rollDeg, s.pitchD, s.at = rollDeg, pitchDeg, now
	s.mu.Unlock()
}

func (s *StickInput) Stick() (rollDeg, pitchDeg float64, ok bool) {
	if s == nil {
		return 0, 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.at.IsZero() || s.nowFn().Sub(s.at) > s.timeout {
		return 0, 0, false
	}
	return s.rollDeg, s.pitchD, true
}
