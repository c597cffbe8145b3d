package ahrs

import (
	"math"
	"sync"
	"time"
)

// ExternalYaw holds the latest heading pushed by an external reference and
// reports it unavailable once it is older than the timeout.
type ExternalYaw struct {
	timeout time.Duration
	nowFn   func() time.Time

	mu     sync.RWMutex
	yawDeg float64
	at     time.Time
}

func NewExternalYaw(timeout time.Duration) *ExternalYaw {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &ExternalYaw{timeout: timeout, nowFn: time.Now}
}

// Set records a new reference heading in degrees. Non-finite values are
// ignored.
func (y *ExternalYaw) Set(yawDeg float64) {
	if math.IsNaN(yawDeg) || math.IsInf(yawDeg, 0) {
		return
	}
	now := y.nowFn()
	y.mu.Lock()
	y.yawDeg = yawDeg
	y.at = now
	y.mu.Unlock()
}

func (y *ExternalYaw) Available() bool {
	if y == nil {
		return false
	}
	y.mu.RLock()
	at := y.at
	y.mu.RUnlock()
	return !at.IsZero() && y.nowFn().Sub(at) <= y.timeout
}

func (y *ExternalYaw) YawDeg() float64 {
	y.mu.RLock()
	defer y.mu.RUnlock()
	return y.yawDeg
}
