package web

import (
	"context"
	"sync"
	"time"

	"flightcore/internal/ahrs"
)

// AttitudeSnapshot is the JSON view of the estimator output. Angles are in
// degrees and omitted until the estimator has a sample.
type AttitudeSnapshot struct {
	Valid         bool        `json:"valid"`
	RollDeg       *float64    `json:"roll_deg,omitempty"`
	PitchDeg      *float64    `json:"pitch_deg,omitempty"`
	YawDeg        *float64    `json:"yaw_deg,omitempty"`
	Quaternion    *[4]float64 `json:"quaternion,omitempty"`
	YawRefActive  bool        `json:"yaw_ref_active"`
	GyroBiasDps   [3]float64  `json:"gyro_bias_dps"`
	Ticks         uint64      `json:"ticks"`
	ReadErrors    uint64      `json:"read_errors"`
	LastError     string      `json:"last_error,omitempty"`
	LastUpdateUTC string      `json:"last_update_utc,omitempty"`
}

func attitudeFromSnapshot(s ahrs.Snapshot) AttitudeSnapshot {
	att := AttitudeSnapshot{
		Valid:        s.Valid,
		YawRefActive: s.YawRefActive,
		GyroBiasDps:  s.GyroBiasDegPerSec,
		Ticks:        s.Ticks,
		ReadErrors:   s.ReadErrors,
		LastError:    s.LastError,
	}
	if s.Valid {
		roll, pitch, yaw := s.RollDeg, s.PitchDeg, s.YawDeg
		q := [4]float64(s.Q)
		att.RollDeg, att.PitchDeg, att.YawDeg, att.Quaternion = &roll, &pitch, &yaw, &q
	}
	if !s.UpdatedAt.IsZero() {
		att.LastUpdateUTC = s.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return att
}

// AttitudeBroadcaster fans attitude snapshots out to listeners such as SSE
// clients. New subscribers get the most recent value immediately.
type AttitudeBroadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan AttitudeSnapshot
	nextID   int
	last     AttitudeSnapshot
	haveLast bool
}

func NewAttitudeBroadcaster() *AttitudeBroadcaster {
	return &AttitudeBroadcaster{subs: make(map[int]chan AttitudeSnapshot)}
}

func (b *AttitudeBroadcaster) Subscribe(buffer int) (int, <-chan AttitudeSnapshot) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan AttitudeSnapshot, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last, have := b.last, b.haveLast
	b.mu.Unlock()
	if have {
		ch <- last
	}
	return id, ch
}

func (b *AttitudeBroadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish never blocks: a subscriber that is behind misses the sample.
func (b *AttitudeBroadcaster) Publish(att AttitudeSnapshot) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = att
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- att:
		default:
		}
	}
}

// Last returns the most recent published value.
func (b *AttitudeBroadcaster) Last() (AttitudeSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.haveLast
}

// Pump publishes src at the given interval until ctx is done.
func (b *AttitudeBroadcaster) Pump(ctx context.Context, src AHRSController, interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			b.Publish(attitudeFromSnapshot(src.Snapshot()))
		}
	}
}
