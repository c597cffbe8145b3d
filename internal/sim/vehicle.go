package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"flightcore/internal/autopilot"
)

// Target is the part of the supervisor view the vehicle follows.
type Target interface {
	Setpoint() autopilot.Setpoint
	MotorsEnabled() bool
}

type VehicleConfig struct {
	// TimeConstant is the first-order lag between setpoint and position.
	TimeConstant time.Duration
	Interval     time.Duration
	// FallSpeed is how fast the vehicle sinks with the motors off, in m/s.
	FallSpeed float64
	Start     [3]float64
}

// Vehicle is a point mass whose position chases the position setpoint with
// a first-order lag. It reports its pose to the autopilot like a
// localization feed would.
type Vehicle struct {
	cfg  VehicleConfig
	tgt  Target
	sink autopilot.PoseSink
	log  *logrus.Entry

	mu  sync.Mutex
	pos [3]float64
	vel [3]float64

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewVehicle(cfg VehicleConfig, tgt Target, sink autopilot.PoseSink, log *logrus.Entry) *Vehicle {
	if cfg.TimeConstant <= 0 {
		cfg.TimeConstant = 500 * time.Millisecond
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Millisecond
	}
	if cfg.FallSpeed <= 0 {
		cfg.FallSpeed = 2.0
	}
	if log == nil {
		log = logrus.WithField("component", "sim")
	}
	return &Vehicle{cfg: cfg, tgt: tgt, sink: sink, log: log, pos: cfg.Start, stopCh: make(chan struct{})}
}

func (v *Vehicle) Start(ctx context.Context) {
	v.log.WithField("time_constant", v.cfg.TimeConstant).Info("sim vehicle started")
	v.sink.UpdatePose(v.cfg.Start, [3]float64{})
	go func() {
		tick := time.NewTicker(v.cfg.Interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-v.stopCh:
				return
			case <-tick.C:
				v.Step(v.cfg.Interval.Seconds())
			}
		}
	}()
}

func (v *Vehicle) Close() {
	v.stopOnce.Do(func() { close(v.stopCh) })
}

// Step advances the model by dt seconds and publishes the new pose.
func (v *Vehicle) Step(dt float64) {
	if dt <= 0 {
		return
	}
	sp := v.tgt.Setpoint()
	powered := v.tgt.MotorsEnabled()

	v.mu.Lock()
	prev := v.pos
	if powered {
		// Exact discretization of dp/dt = (sp - p)/tau.
		a := 1 - math.Exp(-dt/v.cfg.TimeConstant.Seconds())
		for i := 0; i < 3; i++ {
			if finite(sp.Position[i]) {
				v.pos[i] += a * (sp.Position[i] - v.pos[i])
			}
		}
	} else {
		v.pos[2] = math.Max(0, v.pos[2]-v.cfg.FallSpeed*dt)
	}
	for i := 0; i < 3; i++ {
		v.vel[i] = (v.pos[i] - prev[i]) / dt
	}
	pos, vel := v.pos, v.vel
	v.mu.Unlock()

	v.sink.UpdatePose(pos, vel)
}

func (v *Vehicle) Pose() (pos, vel [3]float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos, v.vel
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
