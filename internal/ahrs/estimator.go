package ahrs

import (
	"fmt"

	"flightcore/internal/quat"
)

const (
	FilterComplementary = "complementary"
	FilterMadgwick      = "madgwick"

	DefaultDT                  = 0.0025
	DefaultComplementaryWeight = 0.995
	DefaultMadgwickBeta        = 0.3
)

// YawReference is an optional independent heading source such as a
// motion-capture system.
type YawReference interface {
	Available() bool
	YawDeg() float64
}

type EstimatorConfig struct {
	// DT is the tick period in seconds.
	DT     float64
	Filter string

	ComplementaryWeight float64
	MadgwickBeta        float64
	// MadgwickSampleHz defaults to 1/DT.
	MadgwickSampleHz float64
}

// Estimator fuses accelerometer and gyro samples into a unit quaternion.
// It is stepped by a single goroutine.
type Estimator struct {
	dt     float64
	fusion Fusion
	yawRef YawReference

	q quat.Quat
}

func NewEstimator(cfg EstimatorConfig, yawRef YawReference) (*Estimator, error) {
	if cfg.DT == 0 {
		cfg.DT = DefaultDT
	}
	if cfg.DT < 0 {
		return nil, fmt.Errorf("ahrs: dt must be > 0")
	}
	if cfg.Filter == "" {
		cfg.Filter = FilterComplementary
	}
	if cfg.ComplementaryWeight == 0 {
		cfg.ComplementaryWeight = DefaultComplementaryWeight
	}
	if cfg.MadgwickBeta == 0 {
		cfg.MadgwickBeta = DefaultMadgwickBeta
	}
	if cfg.MadgwickSampleHz == 0 {
		cfg.MadgwickSampleHz = 1.0 / cfg.DT
	}

	var f Fusion
	switch cfg.Filter {
	case FilterComplementary:
		if cfg.ComplementaryWeight <= 0 || cfg.ComplementaryWeight >= 1 {
			return nil, fmt.Errorf("ahrs: complementary weight must be in (0,1)")
		}
		f = NewComplementary(cfg.DT, cfg.ComplementaryWeight)
	case FilterMadgwick:
		if cfg.MadgwickBeta < 0 {
			return nil, fmt.Errorf("ahrs: madgwick beta must be >= 0")
		}
		f = NewMadgwick(cfg.MadgwickSampleHz, cfg.MadgwickBeta)
	default:
		return nil, fmt.Errorf("ahrs: unknown filter %q", cfg.Filter)
	}
	return &Estimator{dt: cfg.DT, fusion: f, yawRef: yawRef, q: quat.Identity}, nil
}

func (e *Estimator) DT() float64 { return e.dt }

// Quaternion returns the last published orientation.
func (e *Estimator) Quaternion() quat.Quat { return e.q }

// Initialize seeds the orientation from a resting accelerometer reading so
// roll and pitch start at the measured tilt.
func (e *Estimator) Initialize(accel [3]float64) {
	q := quat.Identity
	if g, ok := quat.Unit3([3]float64{-accel[0], -accel[1], -accel[2]}); ok {
		q = quat.FromGravity(g)
	}
	e.q = q
	e.fusion.Reset(q)
}

// Estimate runs one tick. accel is the specific force in m/s² (any scale),
// gyro is in deg/s. Non-finite samples are dropped and the last orientation
// is returned. Euler angles are in degrees.
func (e *Estimator) Estimate(accel, gyro [3]float64) (quat.Quat, quat.Euler) {
	if !quat.Finite3(accel) || !quat.Finite3(gyro) {
		return e.q, e.q.Euler().Degrees()
	}

	w := [3]float64{quat.Deg2Rad(gyro[0]), quat.Deg2Rad(gyro[1]), quat.Deg2Rad(gyro[2])}
	g, ok := quat.Unit3([3]float64{-accel[0], -accel[1], -accel[2]})

	q := e.fusion.Fuse(g, ok, w)

	if e.yawRef != nil && e.yawRef.Available() {
		own := q.Euler().Yaw
		q = quat.FromYaw(-own).Mul(q)
		q = quat.FromYaw(quat.Deg2Rad(e.yawRef.YawDeg())).Mul(q).Normalize()
	}

	e.q = q
	return q, q.Euler().Degrees()
}
