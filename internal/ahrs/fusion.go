package ahrs

import (
	"math"

	"flightcore/internal/quat"
)

// Fusion is one attitude fusion strategy. Implementations keep their own
// orientation state and are stepped once per estimator tick.
type Fusion interface {
	// Reset replaces the strategy's orientation.
	Reset(q quat.Quat)
	// Fuse advances one tick. gravity is the unit gravity vector in the body
	// frame; gravityOK is false when it could not be normalized (free fall),
	// in which case only the gyro is integrated. gyro is in rad/s.
	Fuse(gravity [3]float64, gravityOK bool, gyro [3]float64) quat.Quat
}

// Complementary integrates the gyro and blends the result toward the
// accelerometer tilt with a fixed weight.
type Complementary struct {
	dt     float64
	weight float64
	q      quat.Quat
}

func NewComplementary(dt, weight float64) *Complementary {
	return &Complementary{dt: dt, weight: weight, q: quat.Identity}
}

func (c *Complementary) Reset(q quat.Quat) { c.q = q.Normalize() }

func (c *Complementary) Fuse(gravity [3]float64, gravityOK bool, gyro [3]float64) quat.Quat {
	qGyro := c.q.Integrate(gyro, c.dt)
	if !gravityOK {
		c.q = qGyro
		return c.q
	}
	// The accel quaternion only knows tilt; give it the gyro's heading so
	// the blend corrects roll and pitch without pulling yaw.
	yaw := qGyro.Euler().Yaw
	qAcc := quat.FromGravity(gravity)
	qAcc = quat.FromYaw(yaw - qAcc.Euler().Yaw).Mul(qAcc)

	// The blend of two tilts leaves a second-order twist about inertial z.
	c.q = withYaw(quat.Lerp(qGyro, qAcc, c.weight), yaw)
	return c.q
}

// withYaw rotates q about the inertial z axis so its ZYX yaw equals yaw.
// Near ±90° pitch yaw is undefined and q is returned unchanged.
func withYaw(q quat.Quat, yaw float64) quat.Quat {
	e := q.Euler()
	if math.Abs(math.Cos(e.Pitch)) < 1e-6 {
		return q
	}
	return quat.FromYaw(yaw - e.Yaw).Mul(q).Normalize()
}

// Madgwick is the gradient-descent IMU filter (gyro + accel, no magnetometer).
type Madgwick struct {
	sampleHz float64
	beta     float64
	q        quat.Quat
}

func NewMadgwick(sampleHz, beta float64) *Madgwick {
	return &Madgwick{sampleHz: sampleHz, beta: beta, q: quat.Identity}
}

func (m *Madgwick) Reset(q quat.Quat) { m.q = q.Normalize() }

func (m *Madgwick) Fuse(gravity [3]float64, gravityOK bool, gyro [3]float64) quat.Quat {
	q0, q1, q2, q3 := m.q[0], m.q[1], m.q[2], m.q[3]
	gx, gy, gz := gyro[0], gyro[1], gyro[2]

	qDot0 := 0.5 * (-q1*gx - q2*gy - q3*gz)
	qDot1 := 0.5 * (q0*gx + q2*gz - q3*gy)
	qDot2 := 0.5 * (q0*gy - q1*gz + q3*gx)
	qDot3 := 0.5 * (q0*gz + q1*gy - q2*gx)

	if gravityOK {
		ax, ay, az := gravity[0], gravity[1], gravity[2]

		_2q0 := 2 * q0
		_2q1 := 2 * q1
		_2q2 := 2 * q2
		_2q3 := 2 * q3
		_4q0 := 4 * q0
		_4q1 := 4 * q1
		_4q2 := 4 * q2
		_8q1 := 8 * q1
		_8q2 := 8 * q2
		q0q0 := q0 * q0
		q1q1 := q1 * q1
		q2q2 := q2 * q2
		q3q3 := q3 * q3

		s0 := _4q0*q2q2 + _2q2*ax + _4q0*q1q1 - _2q1*ay
		s1 := _4q1*q3q3 - _2q3*ax + 4*q0q0*q1 - _2q0*ay - _4q1 + _8q1*q1q1 + _8q1*q2q2 + _4q1*az
		s2 := 4*q0q0*q2 + _2q0*ax + _4q2*q3q3 - _2q3*ay - _4q2 + _8q2*q1q1 + _8q2*q2q2 + _4q2*az
		s3 := 4*q1q1*q3 - _2q1*ax + 4*q2q2*q3 - _2q2*ay

		if n := math.Sqrt(s0*s0 + s1*s1 + s2*s2 + s3*s3); n > 1e-12 {
			s0, s1, s2, s3 = s0/n, s1/n, s2/n, s3/n
			qDot0 -= m.beta * s0
			qDot1 -= m.beta * s1
			qDot2 -= m.beta * s2
			qDot3 -= m.beta * s3
		}
	}

	dt := 1.0 / m.sampleHz
	m.q = quat.Quat{q0 + qDot0*dt, q1 + qDot1*dt, q2 + qDot2*dt, q3 + qDot3*dt}.Normalize()
	return m.q
}
