// Package quat holds the quaternion, Euler and frame-conversion helpers shared
// by the attitude estimator and the autopilot.
//
// Quaternions are scalar-first (q0, q1, q2, q3) and rotate body-frame vectors
// into the inertial frame. Euler angles follow the ZYX (yaw, pitch, roll)
// convention and are in radians unless a name says otherwise.
package quat

import "math"

// Quat is a scalar-first quaternion.
type Quat [4]float64

// Identity is the zero-rotation quaternion.
var Identity = Quat{1, 0, 0, 0}

// Euler angles in radians.
type Euler struct {
	Roll, Pitch, Yaw float64
}

// Degrees returns e converted to degrees.
func (e Euler) Degrees() Euler {
	return Euler{Roll: Rad2Deg(e.Roll), Pitch: Rad2Deg(e.Pitch), Yaw: Rad2Deg(e.Yaw)}
}

func Deg2Rad(d float64) float64 { return d * math.Pi / 180.0 }
func Rad2Deg(r float64) float64 { return r * 180.0 / math.Pi }

func (q Quat) Norm() float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

// Normalize returns q scaled to unit length. A zero or non-finite quaternion
// normalizes to Identity.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n < 1e-12 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity
	}
	inv := 1.0 / n
	return Quat{q[0] * inv, q[1] * inv, q[2] * inv, q[3] * inv}
}

func (q Quat) Conj() Quat { return Quat{q[0], -q[1], -q[2], -q[3]} }

func (q Quat) Neg() Quat { return Quat{-q[0], -q[1], -q[2], -q[3]} }

func (q Quat) Dot(r Quat) float64 {
	return q[0]*r[0] + q[1]*r[1] + q[2]*r[2] + q[3]*r[3]
}

func (q Quat) Scale(s float64) Quat {
	return Quat{q[0] * s, q[1] * s, q[2] * s, q[3] * s}
}

func (q Quat) Add(r Quat) Quat {
	return Quat{q[0] + r[0], q[1] + r[1], q[2] + r[2], q[3] + r[3]}
}

// Mul returns the Hamilton product q ⊗ r.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q[0]*r[0] - q[1]*r[1] - q[2]*r[2] - q[3]*r[3],
		q[0]*r[1] + q[1]*r[0] + q[2]*r[3] - q[3]*r[2],
		q[0]*r[2] - q[1]*r[3] + q[2]*r[0] + q[3]*r[1],
		q[0]*r[3] + q[1]*r[2] - q[2]*r[1] + q[3]*r[0],
	}
}

// Integrate advances q by the body rate w (rad/s) over dt using first order
// quaternion kinematics, dq = ½·Ω(q)·w·dt, and renormalizes.
func (q Quat) Integrate(w [3]float64, dt float64) Quat {
	h := 0.5 * dt
	dq := Quat{
		h * (-q[1]*w[0] - q[2]*w[1] - q[3]*w[2]),
		h * (q[0]*w[0] - q[3]*w[1] + q[2]*w[2]),
		h * (q[3]*w[0] + q[0]*w[1] - q[1]*w[2]),
		h * (-q[2]*w[0] + q[1]*w[1] + q[0]*w[2]),
	}
	return q.Add(dq).Normalize()
}

// Lerp blends a·q + (1−a)·r and renormalizes. r is flipped into q's
// hemisphere first so the blend takes the short path.
func Lerp(q, r Quat, a float64) Quat {
	if q.Dot(r) < 0 {
		r = r.Neg()
	}
	return q.Scale(a).Add(r.Scale(1 - a)).Normalize()
}

// FromYaw returns the rotation by yaw radians about the inertial z axis.
func FromYaw(yaw float64) Quat {
	s, c := math.Sincos(0.5 * yaw)
	return Quat{c, 0, 0, s}
}

// Euler extracts ZYX Euler angles. Pitch is clamped at ±90°.
func (q Quat) Euler() Euler {
	sinp := 2 * (q[0]*q[2] - q[3]*q[1])
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	return Euler{
		Roll:  math.Atan2(2*(q[0]*q[1]+q[2]*q[3]), 1-2*(q[1]*q[1]+q[2]*q[2])),
		Pitch: math.Asin(sinp),
		Yaw:   math.Atan2(2*(q[0]*q[3]+q[1]*q[2]), 1-2*(q[2]*q[2]+q[3]*q[3])),
	}
}

// FromEuler builds a quaternion from ZYX Euler angles.
func FromEuler(e Euler) Quat {
	sr, cr := math.Sincos(0.5 * e.Roll)
	sp, cp := math.Sincos(0.5 * e.Pitch)
	sy, cy := math.Sincos(0.5 * e.Yaw)
	return Quat{
		cr*cp*cy + sr*sp*sy,
		sr*cp*cy - cr*sp*sy,
		cr*sp*cy + sr*cp*sy,
		cr*cp*sy - sr*sp*cy,
	}
}

// FromGravity returns the tilt quaternion that maps the inertial down axis
// onto the unit gravity vector g measured in the body frame. The result
// carries no information about heading.
//
// The two branches avoid the square root of a value near zero when g points
// close to either pole.
func FromGravity(g [3]float64) Quat {
	var q Quat
	if g[2] >= 0 {
		k := math.Sqrt(2 * (g[2] + 1))
		q = Quat{math.Sqrt(0.5 * (g[2] + 1)), g[1] / k, -g[0] / k, 0}
	} else {
		k := math.Sqrt(2 * (1 - g[2]))
		q = Quat{g[1] / k, math.Sqrt(0.5 * (1 - g[2])), 0, g[0] / k}
	}
	return q.Normalize()
}

// GravityBody returns the unit inertial down vector expressed in the body
// frame, i.e. the third row of the body-to-inertial rotation.
func (q Quat) GravityBody() [3]float64 {
	return [3]float64{
		2 * (q[1]*q[3] - q[0]*q[2]),
		2 * (q[2]*q[3] + q[0]*q[1]),
		q[0]*q[0] - q[1]*q[1] - q[2]*q[2] + q[3]*q[3],
	}
}
