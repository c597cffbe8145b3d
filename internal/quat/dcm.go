package quat

import matrix "github.com/skelterjohn/go.matrix"

// NewRotation returns a 3x3 body-to-inertial rotation matrix for q.
func NewRotation(q Quat) *matrix.DenseMatrix {
	m := matrix.Zeros(3, 3)
	FillRotation(m, q)
	return m
}

// FillRotation writes the body-to-inertial rotation for q into the 3x3
// matrix m in place.
func FillRotation(m *matrix.DenseMatrix, q Quat) {
	q0, q1, q2, q3 := q[0], q[1], q[2], q[3]

	m.Set(0, 0, 1-2*(q2*q2+q3*q3))
	m.Set(0, 1, 2*(q1*q2-q0*q3))
	m.Set(0, 2, 2*(q1*q3+q0*q2))

	m.Set(1, 0, 2*(q1*q2+q0*q3))
	m.Set(1, 1, 1-2*(q1*q1+q3*q3))
	m.Set(1, 2, 2*(q2*q3-q0*q1))

	m.Set(2, 0, 2*(q1*q3-q0*q2))
	m.Set(2, 1, 2*(q2*q3+q0*q1))
	m.Set(2, 2, 1-2*(q1*q1+q2*q2))
}

// Array copies a 3x3 matrix into a fixed array.
func Array(m *matrix.DenseMatrix) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m.Get(i, j)
		}
	}
	return out
}
