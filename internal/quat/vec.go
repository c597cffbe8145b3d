package quat

import "math"

func Dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func Norm3(v [3]float64) float64 {
	return math.Sqrt(Dot3(v, v))
}

// Unit3 returns v scaled to unit length. ok is false for a zero or
// non-finite vector.
func Unit3(v [3]float64) (u [3]float64, ok bool) {
	n := Norm3(v)
	if n < 1e-12 || math.IsNaN(n) || math.IsInf(n, 0) {
		return [3]float64{}, false
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}, true
}

// ENUToNED converts an east-north-up vector to north-east-down.
func ENUToNED(enu [3]float64) [3]float64 {
	return [3]float64{enu[1], enu[0], -enu[2]}
}

// NEDToENU converts a north-east-down vector to east-north-up.
func NEDToENU(ned [3]float64) [3]float64 {
	return [3]float64{ned[1], ned[0], -ned[2]}
}

// Finite3 reports whether every component of v is a finite number.
func Finite3(v [3]float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
