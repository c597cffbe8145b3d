package quat

import (
	"math"
	"testing"

	matrix "github.com/skelterjohn/go.matrix"
)

const eps = 1e-9

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func requireQuat(t *testing.T, got, want Quat, tol float64) {
	t.Helper()
	// q and -q are the same rotation.
	if got.Dot(want) < 0 {
		got = got.Neg()
	}
	for i := range got {
		if !approx(got[i], want[i], tol) {
			t.Fatalf("q=%v want %v", got, want)
		}
	}
}

func TestFromGravity_LevelIsIdentity(t *testing.T) {
	// Accel (0,0,-1) negated into gravity.
	q := FromGravity([3]float64{0, 0, 1})
	requireQuat(t, q, Identity, eps)
}

func TestFromGravity_Inverted(t *testing.T) {
	q := FromGravity([3]float64{0, 0, -1})
	if n := q.Norm(); !approx(n, 1, eps) {
		t.Fatalf("norm=%v", n)
	}
	e := q.Euler().Degrees()
	if !approx(math.Abs(e.Roll), 180, 1e-6) || !approx(e.Pitch, 0, 1e-6) {
		t.Fatalf("euler=%+v want roll=±180 pitch=0", e)
	}
}

func TestFromGravity_MatchesGravityBody(t *testing.T) {
	// Covers both sides of the z-sign split.
	cases := []Euler{
		{Roll: Deg2Rad(10), Pitch: Deg2Rad(-20)},
		{Roll: Deg2Rad(-45), Pitch: Deg2Rad(30)},
		{Roll: Deg2Rad(100), Pitch: Deg2Rad(10)},
		{Roll: Deg2Rad(-150), Pitch: Deg2Rad(-40)},
		{Roll: Deg2Rad(170), Pitch: Deg2Rad(5)},
	}
	for _, c := range cases {
		g := FromEuler(c).GravityBody()
		q := FromGravity(g)
		back := q.GravityBody()
		for i := range g {
			if !approx(back[i], g[i], 1e-9) {
				t.Fatalf("euler=%+v gravity=%v back=%v", c.Degrees(), g, back)
			}
		}
	}
}

func TestEulerRoundTrip_BothBranches(t *testing.T) {
	gs := [][3]float64{
		{0.1, -0.2, 0.97},
		{-0.5, 0.3, 0.81},
		{0.2, 0.4, -0.89},
		{-0.6, -0.1, -0.79},
		{0.0, 0.95, -0.31},
	}
	for _, raw := range gs {
		g, ok := Unit3(raw)
		if !ok {
			t.Fatalf("unit %v", raw)
		}
		q := FromGravity(g)
		e := q.Euler()
		q2 := FromEuler(e)
		requireQuat(t, q2, q, 1e-9)

		e2 := q2.Euler()
		if !approx(e2.Roll, e.Roll, 1e-9) || !approx(e2.Pitch, e.Pitch, 1e-9) {
			t.Fatalf("g=%v euler=%+v back=%+v", g, e, e2)
		}
	}
}

func TestNormalize_ZeroFallsBackToIdentity(t *testing.T) {
	if got := (Quat{}).Normalize(); got != Identity {
		t.Fatalf("got=%v want identity", got)
	}
	if got := (Quat{math.NaN(), 0, 0, 0}).Normalize(); got != Identity {
		t.Fatalf("got=%v want identity", got)
	}
}

func TestMul_YawComposition(t *testing.T) {
	a := FromYaw(Deg2Rad(30))
	b := FromYaw(Deg2Rad(45))
	got := a.Mul(b).Euler().Degrees()
	if !approx(got.Yaw, 75, 1e-9) {
		t.Fatalf("yaw=%v want 75", got.Yaw)
	}
	requireQuat(t, a.Mul(a.Conj()), Identity, eps)
}

func TestIntegrate_ConstantRate(t *testing.T) {
	q := Identity
	w := [3]float64{0, 0, Deg2Rad(90)}
	const dt = 0.0025
	for i := 0; i < 400; i++ {
		q = q.Integrate(w, dt)
	}
	if n := q.Norm(); !approx(n, 1, 1e-12) {
		t.Fatalf("norm=%v", n)
	}
	yaw := q.Euler().Degrees().Yaw
	if !approx(yaw, 90, 0.05) {
		t.Fatalf("yaw=%v want ~90", yaw)
	}
}

func TestLerp_TakesShortPath(t *testing.T) {
	q := Identity
	r := Identity.Neg()
	got := Lerp(q, r, 0.5)
	requireQuat(t, got, Identity, eps)
	if got[0] < 0 {
		t.Fatalf("got=%v want positive hemisphere", got)
	}
}

func TestRotation_Orthonormal(t *testing.T) {
	q := FromEuler(Euler{Roll: 0.3, Pitch: -0.2, Yaw: 1.1})
	r := NewRotation(q)
	rrt := matrix.Product(r, r.Transpose())
	eye := matrix.Eye(3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !approx(rrt.Get(i, j), eye.Get(i, j), 1e-12) {
				t.Fatalf("R*R^T[%d][%d]=%v", i, j, rrt.Get(i, j))
			}
		}
	}

	// Third row is gravity in body.
	g := q.GravityBody()
	a := Array(r)
	for j := 0; j < 3; j++ {
		if !approx(a[2][j], g[j], 1e-12) {
			t.Fatalf("row2=%v gravity=%v", a[2], g)
		}
	}
}

func TestENUToNED(t *testing.T) {
	ned := ENUToNED([3]float64{1, 2, 3})
	if ned != [3]float64{2, 1, -3} {
		t.Fatalf("ned=%v", ned)
	}
	if back := NEDToENU(ned); back != [3]float64{1, 2, 3} {
		t.Fatalf("back=%v", back)
	}
}
