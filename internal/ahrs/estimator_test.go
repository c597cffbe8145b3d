package ahrs

import (
	"math"
	"math/rand"
	"testing"

	"flightcore/internal/quat"
)

const g0 = 9.80665

type fixedYaw struct {
	ok  bool
	deg float64
}

func (f fixedYaw) Available() bool { return f.ok }
func (f fixedYaw) YawDeg() float64 { return f.deg }

func newTestEstimator(t *testing.T, filter string, ref YawReference) *Estimator {
	t.Helper()
	e, err := NewEstimator(EstimatorConfig{Filter: filter}, ref)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

// accelFor returns the accelerometer reading (specific force, m/s²) of a
// vehicle at rest with the given attitude in degrees.
func accelFor(rollDeg, pitchDeg float64) [3]float64 {
	g := quat.FromEuler(quat.Euler{Roll: quat.Deg2Rad(rollDeg), Pitch: quat.Deg2Rad(pitchDeg)}).GravityBody()
	return [3]float64{-g[0] * g0, -g[1] * g0, -g[2] * g0}
}

var filters = []string{FilterComplementary, FilterMadgwick}

func TestNewEstimator_Defaults(t *testing.T) {
	e := newTestEstimator(t, "", nil)
	if e.DT() != DefaultDT {
		t.Fatalf("dt=%v want %v", e.DT(), DefaultDT)
	}
	if _, ok := e.fusion.(*Complementary); !ok {
		t.Fatalf("fusion=%T want *Complementary", e.fusion)
	}
	if e.Quaternion() != quat.Identity {
		t.Fatalf("q=%v want identity", e.Quaternion())
	}
}

func TestNewEstimator_Rejects(t *testing.T) {
	cases := []EstimatorConfig{
		{Filter: "kalman"},
		{DT: -1},
		{Filter: FilterComplementary, ComplementaryWeight: 1.5},
		{Filter: FilterMadgwick, MadgwickBeta: -0.1},
	}
	for _, c := range cases {
		if _, err := NewEstimator(c, nil); err == nil {
			t.Fatalf("cfg=%+v expected error", c)
		}
	}
}

func TestEstimate_NormStaysUnit(t *testing.T) {
	for _, f := range filters {
		e := newTestEstimator(t, f, nil)
		e.Initialize([3]float64{0, 0, -g0})
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 5000; i++ {
			accel := [3]float64{rng.NormFloat64() * 4, rng.NormFloat64() * 4, -g0 + rng.NormFloat64()*4}
			gyro := [3]float64{rng.NormFloat64() * 200, rng.NormFloat64() * 200, rng.NormFloat64() * 200}
			q, _ := e.Estimate(accel, gyro)
			if n := q.Norm(); math.Abs(n-1) > 1e-5 {
				t.Fatalf("filter=%s i=%d norm=%v", f, i, n)
			}
		}
	}
}

func TestEstimate_LevelHoldsIdentity(t *testing.T) {
	for _, f := range filters {
		e := newTestEstimator(t, f, nil)
		e.Initialize([3]float64{0, 0, -1})
		for i := 0; i < 2000; i++ {
			q, eul := e.Estimate([3]float64{0, 0, -1}, [3]float64{})
			for j := range q {
				if math.Abs(q[j]-quat.Identity[j]) > 1e-9 {
					t.Fatalf("filter=%s i=%d q=%v", f, i, q)
				}
			}
			if math.Abs(eul.Roll) > 1e-6 || math.Abs(eul.Pitch) > 1e-6 || math.Abs(eul.Yaw) > 1e-6 {
				t.Fatalf("filter=%s euler=%+v", f, eul)
			}
		}
	}
}

func TestInitialize_SeedsTilt(t *testing.T) {
	e := newTestEstimator(t, FilterComplementary, nil)
	e.Initialize(accelFor(15, -10))
	eul := e.Quaternion().Euler().Degrees()
	if math.Abs(eul.Roll-15) > 1e-6 || math.Abs(eul.Pitch+10) > 1e-6 {
		t.Fatalf("euler=%+v want roll=15 pitch=-10", eul)
	}
}

func TestEstimate_ConvergesToAccelTilt(t *testing.T) {
	for _, f := range filters {
		e := newTestEstimator(t, f, nil)
		e.Initialize([3]float64{0, 0, -g0})
		accel := accelFor(20, 0)
		var eul quat.Euler
		for i := 0; i < 4000; i++ {
			_, eul = e.Estimate(accel, [3]float64{})
		}
		if math.Abs(eul.Roll-20) > 0.5 || math.Abs(eul.Pitch) > 0.5 {
			t.Fatalf("filter=%s euler=%+v want roll~20", f, eul)
		}
	}
}

func TestEstimate_InvertedBranchConverges(t *testing.T) {
	e := newTestEstimator(t, FilterComplementary, nil)
	e.Initialize(accelFor(150, 0))
	var eul quat.Euler
	for i := 0; i < 4000; i++ {
		_, eul = e.Estimate(accelFor(160, 0), [3]float64{})
	}
	if math.Abs(eul.Roll-160) > 0.5 || math.Abs(eul.Pitch) > 0.5 {
		t.Fatalf("euler=%+v want roll~160", eul)
	}
}

func TestEstimate_GyroYawIsKept(t *testing.T) {
	e := newTestEstimator(t, FilterComplementary, nil)
	e.Initialize([3]float64{0, 0, -g0})
	var eul quat.Euler
	// 90 deg/s about body z for one second.
	for i := 0; i < 400; i++ {
		_, eul = e.Estimate([3]float64{0, 0, -g0}, [3]float64{0, 0, 90})
	}
	if math.Abs(eul.Yaw-90) > 0.5 {
		t.Fatalf("yaw=%v want ~90", eul.Yaw)
	}
	if math.Abs(eul.Roll) > 1e-6 || math.Abs(eul.Pitch) > 1e-6 {
		t.Fatalf("euler=%+v want level", eul)
	}
}

func TestEstimate_TiltRecoveryLeavesYaw(t *testing.T) {
	e := newTestEstimator(t, FilterComplementary, nil)
	e.Initialize(accelFor(0, 0))
	// Turn to 45 deg of heading, then hold still while the accel reports a
	// tilt the gyro never saw.
	for i := 0; i < 200; i++ {
		e.Estimate(accelFor(0, 0), [3]float64{0, 0, 90})
	}
	_, start := e.Estimate(accelFor(0, 0), [3]float64{})

	var eul quat.Euler
	for i := 0; i < 2000; i++ {
		_, eul = e.Estimate(accelFor(15, -10), [3]float64{})
		if math.Abs(eul.Yaw-start.Yaw) > 1e-9 {
			t.Fatalf("tick %d yaw=%v want %v", i, eul.Yaw, start.Yaw)
		}
	}
	if math.Abs(eul.Roll-15) > 0.1 || math.Abs(eul.Pitch+10) > 0.1 {
		t.Fatalf("euler=%+v want roll 15 pitch -10", eul)
	}
}

func TestEstimate_ExternalYawReplacesHeading(t *testing.T) {
	ref := &fixedYaw{ok: true, deg: 30}
	e := newTestEstimator(t, FilterComplementary, ref)
	plain := newTestEstimator(t, FilterComplementary, nil)
	accel := accelFor(10, 5)
	e.Initialize(accel)
	plain.Initialize(accel)

	var got, want quat.Euler
	for i := 0; i < 200; i++ {
		_, got = e.Estimate(accel, [3]float64{0, 0, 20})
		_, want = plain.Estimate(accel, [3]float64{0, 0, 20})
	}
	if math.Abs(got.Yaw-30) > 1e-6 {
		t.Fatalf("yaw=%v want 30", got.Yaw)
	}
	if math.Abs(got.Roll-want.Roll) > 1e-6 || math.Abs(got.Pitch-want.Pitch) > 1e-6 {
		t.Fatalf("roll/pitch changed: got=%+v plain=%+v", got, want)
	}

	ref.ok = false
	_, got = e.Estimate(accel, [3]float64{0, 0, 20})
	_, want = plain.Estimate(accel, [3]float64{0, 0, 20})
	if math.Abs(got.Yaw-want.Yaw) > 1e-6 {
		t.Fatalf("yaw=%v want own %v when reference unavailable", got.Yaw, want.Yaw)
	}
}

func TestEstimate_FreeFallAndNaN(t *testing.T) {
	for _, f := range filters {
		e := newTestEstimator(t, f, nil)
		e.Initialize(accelFor(5, 5))
		before := e.Quaternion()

		q, _ := e.Estimate([3]float64{0, 0, 0}, [3]float64{0, 0, 0})
		if n := q.Norm(); math.Abs(n-1) > 1e-9 {
			t.Fatalf("filter=%s free fall norm=%v", f, n)
		}

		q, _ = e.Estimate([3]float64{math.NaN(), 0, -g0}, [3]float64{})
		if q != e.Quaternion() {
			t.Fatalf("filter=%s NaN sample changed state", f)
		}
		for _, x := range q {
			if math.IsNaN(x) {
				t.Fatalf("filter=%s q=%v before=%v", f, q, before)
			}
		}
	}
}
