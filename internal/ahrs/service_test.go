package ahrs

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu    sync.Mutex
	accel [3]float64
	gyro  [3]float64
	err   error
	reads int
}

func (f *fakeSource) ReadIMU() ([3]float64, [3]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return [3]float64{}, [3]float64{}, f.err
	}
	return f.accel, f.gyro, nil
}

func (f *fakeSource) set(accel, gyro [3]float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accel, f.gyro, f.err = accel, gyro, err
}

func newTestService(t *testing.T, src Source, cfg Config) *Service {
	t.Helper()
	s, err := New(cfg, src, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(Config{}, nil, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := New(Config{RateHz: -1}, &fakeSource{}, nil, nil); err == nil {
		t.Fatalf("expected error for negative rate")
	}
	if _, err := New(Config{Filter: "bogus"}, &fakeSource{}, nil, nil); err == nil {
		t.Fatalf("expected error for unknown filter")
	}
}

func TestStep_PublishesSnapshotAndRotation(t *testing.T) {
	src := &fakeSource{accel: accelFor(0, 0)}
	s := newTestService(t, src, Config{})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.step(now)

	snap := s.Snapshot()
	if !snap.Valid || snap.Ticks != 1 {
		t.Fatalf("snap=%+v", snap)
	}
	if !snap.UpdatedAt.Equal(now) {
		t.Fatalf("updated=%v want %v", snap.UpdatedAt, now)
	}
	r := s.BodyToInertial()
	want := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(r[i][j]-want[i][j]) > 1e-9 {
				t.Fatalf("R=%v", r)
			}
		}
	}
}

func TestStep_SeedsFromFirstSample(t *testing.T) {
	src := &fakeSource{accel: accelFor(12, -7)}
	s := newTestService(t, src, Config{})
	s.step(time.Now())

	roll, pitch, _, q := s.Attitude()
	if math.Abs(roll-12) > 0.01 || math.Abs(pitch+7) > 0.01 {
		t.Fatalf("roll=%v pitch=%v", roll, pitch)
	}
	if math.Abs(q.Norm()-1) > 1e-9 {
		t.Fatalf("norm=%v", q.Norm())
	}
}

func TestStep_ReadErrorKeepsLastAttitude(t *testing.T) {
	src := &fakeSource{accel: accelFor(10, 0)}
	s := newTestService(t, src, Config{})
	s.step(time.Now())
	before := s.Snapshot()

	src.set([3]float64{}, [3]float64{}, errors.New("bus timeout"))
	s.step(time.Now())
	s.step(time.Now())

	after := s.Snapshot()
	if after.Q != before.Q {
		t.Fatalf("q changed on failed read: %v -> %v", before.Q, after.Q)
	}
	if after.ReadErrors != 2 {
		t.Fatalf("read_errors=%d want 2", after.ReadErrors)
	}
	if after.LastError != "bus timeout" {
		t.Fatalf("last_error=%q", after.LastError)
	}

	src.set(accelFor(10, 0), [3]float64{}, nil)
	s.step(time.Now())
	if got := s.Snapshot().LastError; got != "" {
		t.Fatalf("last_error=%q want cleared", got)
	}
}

func TestCalibration_SubtractsBias(t *testing.T) {
	bias := [3]float64{0.5, -1.25, 2}
	src := &fakeSource{accel: accelFor(0, 0), gyro: bias}
	s := newTestService(t, src, Config{ZeroDriftWindow: time.Second})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	done := make(chan error, 1)
	s.beginCalibration(done, start)
	for i := 0; i <= 400; i++ {
		s.step(start.Add(time.Duration(i) * 2500 * time.Microsecond))
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("calibration: %v", err)
		}
	default:
		t.Fatalf("calibration did not finish")
	}

	snap := s.Snapshot()
	for i := range bias {
		if math.Abs(snap.GyroBiasDegPerSec[i]-bias[i]) > 1e-9 {
			t.Fatalf("bias=%v want %v", snap.GyroBiasDegPerSec, bias)
		}
	}

	// With the bias removed the stationary gyro no longer turns the estimate.
	// Roll and pitch picked up during the window recover toward level.
	roll0, pitch0, yaw0, _ := s.Attitude()
	for i := 0; i < 400; i++ {
		s.step(start.Add(2 * time.Second))
	}
	roll1, pitch1, yaw1, _ := s.Attitude()
	if math.Abs(yaw1-yaw0) > 1e-6 {
		t.Fatalf("yaw drifted %v -> %v", yaw0, yaw1)
	}
	if math.Abs(roll1) >= math.Abs(roll0) || math.Abs(pitch1) >= math.Abs(pitch0) {
		t.Fatalf("tilt roll %v -> %v pitch %v -> %v want recovering", roll0, roll1, pitch0, pitch1)
	}
}

func TestCalibration_RejectsConcurrent(t *testing.T) {
	s := newTestService(t, &fakeSource{accel: accelFor(0, 0)}, Config{})
	now := time.Now()
	s.beginCalibration(make(chan error, 1), now)

	second := make(chan error, 1)
	s.beginCalibration(second, now)
	if err := <-second; err == nil {
		t.Fatalf("expected error for concurrent calibration")
	}
}

func TestZeroDrift_RequiresSamples(t *testing.T) {
	s := newTestService(t, &fakeSource{}, Config{})
	if err := s.ZeroDrift(context.Background()); err == nil {
		t.Fatalf("expected error before first sample")
	}
}

func TestStartRun_ZeroDrift(t *testing.T) {
	src := &fakeSource{accel: accelFor(0, 0), gyro: [3]float64{1, 2, 3}}
	s := newTestService(t, src, Config{Enable: true, RateHz: 200, ZeroDriftWindow: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for !s.Snapshot().Valid {
		select {
		case <-ctx.Done():
			t.Fatalf("no samples")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := s.ZeroDrift(ctx); err != nil {
		t.Fatalf("ZeroDrift: %v", err)
	}
	if got := s.Snapshot().GyroBiasDegPerSec; got != [3]float64{1, 2, 3} {
		t.Fatalf("bias=%v", got)
	}
}

func TestExternalYaw_Expires(t *testing.T) {
	y := NewExternalYaw(time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	y.nowFn = func() time.Time { return now }

	if y.Available() {
		t.Fatalf("available before first set")
	}
	y.Set(45)
	if !y.Available() || y.YawDeg() != 45 {
		t.Fatalf("available=%v yaw=%v", y.Available(), y.YawDeg())
	}
	y.Set(math.NaN())
	if y.YawDeg() != 45 {
		t.Fatalf("NaN accepted")
	}

	now = now.Add(2 * time.Second)
	if y.Available() {
		t.Fatalf("still available after timeout")
	}

	var nilRef *ExternalYaw
	if nilRef.Available() {
		t.Fatalf("nil reference available")
	}
}
