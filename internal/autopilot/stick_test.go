package autopilot

import (
	"math"
	"testing"
	"time"
)

func TestStickInput_Expires(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewStickInput(200 * time.Millisecond)
	s.nowFn = func() time.Time { return now }

	if _, _, ok := s.Stick(); ok {
		t.Fatalf("expected no input before Set")
	}
	s.Set(10, -12)
	r, p, ok := s.Stick()
	if !ok || r != 10 || p != -12 {
		t.Fatalf("stick=(%v,%v,%v) want (10,-12,true)", r, p, ok)
	}

	now = now.Add(300 * time.Millisecond)
	if _, _, ok := s.Stick(); ok {
		t.Fatalf("expected stale input to expire")
	}
}

func TestStickInput_IgnoresNonFinite(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewStickInput(time.Second)
	s.nowFn = func() time.Time { return now }
	s.Set(6, 7)
	s.Set(math.NaN(), 1)
	s.Set(1, math.Inf(1))
	r, p, ok := s.Stick()
	if !ok || r != 6 || p != 7 {
		t.Fatalf("stick=(%v,%v,%v) want (6,7,true)", r, p, ok)
	}
}

func TestStickInput_NilIsNoInput(t *testing.T) {
	var s *StickInput
	if _, _, ok := s.Stick(); ok {
		t.Fatalf("expected nil holder to report no input")
	}
}
