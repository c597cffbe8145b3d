package autopilot

import (
	"errors"
	"testing"
)

func TestList_AddUntilFull(t *testing.T) {
	var l List[int]
	for i := 0; i < MaxListLen; i++ {
		if err := l.Add(i); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := l.Add(99); !errors.Is(err, ErrListFull) {
		t.Fatalf("err=%v want ErrListFull", err)
	}
	if l.Len() != MaxListLen {
		t.Fatalf("len=%d want %d", l.Len(), MaxListLen)
	}
}

func TestList_IndexValidation(t *testing.T) {
	var l List[string]
	if _, ok := l.Current(); ok {
		t.Fatalf("current on empty list")
	}
	if l.SetIndex(0) {
		t.Fatalf("SetIndex(0) on empty list accepted")
	}

	_ = l.Add("a")
	_ = l.Add("b")
	if l.SetIndex(2) || l.SetIndex(-1) {
		t.Fatalf("out of range index accepted")
	}
	if !l.Advance() || l.Index() != 1 {
		t.Fatalf("advance index=%d want 1", l.Index())
	}
	if l.Advance() {
		t.Fatalf("advance past end accepted")
	}
	if v, ok := l.Current(); !ok || v != "b" {
		t.Fatalf("current=%q ok=%v", v, ok)
	}
}

func TestList_ClearResets(t *testing.T) {
	var l List[int]
	_ = l.Add(1)
	_ = l.Add(2)
	l.SetIndex(1)
	l.Clear()
	if l.Len() != 0 || l.Index() != 0 {
		t.Fatalf("len=%d index=%d", l.Len(), l.Index())
	}
	if _, ok := l.At(0); ok {
		t.Fatalf("At(0) after clear")
	}
	if got := l.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot=%v", got)
	}
}

func TestMode_StringRoundTrip(t *testing.T) {
	for m := Manual; m < modeCount; m++ {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Fatalf("mode=%v parsed=%v err=%v", m, got, err)
		}
	}
	if _, err := ParseMode("acro"); err == nil {
		t.Fatalf("expected error")
	}
	if s := Mode(42).String(); s != "mode(42)" {
		t.Fatalf("string=%q", s)
	}
}

func TestMode_IsAuto(t *testing.T) {
	for m := Manual; m < modeCount; m++ {
		want := m != Manual && m != MotorLocked
		if m.IsAuto() != want {
			t.Fatalf("mode=%v auto=%v want %v", m, m.IsAuto(), want)
		}
	}
}

func TestGeofence_Contains(t *testing.T) {
	g := Geofence{Enable: true, Origin: [3]float64{1, 1, 0}, LX: 4, LY: 2, Height: 3}
	in := [][3]float64{{1, 1, 0}, {3, 2, 3}, {-1, 0, 1.5}}
	out := [][3]float64{{3.1, 1, 1}, {1, 2.1, 1}, {1, 1, -0.01}, {1, 1, 3.01}}
	for _, p := range in {
		if !g.Contains(p) {
			t.Fatalf("p=%v want inside", p)
		}
	}
	for _, p := range out {
		if g.Contains(p) {
			t.Fatalf("p=%v want outside", p)
		}
	}
	g.Enable = false
	if !g.Contains([3]float64{100, 100, 100}) {
		t.Fatalf("disabled fence rejected")
	}
}
