package imulog

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReaderReadAll(t *testing.T) {
	in := strings.NewReader(`
# comment

START 6f1c2b1e-9a51-4d43-8d6e-3f4b7a0c9e21
0,0,0,-9.8,0.5,0,0
2500000, 0.1, 0, -9.8, 0, 0, -1
`)
	recs, err := NewReader(in).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if !recs[0].Start || recs[0].Session != "6f1c2b1e-9a51-4d43-8d6e-3f4b7a0c9e21" {
		t.Fatalf("unexpected header: %+v", recs[0])
	}
	if recs[1].Accel != [3]float64{0, 0, -9.8} || recs[1].Gyro != [3]float64{0.5, 0, 0} {
		t.Fatalf("unexpected sample 1: %+v", recs[1])
	}
	if recs[2].At != 2500*time.Microsecond || recs[2].Gyro[2] != -1 {
		t.Fatalf("unexpected sample 2: %+v", recs[2])
	}
}

func TestReaderReadAll_InvalidLines(t *testing.T) {
	for _, in := range []string{
		"not-a-valid-line\n",
		"0,1,2,3\n",
		"-5,0,0,0,0,0,0\n",
		"0,0,0,x,0,0,0\n",
	} {
		if _, err := NewReader(strings.NewReader(in)).ReadAll(); err == nil {
			t.Fatalf("input %q: expected error", in)
		}
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imu.log")
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	w.start = time.Unix(0, 0)

	if err := w.WriteSample(time.Unix(0, 20), [3]float64{0, 0.25, -9.80665}, [3]float64{1, -2, 3}); err != nil {
		t.Fatalf("WriteSample() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.WriteSample(time.Unix(0, 30), [3]float64{}, [3]float64{}); err == nil {
		t.Fatalf("expected error after close")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	want := "START " + w.Session().String() + "\n20,0,0.25,-9.80665,1,-2,3\n"
	if string(b) != want {
		t.Fatalf("contents=%q want %q", string(b), want)
	}

	recs, err := NewReader(strings.NewReader(string(b))).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if _, err := uuid.Parse(recs[0].Session); err != nil {
		t.Fatalf("session %q is not a uuid: %v", recs[0].Session, err)
	}
	if recs[1].Accel[2] != -9.80665 || recs[1].Gyro != [3]float64{1, -2, 3} {
		t.Fatalf("unexpected sample: %+v", recs[1])
	}
}

func TestPlayer_SkipsHeadersAndStops(t *testing.T) {
	recs := []Record{
		{Start: true, Session: "a"},
		{Accel: [3]float64{1}},
		{Start: true, Session: "b"},
		{Accel: [3]float64{2}},
	}
	p, err := NewPlayer(recs, false)
	if err != nil {
		t.Fatalf("NewPlayer() error: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("len=%d want 2", p.Len())
	}
	for _, want := range []float64{1, 2} {
		a, _, err := p.ReadIMU()
		if err != nil || a[0] != want {
			t.Fatalf("accel=%v err=%v want %v", a, err, want)
		}
	}
	if _, _, err := p.ReadIMU(); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want EOF", err)
	}
}

func TestPlayer_Loops(t *testing.T) {
	p, err := NewPlayer([]Record{{Accel: [3]float64{1}}, {Accel: [3]float64{2}}}, true)
	if err != nil {
		t.Fatalf("NewPlayer() error: %v", err)
	}
	var got []float64
	for i := 0; i < 5; i++ {
		a, _, err := p.ReadIMU()
		if err != nil {
			t.Fatalf("ReadIMU() error: %v", err)
		}
		got = append(got, a[0])
	}
	want := []float64{1, 2, 1, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v want %v", got, want)
		}
	}
}

func TestNewPlayer_Empty(t *testing.T) {
	if _, err := NewPlayer([]Record{{Start: true}}, true); err == nil {
		t.Fatalf("expected error")
	}
}

type stubSource struct {
	n      int
	err    error
	closed bool
}

func (s *stubSource) ReadIMU() (accel, gyro [3]float64, err error) {
	if s.err != nil {
		return accel, gyro, s.err
	}
	s.n++
	return [3]float64{float64(s.n)}, [3]float64{}, nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func TestRecorder_TeesSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.log")
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	src := &stubSource{}
	rec := NewRecorder(src, w, nil)
	for i := 0; i < 3; i++ {
		if _, _, err := rec.ReadIMU(); err != nil {
			t.Fatalf("ReadIMU() error: %v", err)
		}
	}
	src.err = errors.New("bus")
	if _, _, err := rec.ReadIMU(); err == nil {
		t.Fatalf("expected source error")
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !src.closed {
		t.Fatalf("expected source to be closed")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer f.Close()
	recs, err := NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(recs) != 4 || recs[3].Accel[0] != 3 {
		t.Fatalf("recs=%+v", recs)
	}
}
