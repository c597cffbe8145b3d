package imulog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START <session>" begins a recording session; sample times are
//   relative to it.
// - Data lines are: <t_ns>,ax,ay,az,gx,gy,gz
//   with accel in m/s² and gyro in deg/s, body frame.

type Record struct {
	// Start marks a session header; Session holds its id.
	Start   bool
	Session string

	At    time.Duration
	Accel [3]float64
	Gyro  [3]float64
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 4096)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" || strings.HasPrefix(line, "START ") {
			recs = append(recs, Record{Start: true, Session: strings.TrimSpace(strings.TrimPrefix(line, "START"))})
			continue
		}

		rec, err := parseSample(line)
		if err != nil {
			return nil, fmt.Errorf("imulog line %d: %w", lineNo, err)
		}
		recs = append(recs, rec)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func parseSample(line string) (Record, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 7 {
		return Record{}, fmt.Errorf("want 7 fields, got %d: %q", len(fields), line)
	}
	tsNs, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid timestamp %q: %w", fields[0], err)
	}
	if tsNs < 0 {
		return Record{}, fmt.Errorf("invalid timestamp (negative): %d", tsNs)
	}
	var v [6]float64
	for i := range v {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid value %q: %w", fields[i+1], err)
		}
	}
	return Record{
		At:    time.Duration(tsNs),
		Accel: [3]float64{v[0], v[1], v[2]},
		Gyro:  [3]float64{v[3], v[4], v[5]},
	}, nil
}

type Writer struct {
	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	start   time.Time
	session uuid.UUID
	closed  bool
}

// CreateWriter opens path and writes a fresh session header.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	session := uuid.New()
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := fmt.Fprintf(bw, "START %s\n", session); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now(), session: session}, nil
}

func (ww *Writer) Session() uuid.UUID { return ww.session }

func (ww *Writer) WriteSample(now time.Time, accel, gyro [3]float64) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("imulog writer is closed")
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%g,%g,%g,%g,%g,%g\n",
		d.Nanoseconds(), accel[0], accel[1], accel[2], gyro[0], gyro[1], gyro[2])
	return err
}

func (ww *Writer) Flush() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
