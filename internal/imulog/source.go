package imulog

import (
	"errors"
	"io"
	"sync"
	"time"
)

// Source is the sample stream shape shared with the attitude estimator.
type Source interface {
	ReadIMU() (accel, gyro [3]float64, err error)
}

// Player serves recorded samples one per ReadIMU call. Pacing is left to
// the caller's ticker.
type Player struct {
	mu      sync.Mutex
	samples []Record
	next    int
	loop    bool
}

func NewPlayer(records []Record, loop bool) (*Player, error) {
	samples := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.Start {
			samples = append(samples, r)
		}
	}
	if len(samples) == 0 {
		return nil, errors.New("imulog: no samples")
	}
	return &Player{samples: samples, loop: loop}, nil
}

// ReadIMU returns io.EOF once a non-looping player runs out.
func (p *Player) ReadIMU() (accel, gyro [3]float64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.samples) {
		if !p.loop {
			return accel, gyro, io.EOF
		}
		p.next = 0
	}
	r := p.samples[p.next]
	p.next++
	return r.Accel, r.Gyro, nil
}

func (p *Player) Len() int { return len(p.samples) }

// Recorder passes samples through from src and appends each good one to w.
type Recorder struct {
	src   Source
	w     *Writer
	nowFn func() time.Time

	errOnce sync.Once
	onErr   func(error)
}

func NewRecorder(src Source, w *Writer, onErr func(error)) *Recorder {
	return &Recorder{src: src, w: w, nowFn: time.Now, onErr: onErr}
}

func (r *Recorder) ReadIMU() (accel, gyro [3]float64, err error) {
	accel, gyro, err = r.src.ReadIMU()
	if err != nil {
		return accel, gyro, err
	}
	if werr := r.w.WriteSample(r.nowFn(), accel, gyro); werr != nil && r.onErr != nil {
		r.errOnce.Do(func() { r.onErr(werr) })
	}
	return accel, gyro, nil
}

// Close flushes the log and closes the wrapped source when it can be closed.
func (r *Recorder) Close() error {
	err := r.w.Close()
	if c, ok := r.src.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
