package ahrs

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	matrix "github.com/skelterjohn/go.matrix"

	"flightcore/internal/quat"
)

// Source delivers one body-frame IMU sample per estimator tick: accel in
// m/s² and gyro in deg/s.
type Source interface {
	ReadIMU() (accel, gyro [3]float64, err error)
}

type Config struct {
	Enable bool
	RateHz float64
	Filter string

	ComplementaryWeight float64
	MadgwickBeta        float64

	// ZeroDriftWindow is how long ZeroDrift averages the gyro.
	ZeroDriftWindow time.Duration
}

type Snapshot struct {
	Valid bool

	RollDeg  float64
	PitchDeg float64
	YawDeg   float64
	Q        quat.Quat

	YawRefActive      bool
	GyroBiasDegPerSec [3]float64

	Ticks      uint64
	ReadErrors uint64
	LastError  string
	UpdatedAt  time.Time
}

// Service runs the estimator on its own ticker and publishes the attitude.
// It is the only writer of the attitude; everything else reads snapshots.
type Service struct {
	cfg    Config
	src    Source
	est    *Estimator
	yawRef YawReference
	log    *logrus.Entry

	nowFn func() time.Time

	zeroDriftCh chan chan error

	mu   sync.RWMutex
	snap Snapshot
	rot  *matrix.DenseMatrix
	bias [3]float64

	// Owned by the run goroutine.
	seeded  bool
	errLogd bool
	cal     calibration

	stopOnce sync.Once
	stopCh   chan struct{}
}

type calibration struct {
	active bool
	done   chan error
	start  time.Time
	sum    [3]float64
	n      int
}

func New(cfg Config, src Source, yawRef YawReference, log *logrus.Entry) (*Service, error) {
	if src == nil {
		return nil, fmt.Errorf("ahrs: source is nil")
	}
	if cfg.RateHz == 0 {
		cfg.RateHz = 1.0 / DefaultDT
	}
	if cfg.RateHz < 0 {
		return nil, fmt.Errorf("ahrs: rate must be > 0")
	}
	if cfg.ZeroDriftWindow <= 0 {
		cfg.ZeroDriftWindow = 2 * time.Second
	}
	if log == nil {
		log = logrus.WithField("component", "ahrs")
	}
	est, err := NewEstimator(EstimatorConfig{
		DT:                  1.0 / cfg.RateHz,
		Filter:              cfg.Filter,
		ComplementaryWeight: cfg.ComplementaryWeight,
		MadgwickBeta:        cfg.MadgwickBeta,
	}, yawRef)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:         cfg,
		src:         src,
		est:         est,
		yawRef:      yawRef,
		log:         log,
		nowFn:       func() time.Time { return time.Now().UTC() },
		zeroDriftCh: make(chan chan error, 1),
		rot:         quat.NewRotation(quat.Identity),
		stopCh:      make(chan struct{}),
	}
	s.snap.Q = quat.Identity
	return s, nil
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("ahrs: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	s.log.WithFields(logrus.Fields{
		"rate_hz": s.cfg.RateHz,
		"filter":  s.cfg.Filter,
	}).Info("ahrs started")
	go s.run(ctx)
	return nil
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if c, ok := s.src.(io.Closer); ok {
			_ = c.Close()
		}
	})
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Attitude returns roll, pitch and yaw in degrees and the quaternion.
func (s *Service) Attitude() (roll, pitch, yaw float64, q quat.Quat) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.RollDeg, s.snap.PitchDeg, s.snap.YawDeg, s.snap.Q
}

// BodyToInertial returns the current body-to-inertial rotation.
func (s *Service) BodyToInertial() [3][3]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return quat.Array(s.rot)
}

// ZeroDrift averages the gyro over the configured window while the vehicle
// is still and subtracts the result from subsequent samples.
func (s *Service) ZeroDrift(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("ahrs: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ahrs: ctx is nil")
	}
	s.mu.RLock()
	valid := s.snap.Valid
	s.mu.RUnlock()
	if !valid {
		return fmt.Errorf("ahrs: no imu samples yet")
	}

	done := make(chan error, 1)
	select {
	case s.zeroDriftCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("ahrs: zero drift already in progress")
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run(ctx context.Context) {
	period := time.Duration(float64(time.Second) / s.cfg.RateHz)
	tick := time.NewTicker(period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.stopCh:
			return
		case done := <-s.zeroDriftCh:
			s.beginCalibration(done, s.nowFn())
		case <-tick.C:
			s.step(s.nowFn())
		}
	}
}

func (s *Service) beginCalibration(done chan error, now time.Time) {
	if s.cal.active {
		done <- fmt.Errorf("ahrs: zero drift already in progress")
		return
	}
	s.cal = calibration{active: true, done: done, start: now}
}

// step runs one estimator tick. A failed read leaves the last attitude in
// place.
func (s *Service) step(now time.Time) {
	accel, gyro, err := s.src.ReadIMU()
	if err != nil {
		s.mu.Lock()
		s.snap.ReadErrors++
		s.snap.LastError = err.Error()
		s.mu.Unlock()
		if !s.errLogd {
			s.log.WithError(err).Warn("imu read failed")
			s.errLogd = true
		}
		return
	}
	if s.errLogd {
		s.log.Info("imu read recovered")
		s.errLogd = false
	}

	if !s.seeded {
		s.est.Initialize(accel)
		s.seeded = true
	}

	s.mu.RLock()
	bias := s.bias
	s.mu.RUnlock()

	s.accumulateCalibration(gyro, now)

	corrected := [3]float64{gyro[0] - bias[0], gyro[1] - bias[1], gyro[2] - bias[2]}
	q, e := s.est.Estimate(accel, corrected)

	s.mu.Lock()
	quat.FillRotation(s.rot, q)
	s.snap.Valid = true
	s.snap.Q = q
	s.snap.RollDeg = e.Roll
	s.snap.PitchDeg = e.Pitch
	s.snap.YawDeg = e.Yaw
	s.snap.YawRefActive = s.yawRef != nil && s.yawRef.Available()
	s.snap.GyroBiasDegPerSec = s.bias
	s.snap.Ticks++
	s.snap.LastError = ""
	s.snap.UpdatedAt = now
	s.mu.Unlock()
}

func (s *Service) accumulateCalibration(gyro [3]float64, now time.Time) {
	if !s.cal.active {
		return
	}
	s.cal.sum[0] += gyro[0]
	s.cal.sum[1] += gyro[1]
	s.cal.sum[2] += gyro[2]
	s.cal.n++
	if now.Sub(s.cal.start) < s.cfg.ZeroDriftWindow {
		return
	}

	n := float64(s.cal.n)
	b := [3]float64{s.cal.sum[0] / n, s.cal.sum[1] / n, s.cal.sum[2] / n}
	s.mu.Lock()
	s.bias = b
	s.mu.Unlock()
	s.log.WithField("bias_dps", b).Info("gyro drift zeroed")

	s.cal.done <- nil
	s.cal = calibration{}
}
