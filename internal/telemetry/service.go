package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flightcore/internal/ahrs"
	"flightcore/internal/autopilot"
)

type Sender interface {
	Send(payload []byte) error
}

type AttitudeSource interface {
	Snapshot() ahrs.Snapshot
}

type Config struct {
	Interval time.Duration
	Session  uuid.UUID
}

// Service sends one attitude and one status frame per interval.
type Service struct {
	cfg  Config
	out  Sender
	att  AttitudeSource
	view autopilot.View
	log  *logrus.Entry

	stopOnce sync.Once
	stopCh   chan struct{}

	mu      sync.Mutex
	sent    uint64
	errs    uint64
	errLogd bool
}

func New(cfg Config, out Sender, att AttitudeSource, view autopilot.View, log *logrus.Entry) (*Service, error) {
	if out == nil {
		return nil, fmt.Errorf("telemetry: sender is nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if log == nil {
		log = logrus.WithField("component", "telemetry")
	}
	return &Service{cfg: cfg, out: out, att: att, view: view, log: log, stopCh: make(chan struct{})}, nil
}

func (s *Service) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Service) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Service) run(ctx context.Context) {
	tick := time.NewTicker(s.cfg.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-tick.C:
			s.SendOnce()
		}
	}
}

// Frames builds the frames for the current state.
func (s *Service) Frames() [][]byte {
	frames := make([][]byte, 0, 2)
	if s.att != nil {
		snap := s.att.Snapshot()
		frames = append(frames, AttitudeFrame(Attitude{
			Valid:        snap.Valid,
			YawRefActive: snap.YawRefActive,
			RollDeg:      snap.RollDeg,
			PitchDeg:     snap.PitchDeg,
			YawDeg:       snap.YawDeg,
			Q:            snap.Q,
		}))
	}
	if s.view != nil {
		ms := s.view.Mission()
		frames = append(frames, StatusFrame(Status{
			Mode:            uint8(s.view.Mode()),
			Armed:           s.view.Armed(),
			MotorLocked:     s.view.MotorLocked(),
			MotorsEnabled:   s.view.MotorsEnabled(),
			MissionHalted:   ms.Halted,
			MissionLoop:     ms.Loop,
			WaypointCount:   ms.WaypointCount,
			WaypointIndex:   ms.WaypointIndex,
			TrajectoryCount: ms.TrajectoryCount,
			TrajectoryIndex: ms.TrajectoryIndex,
			Position:        s.view.Pose().Position,
			Session:         s.cfg.Session,
		}))
	}
	return frames
}

// SendOnce sends the current frames. Send failures are counted and logged
// once until the link recovers.
func (s *Service) SendOnce() {
	var failed error
	for _, f := range s.Frames() {
		if err := s.out.Send(f); err != nil {
			failed = err
			continue
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if failed != nil {
		s.errs++
		if !s.errLogd {
			s.log.WithError(failed).Warn("telemetry send failed")
			s.errLogd = true
		}
		return
	}
	s.sent++
	if s.errLogd {
		s.log.Info("telemetry send recovered")
		s.errLogd = false
	}
}

// Counters returns the number of successful and failed intervals.
func (s *Service) Counters() (sent, errs uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.errs
}
