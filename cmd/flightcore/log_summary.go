package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"flightcore/internal/ahrs"
	"flightcore/internal/imulog"
	"flightcore/internal/quat"
)

type filterSummary struct {
	Final       quat.Euler
	MaxAbsRoll  float64
	MaxAbsPitch float64
}

type logSummary struct {
	Sessions    int
	Samples     int
	MaxDuration time.Duration
	RateHz      float64
	Filters     map[string]filterSummary
}

// summarizeIMULog replays records through each attitude filter at the
// log's mean sample rate.
func summarizeIMULog(records []imulog.Record) (logSummary, error) {
	s := logSummary{Filters: map[string]filterSummary{}}

	var first, last time.Duration
	samples := make([]imulog.Record, 0, len(records))
	for _, r := range records {
		if r.Start {
			s.Sessions++
			continue
		}
		if len(samples) == 0 {
			first = r.At
		}
		last = r.At
		if d := r.At; d > s.MaxDuration {
			s.MaxDuration = d
		}
		samples = append(samples, r)
	}
	s.Samples = len(samples)
	if s.Samples == 0 {
		return s, nil
	}
	if s.Sessions == 0 {
		s.Sessions = 1
	}

	dt := ahrs.DefaultDT
	if span := (last - first).Seconds(); s.Samples > 1 && span > 0 {
		dt = span / float64(s.Samples-1)
	}
	s.RateHz = 1 / dt

	for _, name := range []string{ahrs.FilterComplementary, ahrs.FilterMadgwick} {
		est, err := ahrs.NewEstimator(ahrs.EstimatorConfig{DT: dt, Filter: name}, nil)
		if err != nil {
			return s, errors.Wrap(err, name)
		}
		est.Initialize(samples[0].Accel)
		var fs filterSummary
		for _, r := range samples {
			_, e := est.Estimate(r.Accel, r.Gyro)
			fs.Final = e
			fs.MaxAbsRoll = math.Max(fs.MaxAbsRoll, math.Abs(e.Roll))
			fs.MaxAbsPitch = math.Max(fs.MaxAbsPitch, math.Abs(e.Pitch))
		}
		s.Filters[name] = fs
	}
	return s, nil
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	recs, err := imulog.NewReader(f).ReadAll()
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	s, err := summarizeIMULog(recs)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "sessions: %d\n", s.Sessions)
	fmt.Fprintf(w, "samples: %d\n", s.Samples)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	fmt.Fprintf(w, "rate_hz: %.1f\n", s.RateHz)
	for _, name := range []string{ahrs.FilterComplementary, ahrs.FilterMadgwick} {
		fs, ok := s.Filters[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s:\n", name)
		fmt.Fprintf(w, "  final_roll_deg: %.2f\n", fs.Final.Roll)
		fmt.Fprintf(w, "  final_pitch_deg: %.2f\n", fs.Final.Pitch)
		fmt.Fprintf(w, "  final_yaw_deg: %.2f\n", fs.Final.Yaw)
		fmt.Fprintf(w, "  max_abs_roll_deg: %.2f\n", fs.MaxAbsRoll)
		fmt.Fprintf(w, "  max_abs_pitch_deg: %.2f\n", fs.MaxAbsPitch)
	}
	return nil
}
