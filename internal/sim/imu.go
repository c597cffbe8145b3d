package sim

import (
	"math/rand"
	"sync"

	"flightcore/internal/quat"
)

const standardGravity = 9.80665

// StaticIMU produces the samples of a vehicle held at a fixed roll and
// pitch: gravity only, plus a constant gyro bias and optional white noise.
type StaticIMU struct {
	RollDeg     float64
	PitchDeg    float64
	GyroBiasDps [3]float64
	// NoiseStd is the per-axis standard deviation, applied to accel in m/s²
	// and gyro in deg/s.
	NoiseStd float64
	Seed     int64

	once  sync.Once
	mu    sync.Mutex
	rng   *rand.Rand
	accel [3]float64
}

func (s *StaticIMU) init() {
	g := quat.FromEuler(quat.Euler{Roll: quat.Deg2Rad(s.RollDeg), Pitch: quat.Deg2Rad(s.PitchDeg)}).GravityBody()
	s.accel = [3]float64{-g[0] * standardGravity, -g[1] * standardGravity, -g[2] * standardGravity}
	s.rng = rand.New(rand.NewSource(s.Seed))
}

func (s *StaticIMU) ReadIMU() (accel, gyro [3]float64, err error) {
	s.once.Do(s.init)
	accel = s.accel
	gyro = s.GyroBiasDps
	if s.NoiseStd <= 0 {
		return accel, gyro, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < 3; i++ {
		accel[i] += s.rng.NormFloat64() * s.NoiseStd
		gyro[i] += s.rng.NormFloat64() * s.NoiseStd
	}
	return accel, gyro, nil
}
