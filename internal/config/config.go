package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AHRS      AHRSConfig      `yaml:"ahrs"`
	Autopilot AutopilotConfig `yaml:"autopilot"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Web       WebConfig       `yaml:"web"`
	MotorGate MotorGateConfig `yaml:"motor_gate"`
	Sim       SimConfig       `yaml:"sim"`
	Log       LogConfig       `yaml:"log"`
}

type AHRSConfig struct {
	Enable bool `yaml:"enable"`
	// Source is one of: sim, icm20948, replay.
	Source string  `yaml:"source"`
	RateHz float64 `yaml:"rate_hz"`
	// Filter is one of: complementary, madgwick.
	Filter              string  `yaml:"filter"`
	ComplementaryWeight float64 `yaml:"complementary_weight"`
	MadgwickBeta        float64 `yaml:"madgwick_beta"`

	I2CBus  int    `yaml:"i2c_bus"`
	IMUAddr uint16 `yaml:"imu_addr"`

	ReplayPath string `yaml:"replay_path"`
	ReplayLoop bool   `yaml:"replay_loop"`
	RecordPath string `yaml:"record_path"`

	YawRefTimeout time.Duration `yaml:"yaw_ref_timeout"`
}

type AutopilotConfig struct {
	RateHz float64 `yaml:"rate_hz"`

	TakeoffHeightM      float64 `yaml:"takeoff_height_m"`
	TakeoffSpeedMps     float64 `yaml:"takeoff_speed_mps"`
	LandingSpeedMps     float64 `yaml:"landing_speed_mps"`
	LandingAcceptLowerM float64 `yaml:"landing_accept_lower_m"`
	LandingAcceptUpperM float64 `yaml:"landing_accept_upper_m"`
	GroundThresholdM    float64 `yaml:"ground_threshold_m"`

	NudgeRateMpsPerDeg float64       `yaml:"nudge_rate_mps_per_deg"`
	StickDeadbandDeg   float64       `yaml:"stick_deadband_deg"`
	StickTimeout       time.Duration `yaml:"stick_timeout"`

	Geofence GeofenceConfig `yaml:"geofence"`
}

type GeofenceConfig struct {
	// Enable defaults to true.
	Enable  *bool      `yaml:"enable"`
	Origin  [3]float64 `yaml:"origin"`
	LX      float64    `yaml:"lx"`
	LY      float64    `yaml:"ly"`
	HeightM float64    `yaml:"height_m"`
}

func (g GeofenceConfig) Enabled() bool { return g.Enable == nil || *g.Enable }

type TelemetryConfig struct {
	Enable   bool          `yaml:"enable"`
	Dest     string        `yaml:"dest"`
	Interval time.Duration `yaml:"interval"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type MotorGateConfig struct {
	Enable bool   `yaml:"enable"`
	Chip   string `yaml:"chip"`
	Line   int    `yaml:"line"`
	// ActiveLow inverts the output level.
	ActiveLow bool          `yaml:"active_low"`
	Interval  time.Duration `yaml:"interval"`
}

type SimConfig struct {
	Vehicle VehicleSimConfig `yaml:"vehicle"`
	IMU     IMUSimConfig     `yaml:"imu"`
}

type VehicleSimConfig struct {
	Enable       bool          `yaml:"enable"`
	TimeConstant time.Duration `yaml:"time_constant"`
	Interval     time.Duration `yaml:"interval"`
}

type IMUSimConfig struct {
	RollDeg     float64    `yaml:"roll_deg"`
	PitchDeg    float64    `yaml:"pitch_deg"`
	GyroBiasDps [3]float64 `yaml:"gyro_bias_dps"`
}

type LogConfig struct {
	// Level is a logrus level name.
	Level string `yaml:"level"`
}

// Load reads, decodes and validates a YAML config. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills zero values with defaults and checks ranges.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	a := &cfg.AHRS
	if a.Source == "" {
		a.Source = "sim"
	}
	switch a.Source {
	case "sim", "icm20948", "replay":
	default:
		return fmt.Errorf("ahrs.source must be sim, icm20948 or replay")
	}
	if a.RateHz == 0 {
		a.RateHz = 400
	}
	if a.RateHz < 0 {
		return fmt.Errorf("ahrs.rate_hz must be > 0")
	}
	if a.Filter == "" {
		a.Filter = "complementary"
	}
	if a.Filter != "complementary" && a.Filter != "madgwick" {
		return fmt.Errorf("ahrs.filter must be complementary or madgwick")
	}
	if a.ComplementaryWeight == 0 {
		a.ComplementaryWeight = 0.995
	}
	if a.ComplementaryWeight <= 0 || a.ComplementaryWeight >= 1 {
		return fmt.Errorf("ahrs.complementary_weight must be in (0,1)")
	}
	if a.MadgwickBeta == 0 {
		a.MadgwickBeta = 0.3
	}
	if a.MadgwickBeta < 0 {
		return fmt.Errorf("ahrs.madgwick_beta must be >= 0")
	}
	if a.I2CBus == 0 {
		a.I2CBus = 1
	}
	if a.IMUAddr == 0 {
		a.IMUAddr = 0x68
	}
	if a.Source == "replay" && a.ReplayPath == "" {
		return fmt.Errorf("ahrs.replay_path is required when ahrs.source is replay")
	}
	if a.YawRefTimeout <= 0 {
		a.YawRefTimeout = 500 * time.Millisecond
	}

	ap := &cfg.Autopilot
	if ap.RateHz == 0 {
		ap.RateHz = 100
	}
	if ap.RateHz < 0 {
		return fmt.Errorf("autopilot.rate_hz must be > 0")
	}
	if ap.TakeoffHeightM == 0 {
		ap.TakeoffHeightM = 1.0
	}
	if ap.TakeoffSpeedMps == 0 {
		ap.TakeoffSpeedMps = 0.32
	}
	if ap.LandingSpeedMps == 0 {
		ap.LandingSpeedMps = 0.52
	}
	if ap.LandingAcceptLowerM == 0 {
		ap.LandingAcceptLowerM = 0.10
	}
	if ap.LandingAcceptUpperM == 0 {
		ap.LandingAcceptUpperM = 0.12
	}
	if ap.GroundThresholdM == 0 {
		ap.GroundThresholdM = 0.2
	}
	if ap.TakeoffHeightM <= 0 || ap.TakeoffSpeedMps <= 0 || ap.LandingSpeedMps <= 0 {
		return fmt.Errorf("autopilot takeoff/landing heights and speeds must be > 0")
	}
	if ap.LandingAcceptLowerM < 0 || ap.LandingAcceptUpperM < ap.LandingAcceptLowerM {
		return fmt.Errorf("autopilot.landing_accept_upper_m must be >= landing_accept_lower_m >= 0")
	}
	if ap.NudgeRateMpsPerDeg == 0 {
		ap.NudgeRateMpsPerDeg = 0.04
	}
	if ap.StickDeadbandDeg == 0 {
		ap.StickDeadbandDeg = 5
	}
	if ap.NudgeRateMpsPerDeg < 0 || ap.StickDeadbandDeg < 0 {
		return fmt.Errorf("autopilot nudge rate and stick dead-band must be >= 0")
	}
	if ap.StickTimeout <= 0 {
		ap.StickTimeout = 300 * time.Millisecond
	}
	g := &ap.Geofence
	if g.LX == 0 {
		g.LX = 10
	}
	if g.LY == 0 {
		g.LY = 10
	}
	if g.HeightM == 0 {
		g.HeightM = 5
	}
	if g.LX < 0 || g.LY < 0 || g.HeightM < 0 {
		return fmt.Errorf("autopilot.geofence extents must be > 0")
	}
	if g.Enabled() && ap.TakeoffHeightM > g.Origin[2]+g.HeightM {
		return fmt.Errorf("autopilot.takeoff_height_m is above autopilot.geofence.height_m")
	}
	if g.Enabled() && g.Origin[2] > ap.LandingAcceptLowerM {
		return fmt.Errorf("autopilot.geofence.origin z must be <= autopilot.landing_accept_lower_m")
	}

	t := &cfg.Telemetry
	if t.Enable && t.Dest == "" {
		return fmt.Errorf("telemetry.dest is required")
	}
	if t.Interval <= 0 {
		t.Interval = 100 * time.Millisecond
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	mg := &cfg.MotorGate
	if mg.Chip == "" {
		mg.Chip = "gpiochip0"
	}
	if mg.Enable && mg.Line < 0 {
		return fmt.Errorf("motor_gate.line must be >= 0")
	}
	if mg.Interval <= 0 {
		mg.Interval = 20 * time.Millisecond
	}

	v := &cfg.Sim.Vehicle
	if v.TimeConstant <= 0 {
		v.TimeConstant = 300 * time.Millisecond
	}
	if v.Interval <= 0 {
		v.Interval = 20 * time.Millisecond
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level %q is not a valid level", cfg.Log.Level)
	}
	return nil
}
