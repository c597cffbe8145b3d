package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"flightcore/internal/ahrs"
	"flightcore/internal/autopilot"
	"flightcore/internal/config"
	"flightcore/internal/guidance"
	"flightcore/internal/i2c"
	"flightcore/internal/imulog"
	"flightcore/internal/motorgate"
	"flightcore/internal/sensors/icm20948"
	"flightcore/internal/sim"
	"flightcore/internal/telemetry"
	"flightcore/internal/udp"
	"flightcore/internal/web"
)

// runtime owns every service of one flight session.
type runtime struct {
	cfg     config.Config
	log     *logrus.Entry
	session uuid.UUID

	ahrsSvc *ahrs.Service
	yawRef  *ahrs.ExternalYaw
	stick   *autopilot.StickInput
	state   *autopilot.State
	sup     *autopilot.Supervisor
	vehicle *sim.Vehicle
	gate    *motorgate.Gate
	telem   *telemetry.Service
	sender  *udp.Broadcaster

	attitude *web.AttitudeBroadcaster
	handler  http.Handler

	closers []func()
}

func newRuntime(cfg config.Config, logger *logrus.Logger, logs *web.LogBuffer) (_ *runtime, err error) {
	if err := config.DefaultAndValidate(&cfg); err != nil {
		return nil, err
	}
	session := uuid.New()
	rt := &runtime{
		cfg:     cfg,
		log:     logger.WithField("session", session.String()),
		session: session,
	}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.yawRef = ahrs.NewExternalYaw(cfg.AHRS.YawRefTimeout)
	if cfg.AHRS.Enable {
		src, err := openIMUSource(cfg, rt.log)
		if err != nil {
			return nil, err
		}
		svc, err := ahrs.New(ahrs.Config{
			Enable:              true,
			RateHz:              cfg.AHRS.RateHz,
			Filter:              cfg.AHRS.Filter,
			ComplementaryWeight: cfg.AHRS.ComplementaryWeight,
			MadgwickBeta:        cfg.AHRS.MadgwickBeta,
		}, src, rt.yawRef, rt.log.WithField("component", "ahrs"))
		if err != nil {
			if c, ok := src.(io.Closer); ok {
				_ = c.Close()
			}
			return nil, errors.Wrap(err, "ahrs init")
		}
		rt.ahrsSvc = svc
		rt.closers = append(rt.closers, svc.Close)
	}

	ap := cfg.Autopilot
	rt.state = autopilot.NewState(autopilot.Limits{
		TakeoffHeight:      ap.TakeoffHeightM,
		TakeoffSpeed:       ap.TakeoffSpeedMps,
		LandingSpeed:       ap.LandingSpeedMps,
		LandingAcceptLower: ap.LandingAcceptLowerM,
		LandingAcceptUpper: ap.LandingAcceptUpperM,
		GroundThreshold:    ap.GroundThresholdM,
	}, autopilot.Geofence{
		Enable: ap.Geofence.Enabled(),
		Origin: ap.Geofence.Origin,
		LX:     ap.Geofence.LX,
		LY:     ap.Geofence.LY,
		Height: ap.Geofence.HeightM,
	})
	rt.stick = autopilot.NewStickInput(ap.StickTimeout)

	// A nil *ahrs.Service must not become a non-nil interface.
	var rot autopilot.RotationProvider
	if rt.ahrsSvc != nil {
		rot = rt.ahrsSvc
	}
	rt.sup, err = autopilot.NewSupervisor(autopilot.Config{
		RateHz:        ap.RateHz,
		NudgeRate:     ap.NudgeRateMpsPerDeg,
		StickDeadband: ap.StickDeadbandDeg,
		Generators:    guidance.Default(),
	}, rt.state, rot, rt.stick, rt.log.WithField("component", "autopilot"))
	if err != nil {
		return nil, errors.Wrap(err, "autopilot init")
	}
	rt.closers = append(rt.closers, rt.sup.Close)

	if cfg.Sim.Vehicle.Enable {
		rt.vehicle = sim.NewVehicle(sim.VehicleConfig{
			TimeConstant: cfg.Sim.Vehicle.TimeConstant,
			Interval:     cfg.Sim.Vehicle.Interval,
		}, rt.state, rt.state, rt.log.WithField("component", "sim"))
		rt.closers = append(rt.closers, rt.vehicle.Close)
	}

	if cfg.MotorGate.Enable {
		rt.gate, err = motorgate.New(motorgate.Config{
			Chip:      cfg.MotorGate.Chip,
			Line:      cfg.MotorGate.Line,
			ActiveLow: cfg.MotorGate.ActiveLow,
			Interval:  cfg.MotorGate.Interval,
		}, rt.state, rt.log.WithField("component", "motorgate"))
		if err != nil {
			return nil, errors.Wrap(err, "motor gate init")
		}
		rt.closers = append(rt.closers, func() { _ = rt.gate.Close() })
	}

	// Keep the attitude source a nil interface when the estimator is off.
	var att web.AHRSController
	if rt.ahrsSvc != nil {
		att = rt.ahrsSvc
	}

	if cfg.Telemetry.Enable {
		rt.sender, err = udp.NewBroadcaster(cfg.Telemetry.Dest)
		if err != nil {
			return nil, errors.Wrapf(err, "telemetry dest %s", cfg.Telemetry.Dest)
		}
		rt.closers = append(rt.closers, func() { _ = rt.sender.Close() })
		var tatt telemetry.AttitudeSource
		if rt.ahrsSvc != nil {
			tatt = rt.ahrsSvc
		}
		rt.telem, err = telemetry.New(telemetry.Config{
			Interval: cfg.Telemetry.Interval,
			Session:  session,
		}, rt.sender, tatt, rt.state, rt.log.WithField("component", "telemetry"))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, rt.telem.Close)
	}

	status := web.NewStatus(session, att, rt.state)
	if rt.telem != nil {
		status.SetTelemetry(cfg.Telemetry.Dest, rt.telem)
	}
	rt.attitude = web.NewAttitudeBroadcaster()
	rt.handler = web.Handler(web.Deps{
		Status:    status,
		Logs:      logs,
		Attitude:  rt.attitude,
		AHRS:      att,
		Autopilot: rt.sup,
		YawRef:    rt.yawRef,
		Stick:     rt.stick,
	})
	return rt, nil
}

// openIMUSource picks the configured sample source and optionally tees it
// into an IMU log.
func openIMUSource(cfg config.Config, log *logrus.Entry) (ahrs.Source, error) {
	a := cfg.AHRS
	var src ahrs.Source
	switch a.Source {
	case "sim":
		im := cfg.Sim.IMU
		src = &sim.StaticIMU{RollDeg: im.RollDeg, PitchDeg: im.PitchDeg, GyroBiasDps: im.GyroBiasDps}
	case "icm20948":
		busPath := fmt.Sprintf("/dev/i2c-%d", a.I2CBus)
		bus, err := i2c.Open(busPath)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", busPath)
		}
		dev, err := icm20948.New(bus.Dev(a.IMUAddr), a.RateHz)
		if err != nil {
			_ = bus.Close()
			return nil, errors.Wrap(err, "imu init")
		}
		log.WithFields(logrus.Fields{"bus": busPath, "addr": fmt.Sprintf("0x%02x", a.IMUAddr), "odr_hz": dev.RateHz()}).Info("icm20948 ready")
		src = &busIMU{Device: dev, bus: bus}
	case "replay":
		f, err := os.Open(a.ReplayPath)
		if err != nil {
			return nil, errors.Wrap(err, "open imu log")
		}
		recs, err := imulog.NewReader(f).ReadAll()
		_ = f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "read imu log %s", a.ReplayPath)
		}
		p, err := imulog.NewPlayer(recs, a.ReplayLoop)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"path": a.ReplayPath, "samples": p.Len(), "loop": a.ReplayLoop}).Info("imu replay loaded")
		src = p
	default:
		return nil, errors.Errorf("unknown imu source %q", a.Source)
	}

	if a.RecordPath == "" {
		return src, nil
	}
	w, err := imulog.CreateWriter(a.RecordPath)
	if err != nil {
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, errors.Wrap(err, "create imu log")
	}
	log.WithFields(logrus.Fields{"path": a.RecordPath, "log_session": w.Session().String()}).Info("imu recording")
	return imulog.NewRecorder(src, w, func(err error) {
		log.WithError(err).Warn("imu log write failed")
	}), nil
}

// busIMU releases the I2C bus with the device.
type busIMU struct {
	*icm20948.Device
	bus *i2c.Bus
}

func (b *busIMU) Close() error { return b.bus.Close() }

func (rt *runtime) Start(ctx context.Context) error {
	if rt.vehicle != nil {
		rt.vehicle.Start(ctx)
	}
	if rt.ahrsSvc != nil {
		if err := rt.ahrsSvc.Start(ctx); err != nil {
			return errors.Wrap(err, "ahrs start")
		}
		go rt.attitude.Pump(ctx, rt.ahrsSvc, 0)
	}
	if err := rt.sup.Start(ctx); err != nil {
		return errors.Wrap(err, "autopilot start")
	}
	if rt.gate != nil {
		rt.gate.Start(ctx)
	}
	if rt.telem != nil {
		rt.telem.Start(ctx)
		rt.log.WithField("dest", rt.cfg.Telemetry.Dest).Info("telemetry started")
	}
	if rt.cfg.Web.Enable {
		go func() {
			rt.log.WithField("listen", rt.cfg.Web.Listen).Info("web listening")
			if err := web.Serve(ctx, rt.cfg.Web.Listen, rt.handler); err != nil && ctx.Err() == nil {
				rt.log.WithError(err).Error("web server stopped")
			}
		}()
	}
	return nil
}

// Close stops services in reverse start order. The motor gate is closed
// before the supervisor so the line drops first.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
