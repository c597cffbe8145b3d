package icm20948

import (
	"fmt"
	"time"

	"flightcore/internal/i2c"
)

var sleep = time.Sleep

// ICM-20948 accel/gyro driver for the attitude estimator.
//
// Samples are returned in the vehicle body frame (x forward, y right,
// z down): accel in m/s², gyro in deg/s. The chip is assumed mounted
// component side up with its x axis toward the nose.

const (
	addrDefault = 0x68

	regWhoAmI  = 0x00
	whoAmIVal  = 0xEA
	regBankSel = 0x7F

	// Bank 0.
	regPwrMgmt1   = 0x06
	bitReset      = 0x80
	regIntEnable  = 0x10
	regAccelXoutH = 0x2D // contiguous accel+gyro block

	// Bank 2.
	bank2           = 2
	regGyroSmplrt   = 0x00
	regGyroConfig   = 0x01
	regAccelSmplrt2 = 0x11
	regAccelConfig  = 0x14

	// GYRO_FS_SEL=2 (±1000 dps) with DLPF enabled.
	gyroConfig = 0x02<<1 | 0x01
	// ACCEL_FS_SEL=2 (±8 g) with DLPF enabled.
	accelConfig = 0x02<<1 | 0x01

	gyroFullScaleDps = 1000.0
	accelFullScaleG  = 8.0
	baseRateHz       = 1125.0

	standardGravity = 9.80665
)

type Device struct {
	dev regIO

	curBank byte
	rateHz  float64

	scaleAccel float64
	scaleGyro  float64

	buf [12]byte
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

// New probes and configures the IMU for an output data rate close to
// rateHz.
func New(dev *i2c.Dev, rateHz float64) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	return newWithIO(dev, rateHz)
}

func newWithIO(dev regIO, rateHz float64) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	if rateHz <= 0 || rateHz > baseRateHz {
		return nil, fmt.Errorf("icm20948: rate %.0f Hz out of range", rateHz)
	}
	d := &Device{dev: dev, curBank: 0xFF}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("icm20948: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("icm20948: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(rateHz); err != nil {
		return nil, err
	}
	return d, nil
}

// sampleDivider returns the SMPLRT_DIV value for the closest rate at or
// above rateHz.
func sampleDivider(rateHz float64) byte {
	div := int(baseRateHz/rateHz) - 1
	if div < 0 {
		div = 0
	}
	if div > 255 {
		div = 255
	}
	return byte(div)
}

func (d *Device) init(rateHz float64) error {
	if err := d.setBank(0); err != nil {
		return err
	}
	_ = d.dev.WriteReg(regIntEnable, 0x00)

	if err := d.dev.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("icm20948: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)
	// Reset returns the bank select to 0.
	d.curBank = 0

	// Wake with auto clock select (PLL when ready).
	if err := d.dev.WriteReg(regPwrMgmt1, 0x01); err != nil {
		return fmt.Errorf("icm20948: wake failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	if err := d.setBank(bank2); err != nil {
		return err
	}
	div := sampleDivider(rateHz)
	if err := d.dev.WriteReg(regGyroSmplrt, div); err != nil {
		return fmt.Errorf("icm20948: gyro rate failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelSmplrt2, div); err != nil {
		return fmt.Errorf("icm20948: accel rate failed: %w", err)
	}
	if err := d.dev.WriteReg(regGyroConfig, gyroConfig); err != nil {
		return fmt.Errorf("icm20948: gyro config failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelConfig, accelConfig); err != nil {
		return fmt.Errorf("icm20948: accel config failed: %w", err)
	}
	if err := d.setBank(0); err != nil {
		return err
	}

	d.rateHz = baseRateHz / float64(int(div)+1)
	d.scaleAccel = accelFullScaleG * standardGravity / 32768.0
	d.scaleGyro = gyroFullScaleDps / 32768.0
	return nil
}

// RateHz is the configured output data rate.
func (d *Device) RateHz() float64 { return d.rateHz }

func (d *Device) setBank(bank byte) error {
	if d.curBank == bank {
		return nil
	}
	if err := d.dev.WriteReg(regBankSel, bank<<4); err != nil {
		return fmt.Errorf("icm20948: set bank %d failed: %w", bank, err)
	}
	d.curBank = bank
	return nil
}

// ReadIMU burst-reads one accel+gyro sample. It does not allocate.
func (d *Device) ReadIMU() (accel, gyro [3]float64, err error) {
	if d == nil {
		return accel, gyro, fmt.Errorf("icm20948: device is nil")
	}
	if err := d.setBank(0); err != nil {
		return accel, gyro, err
	}
	if err := d.dev.ReadReg(regAccelXoutH, d.buf[:]); err != nil {
		return accel, gyro, fmt.Errorf("icm20948: read sensors failed: %w", err)
	}

	var raw [6]float64
	for i := range raw {
		raw[i] = float64(int16(uint16(d.buf[2*i])<<8 | uint16(d.buf[2*i+1])))
	}

	// Chip frame is x forward, y left, z up.
	accel = [3]float64{raw[0] * d.scaleAccel, -raw[1] * d.scaleAccel, -raw[2] * d.scaleAccel}
	gyro = [3]float64{raw[3] * d.scaleGyro, -raw[4] * d.scaleGyro, -raw[5] * d.scaleGyro}
	return accel, gyro, nil
}
