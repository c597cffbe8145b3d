package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

const (
	MsgAttitude byte = 0x01
	MsgStatus   byte = 0x02

	attitudeLen = 16
	statusLen   = 38
)

// Attitude message layout (big-endian):
//
//	[0]     0x01
//	[1]     flags: bit0 valid, bit1 yaw reference active
//	[2:8]   roll, pitch, yaw int16, 0.01 deg
//	[8:16]  q0..q3 int16, scaled by 32767
type Attitude struct {
	Valid        bool
	YawRefActive bool

	RollDeg  float64
	PitchDeg float64
	YawDeg   float64
	Q        [4]float64
}

// Status message layout (big-endian):
//
//	[0]      0x02
//	[1]      mode
//	[2]      flags: bit0 armed, bit1 motor locked, bit2 motors enabled,
//	         bit3 mission halted, bit4 mission loop
//	[3]      waypoint count
//	[4]      waypoint index
//	[5]      trajectory count
//	[6]      trajectory index
//	[7:19]   position x, y, z int32, mm
//	[19:22]  reserved
//	[22:38]  session id
type Status struct {
	Mode          uint8
	Armed         bool
	MotorLocked   bool
	MotorsEnabled bool
	MissionHalted bool
	MissionLoop   bool

	WaypointCount   int
	WaypointIndex   int
	TrajectoryCount int
	TrajectoryIndex int

	Position [3]float64
	Session  uuid.UUID
}

func AttitudeFrame(a Attitude) []byte {
	msg := make([]byte, attitudeLen)
	msg[0] = MsgAttitude
	if a.Valid {
		msg[1] |= 0x01
	}
	if a.YawRefActive {
		msg[1] |= 0x02
	}
	binary.BigEndian.PutUint16(msg[2:], uint16(scaleInt16(a.RollDeg, 100)))
	binary.BigEndian.PutUint16(msg[4:], uint16(scaleInt16(a.PitchDeg, 100)))
	binary.BigEndian.PutUint16(msg[6:], uint16(scaleInt16(a.YawDeg, 100)))
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint16(msg[8+2*i:], uint16(scaleInt16(a.Q[i], 32767)))
	}
	return Frame(msg)
}

func ParseAttitude(msg []byte) (Attitude, error) {
	if len(msg) != attitudeLen || msg[0] != MsgAttitude {
		return Attitude{}, fmt.Errorf("not an attitude message")
	}
	a := Attitude{
		Valid:        msg[1]&0x01 != 0,
		YawRefActive: msg[1]&0x02 != 0,
		RollDeg:      float64(int16(binary.BigEndian.Uint16(msg[2:]))) / 100,
		PitchDeg:     float64(int16(binary.BigEndian.Uint16(msg[4:]))) / 100,
		YawDeg:       float64(int16(binary.BigEndian.Uint16(msg[6:]))) / 100,
	}
	for i := 0; i < 4; i++ {
		a.Q[i] = float64(int16(binary.BigEndian.Uint16(msg[8+2*i:]))) / 32767
	}
	return a, nil
}

func StatusFrame(s Status) []byte {
	msg := make([]byte, statusLen)
	msg[0] = MsgStatus
	msg[1] = s.Mode
	for bit, on := range []bool{s.Armed, s.MotorLocked, s.MotorsEnabled, s.MissionHalted, s.MissionLoop} {
		if on {
			msg[2] |= 1 << bit
		}
	}
	msg[3] = clampByte(s.WaypointCount)
	msg[4] = clampByte(s.WaypointIndex)
	msg[5] = clampByte(s.TrajectoryCount)
	msg[6] = clampByte(s.TrajectoryIndex)
	for i := 0; i < 3; i++ {
		binary.BigEndian.PutUint32(msg[7+4*i:], uint32(scaleInt32(s.Position[i], 1000)))
	}
	copy(msg[22:], s.Session[:])
	return Frame(msg)
}

func ParseStatus(msg []byte) (Status, error) {
	if len(msg) != statusLen || msg[0] != MsgStatus {
		return Status{}, fmt.Errorf("not a status message")
	}
	s := Status{
		Mode:            msg[1],
		Armed:           msg[2]&0x01 != 0,
		MotorLocked:     msg[2]&0x02 != 0,
		MotorsEnabled:   msg[2]&0x04 != 0,
		MissionHalted:   msg[2]&0x08 != 0,
		MissionLoop:     msg[2]&0x10 != 0,
		WaypointCount:   int(msg[3]),
		WaypointIndex:   int(msg[4]),
		TrajectoryCount: int(msg[5]),
		TrajectoryIndex: int(msg[6]),
	}
	for i := 0; i < 3; i++ {
		s.Position[i] = float64(int32(binary.BigEndian.Uint32(msg[7+4*i:]))) / 1000
	}
	copy(s.Session[:], msg[22:])
	return s, nil
}

func scaleInt16(v, scale float64) int16 {
	x := math.Round(v * scale)
	if math.IsNaN(x) {
		return 0
	}
	if x > math.MaxInt16 {
		return math.MaxInt16
	}
	if x < math.MinInt16 {
		return math.MinInt16
	}
	return int16(x)
}

func scaleInt32(v, scale float64) int32 {
	x := math.Round(v * scale)
	if math.IsNaN(x) {
		return 0
	}
	if x > math.MaxInt32 {
		return math.MaxInt32
	}
	if x < math.MinInt32 {
		return math.MinInt32
	}
	return int32(x)
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 0xFF {
		return 0xFF
	}
	return byte(v)
}
