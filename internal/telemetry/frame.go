package telemetry

import (
	"errors"
	"fmt"
)

const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	escapeXor  = 0x20

	crcPoly = 0x1021
)

// ErrMalformedFrame is returned by Unframe for frames that cannot be decoded.
// A CRC mismatch is not malformed; it is reported through crcOK.
var ErrMalformedFrame = errors.New("telemetry: malformed frame")

// crcTable drives CRC-16/XMODEM: polynomial 0x1021, zero init, no reflection,
// no final xor.
var crcTable [256]uint16

func init() {
	for i := range crcTable {
		crcTable[i] = crcByte(uint16(i) << 8)
	}
}

func crcByte(r uint16) uint16 {
	for k := 0; k < 8; k++ {
		if r&0x8000 != 0 {
			r = r<<1 ^ crcPoly
		} else {
			r <<= 1
		}
	}
	return r
}

func crcUpdate(crc uint16, b byte) uint16 {
	return crcTable[byte(crc>>8)^b] ^ crc<<8
}

func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crcUpdate(crc, b)
	}
	return crc
}

// Frame wraps message (ID + payload) for the downlink: the CRC is appended
// high byte first, flag and escape bytes are stuffed, and 0x7E delimits both
// ends.
func Frame(message []byte) []byte {
	out := make([]byte, 1, len(message)+len(message)/8+6)
	out[0] = flagByte

	var crc uint16
	for _, b := range message {
		crc = crcUpdate(crc, b)
		out = appendStuffed(out, b)
	}
	out = appendStuffed(out, byte(crc>>8))
	out = appendStuffed(out, byte(crc))
	return append(out, flagByte)
}

func appendStuffed(out []byte, b byte) []byte {
	if b == flagByte || b == escapeByte {
		return append(out, escapeByte, b^escapeXor)
	}
	return append(out, b)
}

// Unframe decodes one frame produced by Frame and returns the message without
// its CRC. Running the CRC over message and trailer leaves a zero remainder
// when the frame is intact.
func Unframe(frame []byte) (msg []byte, crcOK bool, err error) {
	if len(frame) < 2 || frame[0] != flagByte || frame[len(frame)-1] != flagByte {
		return nil, false, fmt.Errorf("%w: missing 0x7E delimiters", ErrMalformedFrame)
	}
	body := frame[1 : len(frame)-1]

	raw := make([]byte, 0, len(body))
	var crc uint16
	escaped := false
	for i, b := range body {
		switch {
		case escaped:
			b ^= escapeXor
			escaped = false
		case b == escapeByte:
			escaped = true
			continue
		case b == flagByte:
			return nil, false, fmt.Errorf("%w: flag inside frame at %d", ErrMalformedFrame, i+1)
		}
		crc = crcUpdate(crc, b)
		raw = append(raw, b)
	}
	if escaped {
		return nil, false, fmt.Errorf("%w: dangling escape", ErrMalformedFrame)
	}
	if len(raw) < 3 {
		return nil, false, fmt.Errorf("%w: %d bytes after unstuffing", ErrMalformedFrame, len(raw))
	}
	return raw[:len(raw)-2], crc == 0, nil
}
