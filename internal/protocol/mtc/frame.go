package mtc

import (
	"bytes"
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// MTC full-frame constants
const (
	FRAME_LENGTH = 10 // F0 7F 7F 01 01 hh mm ss ff F7

	HOUR_OFFSET   = 5
	MINUTE_OFFSET = 6
	SECOND_OFFSET = 7
	FRAME_OFFSET  = 8

	HOUR_MASK  = 0x1F       // low 5 bits of the hour byte
	RATE_MASK  = 0b01100000 // rate code packed into bits 5-6
	RATE_SHIFT = 5
)

// SysEx body preceding the timecode bytes: universal real time, broadcast,
// timecode sub-id, full frame.
var FULL_FRAME_PREAMBLE = []byte{0x7F, 0x7F, 0x01, 0x01}

// FULL_FRAME_HEADER is the first five bytes of every full-frame message
var FULL_FRAME_HEADER = []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01}

// ErrInvalidFrame is returned for buffers that are not MTC full-frame messages
var ErrInvalidFrame = errors.New("not an MTC full-frame message")

// RawFrame is a 10-byte MTC full-frame message as it appears on the wire
type RawFrame [FRAME_LENGTH]byte

// Timecode is the decoded content of a full-frame message
type Timecode struct {
	Hours    uint8 `json:"hours"`
	Minutes  uint8 `json:"minutes"`
	Seconds  uint8 `json:"seconds"`
	Frames   uint8 `json:"frames"`
	RateCode uint8 `json:"-"`
}

// ZeroFrame returns a valid full-frame message at 00:00:00:00, rate code 0
func ZeroFrame() RawFrame {
	var f RawFrame
	copy(f[:], FULL_FRAME_HEADER)
	f[FRAME_LENGTH-1] = 0xF7
	return f
}

// Build constructs a full-frame message from its fields
func Build(rateCode, hours, minutes, seconds, frames uint8) RawFrame {
	body := make([]byte, 0, FRAME_LENGTH-2)
	body = append(body, FULL_FRAME_PREAMBLE...)
	body = append(body, (rateCode<<RATE_SHIFT)&RATE_MASK|hours&HOUR_MASK, minutes, seconds, frames)

	var f RawFrame
	copy(f[:], midi.SysEx(body))
	return f
}

// ParseRawFrame validates data and copies it into a RawFrame
func ParseRawFrame(data []byte) (RawFrame, error) {
	var f RawFrame
	if len(data) != FRAME_LENGTH {
		return f, fmt.Errorf("%w: got %d bytes, need %d", ErrInvalidFrame, len(data), FRAME_LENGTH)
	}

	var body []byte
	if !midi.Message(data).GetSysEx(&body) || len(body) != FRAME_LENGTH-2 {
		return f, fmt.Errorf("%w: missing SysEx framing", ErrInvalidFrame)
	}
	if !bytes.Equal(body[:len(FULL_FRAME_PREAMBLE)], FULL_FRAME_PREAMBLE) {
		return f, fmt.Errorf("%w: header % X", ErrInvalidFrame, data[:HOUR_OFFSET])
	}

	copy(f[:], data)
	return f, nil
}

// Decode validates data and extracts the timecode fields.
// Field values are taken verbatim; only the framing is checked.
func Decode(data []byte) (Timecode, error) {
	f, err := ParseRawFrame(data)
	if err != nil {
		return Timecode{}, err
	}
	return f.Timecode(), nil
}

// Timecode extracts hour, rate code, minute, second and frame fields
func (f RawFrame) Timecode() Timecode {
	return Timecode{
		Hours:    HourFromHourByte(f[HOUR_OFFSET]),
		RateCode: RateCodeFromHourByte(f[HOUR_OFFSET]),
		Minutes:  f[MINUTE_OFFSET],
		Seconds:  f[SECOND_OFFSET],
		Frames:   f[FRAME_OFFSET],
	}
}

// Bytes returns a copy of the frame as a slice
func (f RawFrame) Bytes() []byte {
	b := make([]byte, FRAME_LENGTH)
	copy(b, f[:])
	return b
}

// String formats the frame as HH:MM:SS:FF
func (f RawFrame) String() string {
	return f.Timecode().String()
}

// Advance returns the frame moved forward by one frame at the given rate.
// Frames carry into seconds, seconds into minutes, minutes into the hour
// field. The hour is not wrapped at 24 and the rate bits are not guarded
// against an hour carry.
func (f RawFrame) Advance(framesPerSecond int) RawFrame {
	next := f
	next[FRAME_OFFSET]++

	if framesPerSecond > 0 && int(next[FRAME_OFFSET]) >= framesPerSecond {
		next[FRAME_OFFSET] = 0
		next[SECOND_OFFSET]++
	}

	if next[SECOND_OFFSET] >= 60 {
		next[SECOND_OFFSET] = 0
		next[MINUTE_OFFSET]++
	}

	if next[MINUTE_OFFSET] >= 60 {
		next[MINUTE_OFFSET] = 0
		next[HOUR_OFFSET]++
	}

	return next
}

// HourFromHourByte masks the rate bits out of the hour byte
func HourFromHourByte(b byte) uint8 {
	return b & HOUR_MASK
}

// RateCodeFromHourByte extracts the 2-bit rate code from the hour byte
func RateCodeFromHourByte(b byte) uint8 {
	return (b & RATE_MASK) >> RATE_SHIFT
}

// String formats the timecode as HH:MM:SS:FF
func (t Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds, t.Frames)
}
