package mtc

import (
	"errors"
	"fmt"
	"math"
)

// FrameRate is one of the four rates an MTC full frame can carry.
// The value is the 2-bit rate code packed into the hour byte.
type FrameRate uint8

const (
	FR24 FrameRate = iota // 24 fps film
	FR25                  // 25 fps EBU
	FR29                  // 29.97 fps NTSC drop-frame
	FR30                  // 30 fps non-drop
)

// DROP_FRAME_FACTOR scales a 30 fps frame count to approximate 29.97 fps
const DROP_FRAME_FACTOR = 1.001

// ErrUnknownFramerate is returned for rates outside 24/25/29/30
var ErrUnknownFramerate = errors.New("unknown framerate")

var frameRateNames = [...]string{"fr24", "fr25", "fr29", "fr30"}

var frameRateDivisors = [...]int{24, 25, 29, 30}

// String returns the rate name, e.g. "fr30"
func (r FrameRate) String() string {
	if int(r) < len(frameRateNames) {
		return frameRateNames[r]
	}
	return fmt.Sprintf("fr?%d", uint8(r))
}

// Divisor returns the integer frames per second for the rate, or 0 if the
// rate is not one of the four known codes.
func (r FrameRate) Divisor() int {
	if int(r) < len(frameRateDivisors) {
		return frameRateDivisors[r]
	}
	return 0
}

// IsDropFrame reports whether the rate is 29.97 drop-frame
func (r FrameRate) IsDropFrame() bool {
	return r == FR29
}

// FrameRateFromCode maps a rate code (0-3) to a FrameRate
func FrameRateFromCode(code uint8) (FrameRate, error) {
	if int(code) >= len(frameRateNames) {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownFramerate, code)
	}
	return FrameRate(code), nil
}

// FrameRateFromFPS maps 24, 25, 29 or 30 to a FrameRate
func FrameRateFromFPS(fps int) (FrameRate, error) {
	for i, d := range frameRateDivisors {
		if d == fps {
			return FrameRate(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %d fps", ErrUnknownFramerate, fps)
}

// DivisorForName maps a rate name to its divisor. Unknown names yield 0,
// which callers treat as "skip the frame count".
func DivisorForName(name string) int {
	for i, n := range frameRateNames {
		if n == name {
			return frameRateDivisors[i]
		}
	}
	return 0
}

// Resolution is the outcome of resolving the active frame rate for one frame
type Resolution struct {
	Name    string // e.g. "fr30"
	Divisor int    // 0 when Name is not a known rate
}

// Resolve picks the active frame rate. In auto mode the code embedded in the
// packet wins; otherwise the configured fixed rate (in fps) is used.
func Resolve(rateCode uint8, auto bool, configuredFPS int) Resolution {
	var name string
	if auto {
		name = FrameRate(rateCode).String()
	} else {
		name = fmt.Sprintf("fr%d", configuredFPS)
	}
	return Resolution{Name: name, Divisor: DivisorForName(name)}
}

// AbsoluteFrames converts a timecode into a frame count since 00:00:00:00.
// For the drop-frame divisor (29) the count is taken at 30 fps and scaled by
// 1.001, rounded to the nearest frame. A zero divisor yields 0 per field,
// leaving only the frame number.
func AbsoluteFrames(hours, minutes, seconds, frames int, divisor int) int64 {
	dropFrame := divisor == FR29.Divisor()
	if dropFrame {
		divisor = FR30.Divisor()
	}

	total := int64(hours)*3600*int64(divisor) +
		int64(minutes)*60*int64(divisor) +
		int64(seconds)*int64(divisor) +
		int64(frames)

	if !dropFrame {
		return total
	}
	return int64(math.Round(float64(total) * DROP_FRAME_FACTOR))
}

// AbsoluteFrames is a convenience wrapper over the package-level function
func (t Timecode) AbsoluteFrames(divisor int) int64 {
	return AbsoluteFrames(int(t.Hours), int(t.Minutes), int(t.Seconds), int(t.Frames), divisor)
}
