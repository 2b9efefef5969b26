package engine

import (
	"github.com/dbehnke/mtcreader/internal/protocol/mtc"
)

// Origin tags why a frame is being processed
type Origin int

const (
	OriginNone Origin = iota
	OriginNetwork
	OriginHeartbeat
	OriginFreewheel
)

func (o Origin) String() string {
	switch o {
	case OriginNetwork:
		return "network"
	case OriginHeartbeat:
		return "heartbeat"
	case OriginFreewheel:
		return "freewheel"
	default:
		return "none"
	}
}

// TransportState describes where the published timecode comes from
type TransportState int

const (
	Stopped TransportState = iota
	Running
	Freewheeling
)

// String returns the published name of the state
func (s TransportState) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Freewheeling:
		return "FREEWHEEL"
	default:
		return "STOPPED"
	}
}

// MarshalText publishes the state by name
func (s TransportState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TransportFor maps a tick origin to the transport state it forces.
// OriginNone leaves the engine stopped.
func TransportFor(origin Origin) TransportState {
	switch origin {
	case OriginNetwork:
		return Running
	case OriginFreewheel:
		return Freewheeling
	default:
		return Stopped
	}
}

// Tick is one frame entering the pipeline
type Tick struct {
	Frame  mtc.RawFrame
	Origin Origin
}

// state is owned by the engine and only touched while holding its lock
type state struct {
	currentFramerate int
	transport        TransportState
	freewheelActive  bool
	freewheelArmed   bool
	lastFrame        mtc.RawFrame
	currentFrame     mtc.RawFrame
}

func newState(framerate int) *state {
	return &state{
		currentFramerate: framerate,
		transport:        Stopped,
		lastFrame:        mtc.ZeroFrame(),
		currentFrame:     mtc.ZeroFrame(),
	}
}

// accept shifts the tracked pair so f becomes the current frame
func (s *state) accept(f mtc.RawFrame) {
	s.lastFrame = s.currentFrame
	s.currentFrame = f
}

// unchanged reports whether the two most recent frames are identical
func (s *state) unchanged() bool {
	return s.lastFrame == s.currentFrame
}
