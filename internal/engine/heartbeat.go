package engine

import (
	"time"

	"github.com/dbehnke/mtcreader/internal/metrics"
	"github.com/dbehnke/mtcreader/internal/network"
)

// heartbeat re-publishes the last timecode as STOPPED when nothing has
// moved since the previous probe
type heartbeat struct {
	st      *state
	timer   *network.Timer
	metrics *metrics.Metrics
}

func newHeartbeat(st *state, interval time.Duration, m *metrics.Metrics) *heartbeat {
	return &heartbeat{
		st:      st,
		timer:   network.NewPeriodicTimer(interval),
		metrics: m,
	}
}

func (h *heartbeat) start() {
	h.timer.Start()
}

func (h *heartbeat) running() bool {
	return h.timer.IsRunning()
}

func (h *heartbeat) clock(elapsed time.Duration, dispatch func(Tick)) {
	for fired := h.timer.Clock(elapsed); fired > 0; fired-- {
		h.probe(dispatch)
	}
}

func (h *heartbeat) probe(dispatch func(Tick)) {
	if h.st.unchanged() && !h.st.freewheelActive {
		h.metrics.HeartbeatProbed()
		dispatch(Tick{Frame: h.st.currentFrame, Origin: OriginHeartbeat})
		return
	}

	// Signal moved or is being extrapolated: only resync the pair
	h.st.lastFrame = h.st.currentFrame
}

func (h *heartbeat) reset() {
	h.timer.Stop()
}
