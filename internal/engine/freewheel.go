package engine

import (
	"log"
	"time"

	"github.com/dbehnke/mtcreader/internal/metrics"
	"github.com/dbehnke/mtcreader/internal/network"
)

// clockedSource produces ticks from timers advanced by the engine loop
type clockedSource interface {
	clock(elapsed time.Duration, dispatch func(Tick))
	reset()
}

// freewheel extrapolates the last network timecode when frames stop
// arriving. The loss check is a one-shot timer armed by the first network
// tick and refreshed by each following one; once it fires, a periodic
// timer advances the current frame for a bounded number of frames.
type freewheel struct {
	st        *state
	enabled   bool
	tolerance time.Duration
	frames    int
	remaining int

	check  *network.Timer
	ticker *network.Timer

	logger  *log.Logger
	debug   bool
	metrics *metrics.Metrics
}

func newFreewheel(st *state, opts Options, logger *log.Logger, m *metrics.Metrics) *freewheel {
	return &freewheel{
		st:        st,
		enabled:   opts.UseFreewheel,
		tolerance: opts.FreewheelTolerance,
		frames:    opts.FreewheelFrames,
		check:     network.NewTimer(0),
		ticker:    network.NewPeriodicTimer(0),
		logger:    logger,
		debug:     opts.Debug,
		metrics:   m,
	}
}

// framePeriod is the duration of one frame at the current rate
func (f *freewheel) framePeriod() time.Duration {
	if f.st.currentFramerate <= 0 {
		return 0
	}
	return time.Second / time.Duration(f.st.currentFramerate)
}

// lossTimeout is how long without a network frame before freewheeling
func (f *freewheel) lossTimeout() time.Duration {
	return f.framePeriod() + f.tolerance
}

// arm runs after every processed tick. The first network tick of an
// episode schedules the loss check; later ticks push it back while the
// engine is not yet freewheeling.
func (f *freewheel) arm(origin Origin) {
	if !f.enabled {
		return
	}

	switch {
	case !f.st.freewheelArmed && origin == OriginNetwork:
		f.check.SetTimeout(f.lossTimeout())
		f.check.Start()
		f.st.freewheelArmed = true
	case f.st.freewheelArmed && !f.st.freewheelActive:
		f.check.Refresh()
	}
}

func (f *freewheel) clock(elapsed time.Duration, dispatch func(Tick)) {
	// The ticker is clocked before the check so a freewheel that starts in
	// this step does not also consume the same elapsed time.
	for fired := f.ticker.Clock(elapsed); fired > 0 && f.st.freewheelActive; fired-- {
		f.step(dispatch)
	}

	if f.check.Clock(elapsed) > 0 {
		f.begin()
	}
}

func (f *freewheel) begin() {
	f.st.freewheelActive = true
	f.remaining = f.frames
	f.ticker.SetTimeout(f.framePeriod())
	f.ticker.Start()
	f.metrics.FreewheelStarted()

	if f.debug && f.logger != nil {
		f.logger.Printf("Freewheel started at %s for %d frames", f.st.currentFrame, f.frames)
	}
}

// step emits the next extrapolated frame. The step that exhausts the budget
// emits one more frame and then resets.
func (f *freewheel) step(dispatch func(Tick)) {
	dispatch(Tick{Frame: f.st.currentFrame.Advance(f.st.currentFramerate), Origin: OriginFreewheel})
	f.remaining--

	if f.remaining <= 0 {
		dispatch(Tick{Frame: f.st.currentFrame.Advance(f.st.currentFramerate), Origin: OriginFreewheel})
		f.reset()

		if f.debug && f.logger != nil {
			f.logger.Printf("Freewheel ended at %s", f.st.currentFrame)
		}
	}
}

// reset cancels both timers and clears the episode
func (f *freewheel) reset() {
	f.ticker.Stop()
	f.check.Stop()
	f.remaining = 0
	f.st.freewheelActive = false
	f.st.freewheelArmed = false
}
