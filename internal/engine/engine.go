package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/dbehnke/mtcreader/internal/metrics"
	"github.com/dbehnke/mtcreader/internal/network"
	"github.com/dbehnke/mtcreader/internal/protocol/mtc"
)

const (
	DEFAULT_PORT                = 5005
	DEFAULT_FREEWHEEL_TOLERANCE = 5 * time.Millisecond
	DEFAULT_FREEWHEEL_FRAMES    = 30
	DEFAULT_HEARTBEAT_INTERVAL  = 1000 * time.Millisecond
	DEFAULT_FRAMERATE           = 30

	CLOCK_INTERVAL = time.Millisecond // resolution of the timer loop
	PACKET_QUEUE   = 256              // datagrams buffered between socket and loop
)

var (
	ErrRunning    = errors.New("engine already running")
	ErrNotRunning = errors.New("engine not running")
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	InterfaceAddress   string // "" binds every interface
	Port               int
	MTCOnly            bool
	UseHeartbeat       bool
	UseFreewheel       bool
	FreewheelTolerance time.Duration
	FreewheelFrames    int
	HeartbeatInterval  time.Duration
	AutoFramerate      bool
	CurrentFramerate   int // 24, 25, 29 or 30
	Debug              bool
}

// DefaultOptions returns the reader defaults
func DefaultOptions() Options {
	return Options{
		Port:               DEFAULT_PORT,
		FreewheelTolerance: DEFAULT_FREEWHEEL_TOLERANCE,
		FreewheelFrames:    DEFAULT_FREEWHEEL_FRAMES,
		HeartbeatInterval:  DEFAULT_HEARTBEAT_INTERVAL,
		CurrentFramerate:   DEFAULT_FRAMERATE,
	}
}

func (o Options) withDefaults() Options {
	if o.Port == 0 {
		o.Port = DEFAULT_PORT
	}
	if o.FreewheelTolerance <= 0 {
		o.FreewheelTolerance = DEFAULT_FREEWHEEL_TOLERANCE
	}
	if o.FreewheelFrames <= 0 {
		o.FreewheelFrames = DEFAULT_FREEWHEEL_FRAMES
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DEFAULT_HEARTBEAT_INTERVAL
	}
	if o.CurrentFramerate == 0 {
		o.CurrentFramerate = DEFAULT_FRAMERATE
	}
	return o
}

// Validate checks option ranges after defaults are applied
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.InterfaceAddress != "" && net.ParseIP(o.InterfaceAddress) == nil {
		return fmt.Errorf("invalid interface address: %s", o.InterfaceAddress)
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", o.Port)
	}
	if _, err := mtc.FrameRateFromFPS(o.CurrentFramerate); err != nil {
		return err
	}
	return nil
}

// Engine reads MTC full frames from UDP and publishes timecode samples.
// Network arrivals, heartbeat probes and freewheel steps are all ticks that
// run one at a time under the engine lock through dispatch.
type Engine struct {
	mu        sync.Mutex
	opts      Options
	st        *state
	freewheel *freewheel
	heartbeat *heartbeat
	sources   []clockedSource

	publisher *Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	now       func() time.Time

	socket  *network.UDPSocket
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	closing bool
}

// New creates an engine. Options must have passed Validate; out-of-range
// values are replaced with defaults. m and logger may be nil.
func New(opts Options, logger *log.Logger, m *metrics.Metrics) *Engine {
	opts = opts.withDefaults()
	if _, err := mtc.FrameRateFromFPS(opts.CurrentFramerate); err != nil {
		opts.CurrentFramerate = DEFAULT_FRAMERATE
	}

	st := newState(opts.CurrentFramerate)
	e := &Engine{
		opts:      opts,
		st:        st,
		freewheel: newFreewheel(st, opts, logger, m),
		heartbeat: newHeartbeat(st, opts.HeartbeatInterval, m),
		publisher: NewPublisher(m),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
	e.sources = []clockedSource{e.freewheel, e.heartbeat}
	m.SetFramerate(opts.CurrentFramerate)
	return e
}

// Subscribe registers for engine events
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	return e.publisher.Subscribe(buffer)
}

// Run binds the transport, starts the heartbeat if enabled and processes
// ticks until ctx is done or Stop is called. A bind failure is published as
// an error event and returned.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrRunning
	}

	socket := network.NewUDPSocket(e.opts.InterfaceAddress, e.opts.Port, e.debugLogger())
	if err := socket.Open(); err != nil {
		e.mu.Unlock()
		err = fmt.Errorf("failed to open transport: %w", err)
		e.publishError(err)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.socket = socket
	e.cancel = cancel
	e.done = done
	e.running = true
	e.closing = false
	if e.opts.UseHeartbeat {
		e.heartbeat.start()
	}
	e.mu.Unlock()

	e.publishInfo(fmt.Sprintf("Timecode listening on port %d", socket.LocalAddr().Port))

	packets := make(chan []byte, PACKET_QUEUE)
	readErr := make(chan error, 1)
	go func() {
		readErr <- socket.ReadLoop(func(data []byte, from *net.UDPAddr) {
			select {
			case packets <- data:
			default:
				e.logf("Packet queue full, dropping datagram from %s", from)
			}
		})
	}()

	return e.loop(runCtx, packets, readErr, done)
}

func (e *Engine) loop(ctx context.Context, packets <-chan []byte, readErr <-chan error, done chan struct{}) error {
	defer close(done)

	ticker := time.NewTicker(CLOCK_INTERVAL)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil

		case data := <-packets:
			e.HandlePacket(data)

		case err := <-readErr:
			// The transport is gone; timers keep running until stopped
			if err != nil {
				e.logf("Transport error: %v", err)
				e.publishError(err)
			}
			readErr = nil

		case now := <-ticker.C:
			e.Clock(now.Sub(last))
			last = now
		}
	}
}

// Stop cancels every timer and closes the transport, then waits for the
// loop to exit. No tick is dispatched after Stop returns.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	err := e.stopLocked()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	return err
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		if err := e.stopLocked(); err != nil {
			e.logf("Error closing transport: %v", err)
		}
	}
}

func (e *Engine) stopLocked() error {
	e.closing = true
	e.running = false
	for _, src := range e.sources {
		src.reset()
	}
	return e.socket.Close()
}

// HandlePacket processes one datagram as a network tick. Datagrams that
// are not full-frame messages are dropped without an event.
func (e *Engine) HandlePacket(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closing {
		return
	}

	e.metrics.PacketReceived()
	frame, err := mtc.ParseRawFrame(data)
	if err != nil {
		e.metrics.PacketDropped()
		if e.opts.Debug {
			e.logf("Ignoring datagram: %v", err)
		}
		return
	}

	// A real frame ends any extrapolation before it is classified
	if e.st.freewheelActive {
		e.freewheel.reset()
	}

	e.dispatch(Tick{Frame: frame, Origin: OriginNetwork})
}

// Clock advances every timer-driven source by elapsed
func (e *Engine) Clock(elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closing {
		return
	}

	for _, src := range e.sources {
		src.clock(elapsed, e.dispatch)
	}
}

// dispatch runs one tick to completion: classify, decode, resolve, count,
// publish, then let the freewheel re-arm. A failure drops only this tick.
func (e *Engine) dispatch(t Tick) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.TickFailed()
			e.logf("Dropped %s tick %s: %v", t.Origin, t.Frame, r)
		}
	}()

	e.st.accept(t.Frame)
	e.st.transport = TransportFor(t.Origin)

	tc := t.Frame.Timecode()
	res := mtc.Resolve(tc.RateCode, e.opts.AutoFramerate, e.st.currentFramerate)
	if e.opts.AutoFramerate && t.Origin == OriginNetwork && res.Divisor > 0 && res.Divisor != e.st.currentFramerate {
		e.st.currentFramerate = res.Divisor
		e.metrics.SetFramerate(res.Divisor)
	}

	ev := Event{
		Kind:   EventTimecode,
		Origin: t.Origin,
		Raw:    t.Frame,
	}

	if !e.opts.MTCOnly {
		var frame int64
		if res.Divisor > 0 {
			frame = tc.AbsoluteFrames(res.Divisor)
		}
		ev.Sample = &Sample{
			Transport: e.st.transport,
			Framerate: res.Name,
			Timecode:  tc,
			Frame:     frame,
			MTC:       t.Frame,
			Sequence:  e.now().UnixMilli(),
		}
	}

	e.publisher.Publish(ev)
	e.metrics.SamplePublished(e.st.transport.String(), int(e.st.transport))

	e.freewheel.arm(t.Origin)
}

// SetInterface sets the bind address used by the next Run
func (e *Engine) SetInterface(address string) error {
	if address != "" && net.ParseIP(address) == nil {
		return fmt.Errorf("invalid interface address: %s", address)
	}
	e.mu.Lock()
	e.opts.InterfaceAddress = address
	e.mu.Unlock()
	return nil
}

// SetPort sets the UDP port used by the next Run
func (e *Engine) SetPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	e.mu.Lock()
	e.opts.Port = port
	e.mu.Unlock()
	return nil
}

// SetCurrentFramerate sets the rate used when auto framerate is off and
// for freewheel timing
func (e *Engine) SetCurrentFramerate(fps int) error {
	if _, err := mtc.FrameRateFromFPS(fps); err != nil {
		return err
	}
	e.mu.Lock()
	e.st.currentFramerate = fps
	e.mu.Unlock()
	e.metrics.SetFramerate(fps)
	return nil
}

// SetUseHeartbeat turns the heartbeat prober on or off, restarting its
// interval when the engine is running
func (e *Engine) SetUseHeartbeat(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.heartbeat.reset()
	e.opts.UseHeartbeat = enabled
	if enabled && e.running {
		e.heartbeat.start()
	}
}

// Address returns the configured bind address
func (e *Engine) Address() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.InterfaceAddress
}

// Port returns the configured UDP port
func (e *Engine) Port() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Port
}

// LocalAddr returns the bound address while running, or nil
func (e *Engine) LocalAddr() *net.UDPAddr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	return e.socket.LocalAddr()
}

// CurrentFramerate returns the active integer frame rate
func (e *Engine) CurrentFramerate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.currentFramerate
}

// TransportState returns the state set by the most recent tick
func (e *Engine) TransportState() TransportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.transport
}

// Freewheeling reports whether extrapolated frames are being produced
func (e *Engine) Freewheeling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.freewheelActive
}

// IsRunning reports whether Run is active
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) publishInfo(msg string) {
	e.logf("%s", msg)
	e.publisher.Publish(Event{Kind: EventInfo, Message: msg})
}

func (e *Engine) publishError(err error) {
	e.publisher.Publish(Event{Kind: EventError, Err: err, Message: err.Error()})
}

func (e *Engine) debugLogger() *log.Logger {
	if e.opts.Debug {
		return e.logger
	}
	return nil
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
