package relay

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/dbehnke/mtcreader/internal/engine"
	"github.com/dbehnke/mtcreader/internal/metrics"
	"github.com/dbehnke/mtcreader/internal/network"
)

// Relay forwards every processed frame, including heartbeat and freewheel
// frames, as a full-frame datagram to a downstream listener
type Relay struct {
	socket  *network.UDPSocket
	target  *net.UDPAddr
	logger  *log.Logger
	metrics *metrics.Metrics
	sent    uint64
}

// New resolves the target and prepares an unbound sending socket
func New(address string, port int, logger *log.Logger, m *metrics.Metrics) (*Relay, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("relay port must be between 1 and 65535, got %d", port)
	}

	target, err := network.ParseUDPAddr(address, port)
	if err != nil {
		return nil, fmt.Errorf("relay target %s: %w", address, err)
	}

	return &Relay{
		socket:  network.NewUDPSocket("", 0, logger),
		target:  target,
		logger:  logger,
		metrics: m,
	}, nil
}

// Target returns the downstream address
func (r *Relay) Target() *net.UDPAddr {
	return r.target
}

// Sent returns the number of frames forwarded
func (r *Relay) Sent() uint64 {
	return r.sent
}

// Run forwards timecode events until ctx is done or the channel closes
func (r *Relay) Run(ctx context.Context, events <-chan engine.Event) error {
	if err := r.socket.Open(); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	defer r.socket.Close()

	if r.logger != nil {
		r.logger.Printf("Relaying timecode to %s", r.target)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Forward(ev)
		}
	}
}

// Forward sends the raw frame of a timecode event. Send errors are counted
// and logged; they never stop the relay.
func (r *Relay) Forward(ev engine.Event) bool {
	if ev.Kind != engine.EventTimecode {
		return false
	}

	if err := r.socket.Write(ev.Raw.Bytes(), r.target); err != nil {
		r.metrics.RelayFailed()
		if r.logger != nil {
			r.logger.Printf("Relay send failed: %v", err)
		}
		return false
	}
	r.sent++
	return true
}
