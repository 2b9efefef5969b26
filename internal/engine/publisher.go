package engine

import (
	"encoding/json"
	"sync"

	"github.com/dbehnke/mtcreader/internal/metrics"
	"github.com/dbehnke/mtcreader/internal/protocol/mtc"
)

// EventKind identifies the payload carried by an Event
type EventKind int

const (
	EventTimecode EventKind = iota
	EventInfo
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventTimecode:
		return "timecode"
	case EventInfo:
		return "info"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Sample is the published form of one processed frame
type Sample struct {
	Transport TransportState `json:"TRANSPORT"`
	Framerate string         `json:"FRAMERATE"`
	Timecode  mtc.Timecode   `json:"JSON"`
	Frame     int64          `json:"FRAME"`
	MTC       mtc.RawFrame   `json:"MTC"`
	Sequence  int64          `json:"SEQUENCE"`
}

// JSON renders the sample in its wire form
func (s *Sample) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// Event is delivered to subscribers. Timecode events always carry Raw;
// Sample is nil when the engine runs in MTC-only mode.
type Event struct {
	Kind    EventKind
	Origin  Origin
	Sample  *Sample
	Raw     mtc.RawFrame
	Message string
	Err     error
}

// Publisher fans events out to subscriber channels. A subscriber that is not
// keeping up loses events rather than stalling the engine.
type Publisher struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	metrics     *metrics.Metrics
}

// NewPublisher creates a publisher with no subscribers
func NewPublisher(m *metrics.Metrics) *Publisher {
	return &Publisher{
		subscribers: make(map[int]chan Event),
		metrics:     m,
	}
}

// Subscribe returns a channel of events and a function that unsubscribes
// and closes it
func (p *Publisher) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber without blocking
func (p *Publisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.subscribers {
		select {
		case ch <- ev:
		default:
			p.metrics.SubscriberDropped()
		}
	}
}

// Subscribers returns the number of active subscribers
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}
