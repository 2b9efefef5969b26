package journal

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dbehnke/mtcreader/internal/database"
	"github.com/dbehnke/mtcreader/internal/engine"
	"github.com/dbehnke/mtcreader/internal/metrics"
)

const (
	// DefaultBatchSize is how many samples are buffered before a write
	DefaultBatchSize = 100

	// DefaultFlushInterval bounds how long a sample waits in the buffer
	DefaultFlushInterval = time.Second

	// PruneInterval is how often expired samples are removed
	PruneInterval = time.Minute
)

// Config holds journal tuning
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	Retention     time.Duration // 0 keeps everything
}

// Writer records published timecode events into the repository
type Writer struct {
	repository *database.TimecodeRepository
	logger     *log.Logger
	metrics    *metrics.Metrics
	config     Config
	sessionID  string

	pending   []database.TimecodeRecord
	lastPrune time.Time
	now       func() time.Time
}

// NewWriter creates a journal writer with a fresh session id
func NewWriter(repository *database.TimecodeRepository, logger *log.Logger, m *metrics.Metrics, config Config) *Writer {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultFlushInterval
	}

	return &Writer{
		repository: repository,
		logger:     logger,
		metrics:    m,
		config:     config,
		sessionID:  uuid.NewString(),
		pending:    make([]database.TimecodeRecord, 0, config.BatchSize),
		now:        time.Now,
	}
}

// SessionID identifies the records written by this process
func (w *Writer) SessionID() string {
	return w.sessionID
}

// Pending returns the number of buffered records
func (w *Writer) Pending() int {
	return len(w.pending)
}

// Run consumes events until ctx is done or the channel closes, then flushes
// whatever is still buffered
func (w *Writer) Run(ctx context.Context, events <-chan engine.Event) error {
	if w.logger != nil {
		w.logger.Printf("Journal session %s started (batch: %d, flush: %v)",
			w.sessionID, w.config.BatchSize, w.config.FlushInterval)
	}

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.Flush()

		case ev, ok := <-events:
			if !ok {
				return w.Flush()
			}
			w.Add(ev)

		case <-ticker.C:
			w.Flush()
			w.prune()
		}
	}
}

// Add buffers a timecode event and writes the batch once it is full.
// Non-timecode events are ignored.
func (w *Writer) Add(ev engine.Event) bool {
	if ev.Kind != engine.EventTimecode {
		return false
	}

	w.pending = append(w.pending, RecordFromEvent(w.sessionID, ev, w.now()))
	if len(w.pending) >= w.config.BatchSize {
		w.Flush()
	}
	return true
}

// Flush writes buffered records. A failed batch is dropped and counted.
func (w *Writer) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}

	batch := w.pending
	w.pending = make([]database.TimecodeRecord, 0, w.config.BatchSize)

	n, err := w.repository.InsertBatch(batch)
	if err != nil {
		w.metrics.JournalFailed()
		if w.logger != nil {
			w.logger.Printf("Journal write failed: %v", err)
		}
		return fmt.Errorf("journal flush: %w", err)
	}

	w.metrics.JournalWritten(n)
	return nil
}

func (w *Writer) prune() {
	if w.config.Retention <= 0 {
		return
	}
	now := w.now()
	if now.Sub(w.lastPrune) < PruneInterval {
		return
	}
	w.lastPrune = now

	deleted, err := w.repository.DeleteBefore(now.Add(-w.config.Retention))
	if err != nil {
		w.metrics.JournalFailed()
		if w.logger != nil {
			w.logger.Printf("Journal prune failed: %v", err)
		}
		return
	}
	if deleted == 0 {
		return
	}
	if err := w.repository.Reclaim(); err != nil && w.logger != nil {
		w.logger.Printf("Journal reclaim failed: %v", err)
	}
	if w.logger != nil {
		w.logger.Printf("Journal pruned %d samples older than %v", deleted, w.config.Retention)
	}
}

// RecordFromEvent converts a timecode event into a journal record. Events
// without a sample (MTC-only mode) are stored from the raw frame alone.
func RecordFromEvent(sessionID string, ev engine.Event, at time.Time) database.TimecodeRecord {
	tc := ev.Raw.Timecode()
	record := database.TimecodeRecord{
		SessionID:  sessionID,
		Transport:  engine.TransportFor(ev.Origin).String(),
		Hours:      tc.Hours,
		Minutes:    tc.Minutes,
		Seconds:    tc.Seconds,
		Frames:     tc.Frames,
		MTC:        ev.Raw.Bytes(),
		RecordedAt: at,
	}

	if s := ev.Sample; s != nil {
		record.Transport = s.Transport.String()
		record.Framerate = s.Framerate
		record.Frame = s.Frame
		record.Sequence = s.Sequence
	}
	return record
}
