package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dbehnke/mtcreader/internal/database"
	"github.com/dbehnke/mtcreader/internal/engine"
	"github.com/dbehnke/mtcreader/internal/metrics"
	"github.com/dbehnke/mtcreader/internal/protocol/mtc"
)

func newTestWriter(t *testing.T, config Config) (*Writer, *database.TimecodeRepository, *metrics.Metrics) {
	t.Helper()

	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "journal.db")}, nil)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := database.NewTimecodeRepository(db.GetDB())
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewWriter(repo, nil, m, config), repo, m
}

func timecodeEvent(frames uint8, transport engine.TransportState, seq int64) engine.Event {
	raw := mtc.Build(3, 0, 0, 1, frames)
	return engine.Event{
		Kind:   engine.EventTimecode,
		Origin: engine.OriginNetwork,
		Raw:    raw,
		Sample: &engine.Sample{
			Transport: transport,
			Framerate: "fr30",
			Timecode:  raw.Timecode(),
			Frame:     30 + int64(frames),
			MTC:       raw,
			Sequence:  seq,
		},
	}
}

func TestNewWriter_Defaults(t *testing.T) {
	w, _, _ := newTestWriter(t, Config{})

	if w.config.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", w.config.BatchSize, DefaultBatchSize)
	}
	if w.config.FlushInterval != DefaultFlushInterval {
		t.Errorf("FlushInterval = %v, want %v", w.config.FlushInterval, DefaultFlushInterval)
	}
	if len(w.SessionID()) != 36 {
		t.Errorf("SessionID() = %q, want a uuid", w.SessionID())
	}

	other, _, _ := newTestWriter(t, Config{})
	if other.SessionID() == w.SessionID() {
		t.Error("two writers share a session id")
	}
}

func TestRecordFromEvent(t *testing.T) {
	at := time.Unix(1700000000, 0)

	t.Run("with sample", func(t *testing.T) {
		r := RecordFromEvent("s1", timecodeEvent(5, engine.Freewheeling, 42), at)
		if r.SessionID != "s1" || r.Transport != "FREEWHEEL" || r.Framerate != "fr30" {
			t.Errorf("record = %+v", r)
		}
		if r.Seconds != 1 || r.Frames != 5 || r.Frame != 35 || r.Sequence != 42 {
			t.Errorf("record fields = %+v", r)
		}
		if !r.RecordedAt.Equal(at) || !r.IsValid() {
			t.Errorf("record = %+v, valid = %v", r, r.IsValid())
		}
	})

	t.Run("raw only", func(t *testing.T) {
		ev := engine.Event{
			Kind:   engine.EventTimecode,
			Origin: engine.OriginHeartbeat,
			Raw:    mtc.Build(0, 2, 3, 4, 5),
		}
		r := RecordFromEvent("s1", ev, at)
		if r.Transport != "STOPPED" || r.Timecode() != "02:03:04:05" || r.Framerate != "" {
			t.Errorf("record = %+v", r)
		}
		if !r.IsValid() {
			t.Error("raw-only record should be valid")
		}
	})
}

func TestWriter_BatchFlush(t *testing.T) {
	w, repo, m := newTestWriter(t, Config{BatchSize: 3, FlushInterval: time.Hour})

	if w.Add(engine.Event{Kind: engine.EventInfo, Message: "listening"}) {
		t.Error("Add() accepted an info event")
	}

	w.Add(timecodeEvent(0, engine.Running, 1))
	w.Add(timecodeEvent(1, engine.Running, 2))
	if w.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", w.Pending())
	}
	if count, _ := repo.Count(); count != 0 {
		t.Errorf("Count() before full batch = %d, want 0", count)
	}

	w.Add(timecodeEvent(2, engine.Running, 3))
	if w.Pending() != 0 {
		t.Errorf("Pending() after full batch = %d, want 0", w.Pending())
	}
	if count, _ := repo.Count(); count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
	if got := testutil.ToFloat64(m.JournalWrites); got != 3 {
		t.Errorf("JournalWrites = %v, want 3", got)
	}

	latest, err := repo.Latest(w.SessionID())
	if err != nil || latest == nil || latest.Sequence != 3 {
		t.Errorf("Latest() = %v, %v; want sequence 3", latest, err)
	}
}

func TestWriter_RunFlushesOnExit(t *testing.T) {
	w, repo, _ := newTestWriter(t, Config{BatchSize: 100, FlushInterval: time.Hour})

	events := make(chan engine.Event, 8)
	events <- timecodeEvent(0, engine.Running, 1)
	events <- timecodeEvent(1, engine.Freewheeling, 2)
	events <- engine.Event{Kind: engine.EventError}
	close(events)

	if err := w.Run(context.Background(), events); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	counts, err := repo.CountByTransport(w.SessionID())
	if err != nil {
		t.Fatalf("CountByTransport() error = %v", err)
	}
	if counts["RUNNING"] != 1 || counts["FREEWHEEL"] != 1 {
		t.Errorf("CountByTransport() = %v", counts)
	}
}

func TestWriter_RunStopsOnCancel(t *testing.T) {
	w, repo, _ := newTestWriter(t, Config{FlushInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan engine.Event, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, events) }()

	events <- timecodeEvent(7, engine.Running, 1)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if count, _ := repo.Count(); count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the periodic flush")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestWriter_Prune(t *testing.T) {
	w, repo, _ := newTestWriter(t, Config{BatchSize: 10, Retention: time.Hour})

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base.Add(-2 * time.Hour) }
	w.Add(timecodeEvent(0, engine.Running, 1))
	w.now = func() time.Time { return base }
	w.Add(timecodeEvent(1, engine.Running, 2))
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	w.prune()
	if count, _ := repo.Count(); count != 1 {
		t.Errorf("Count() after prune = %d, want 1", count)
	}

	if !w.lastPrune.Equal(base) {
		t.Errorf("lastPrune = %v, want %v", w.lastPrune, base)
	}

	// a second prune inside PruneInterval is skipped
	w.now = func() time.Time { return base.Add(30 * time.Second) }
	w.lastPrune = base
	w.prune()
	if !w.lastPrune.Equal(base) {
		t.Error("prune ran again inside PruneInterval")
	}
}
