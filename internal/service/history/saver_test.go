package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calmloop/calmloop/backend/internal/analysis/care"
	"github.com/calmloop/calmloop/backend/internal/analysis/mood"
	historymodel "github.com/calmloop/calmloop/backend/internal/model/history"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

// fakeClock runs scheduled functions only when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// Fire runs every pending timer that was not stopped, synchronously.
func (c *fakeClock) Fire() {
	c.mu.Lock()
	pending := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range pending {
		if !t.stopped {
			t.f()
		}
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	saves  []historymodel.Record
	nextID string
	err    error
}

func (w *fakeWriter) Save(_ context.Context, _ string, rec historymodel.Record) (historymodel.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return historymodel.Record{}, w.err
	}
	if rec.HistoryID == "" {
		rec.HistoryID = w.nextID
	}
	w.saves = append(w.saves, rec)
	return rec, nil
}

func (w *fakeWriter) saveCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.saves)
}

func (w *fakeWriter) lastSave() historymodel.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saves[len(w.saves)-1]
}

func TestScheduleCollapsesBursts(t *testing.T) {
	writer := &fakeWriter{nextID: "h1"}
	clock := newFakeClock()
	snapshot := func() historymodel.Record { return historymodel.Record{SessionID: "s1"} }
	saver := NewSaver(writer, clock, time.Second, "user-1", snapshot, nil, nil)

	for i := 0; i < 5; i++ {
		saver.Schedule()
	}
	clock.Fire()

	if writer.saveCount() != 1 {
		t.Fatalf("expected a burst to collapse into 1 write, got %d", writer.saveCount())
	}
}

func TestSnapshotTakenAtFireTime(t *testing.T) {
	writer := &fakeWriter{nextID: "h1"}
	clock := newFakeClock()

	var mu sync.Mutex
	content := "first"
	snapshot := func() historymodel.Record {
		mu.Lock()
		defer mu.Unlock()
		return historymodel.Record{
			SessionID:   "s1",
			Transcripts: []sessionmodel.TranscriptItem{{ID: "t1", Content: content}},
		}
	}
	saver := NewSaver(writer, clock, time.Second, "user-1", snapshot, nil, nil)

	saver.Schedule()
	mu.Lock()
	content = "second"
	mu.Unlock()
	clock.Fire()

	if got := writer.lastSave().Transcripts[0].Content; got != "second" {
		t.Fatalf("expected the fire-time state, got %q", got)
	}
}

func TestFirstWriteAdoptsStoreID(t *testing.T) {
	writer := &fakeWriter{nextID: "h42"}
	clock := newFakeClock()
	saver := NewSaver(writer, clock, time.Second, "user-1",
		func() historymodel.Record { return historymodel.Record{SessionID: "s1"} }, nil, nil)

	saver.Schedule()
	clock.Fire()
	if saver.HistoryID() != "h42" {
		t.Fatalf("expected adopted id h42, got %q", saver.HistoryID())
	}

	saver.Schedule()
	clock.Fire()
	if writer.saveCount() != 2 {
		t.Fatalf("expected 2 writes, got %d", writer.saveCount())
	}
	if writer.lastSave().HistoryID != "h42" {
		t.Fatalf("second write should update the same record, got %q", writer.lastSave().HistoryID)
	}
}

func TestFinalizeStampsEndAndDuration(t *testing.T) {
	writer := &fakeWriter{nextID: "h1"}
	clock := newFakeClock()
	started := clock.Now()
	saver := NewSaver(writer, clock, time.Second, "user-1", func() historymodel.Record {
		return historymodel.Record{SessionID: "s1", StartedAt: &started}
	}, nil, nil)

	clock.Advance(90 * time.Second)
	if err := saver.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	rec := writer.lastSave()
	if rec.EndedAt == nil {
		t.Fatal("finalize must stamp endedAt")
	}
	if rec.DurationMs == nil || *rec.DurationMs != 90_000 {
		t.Fatalf("expected duration 90000ms, got %v", rec.DurationMs)
	}
}

func TestFinalizeCancelsPendingAndDisablesScheduling(t *testing.T) {
	writer := &fakeWriter{nextID: "h1"}
	clock := newFakeClock()
	saver := NewSaver(writer, clock, time.Second, "user-1",
		func() historymodel.Record { return historymodel.Record{SessionID: "s1"} }, nil, nil)

	saver.Schedule()
	if err := saver.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if writer.saveCount() != 1 {
		t.Fatalf("expected only the final write, got %d", writer.saveCount())
	}

	// The debounced write was cancelled and new schedules are ignored.
	clock.Fire()
	saver.Schedule()
	clock.Fire()
	if writer.saveCount() != 1 {
		t.Fatalf("write happened after finalize, total %d", writer.saveCount())
	}

	// Finalize is idempotent.
	if err := saver.Finalize(context.Background()); err != nil {
		t.Fatalf("second finalize failed: %v", err)
	}
	if writer.saveCount() != 1 {
		t.Fatalf("second finalize wrote again, total %d", writer.saveCount())
	}
}

func TestCancelPendingDropsScheduledWrite(t *testing.T) {
	writer := &fakeWriter{nextID: "h1"}
	clock := newFakeClock()
	saver := NewSaver(writer, clock, time.Second, "user-1",
		func() historymodel.Record { return historymodel.Record{SessionID: "s1"} }, nil, nil)

	saver.Schedule()
	saver.CancelPending()
	clock.Fire()
	if writer.saveCount() != 0 {
		t.Fatalf("cancelled write still fired, total %d", writer.saveCount())
	}
}

func TestWriteBoundsPayload(t *testing.T) {
	writer := &fakeWriter{nextID: "h1"}
	clock := newFakeClock()

	rec := historymodel.Record{SessionID: "s1"}
	base := clock.Now()
	for i := 0; i < 60; i++ {
		rec.Transcripts = append(rec.Transcripts, sessionmodel.TranscriptItem{
			ID:        string(rune('a' + i%26)) + string(rune('0' + i/26)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	rec.MoodInferenceTimeline = make([]mood.InferenceResult, 30)
	rec.RecommendedInterventions = make([]care.Recommendation, 7)

	saver := NewSaver(writer, clock, time.Second, "user-1",
		func() historymodel.Record { return rec }, nil, nil)
	saver.Schedule()
	clock.Fire()

	saved := writer.lastSave()
	if len(saved.Transcripts) != TranscriptWindow {
		t.Fatalf("expected %d transcripts, got %d", TranscriptWindow, len(saved.Transcripts))
	}
	if len(saved.MoodInferenceTimeline) != MoodTimelineCap {
		t.Fatalf("expected %d timeline entries, got %d", MoodTimelineCap, len(saved.MoodInferenceTimeline))
	}
	if len(saved.RecommendedInterventions) != RecommendationCap {
		t.Fatalf("expected %d recommendations, got %d", RecommendationCap, len(saved.RecommendedInterventions))
	}
}

func TestFinalizeReportsWriteError(t *testing.T) {
	storeErr := errors.New("store down")
	writer := &fakeWriter{err: storeErr}
	clock := newFakeClock()

	var reported error
	saver := NewSaver(writer, clock, time.Second, "user-1",
		func() historymodel.Record { return historymodel.Record{SessionID: "s1"} },
		nil, func(err error) { reported = err })

	err := saver.Finalize(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected the store error, got %v", err)
	}
	if !errors.Is(reported, storeErr) {
		t.Fatalf("onError not invoked with the store error, got %v", reported)
	}
}
