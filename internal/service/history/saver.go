package history

import (
	"context"
	"log"
	"sync"
	"time"

	historymodel "github.com/calmloop/calmloop/backend/internal/model/history"
)

// DefaultDebounce is the quiet period collapsing bursts of schedule
// requests into one write.
const DefaultDebounce = 4 * time.Second

// Writer is the slice of the store client the saver needs.
type Writer interface {
	Save(ctx context.Context, userID string, rec historymodel.Record) (historymodel.Record, error)
}

// Saver owns the debounced auto-persist of one live session. Non-finalize
// writes are scheduled, not immediate: every Schedule call resets the
// delay timer and only the last one in a burst fires. Finalize bypasses
// the debounce, cancels any pending write and disables further scheduling.
// At most one write is ever outstanding; a schedule that lands while a
// write is in flight is deferred to a fresh debounce window.
type Saver struct {
	writer   Writer
	clock    Clock
	delay    time.Duration
	userID   string
	snapshot func() historymodel.Record
	onSaved  func(rec historymodel.Record)
	onError  func(err error)

	mu        sync.Mutex
	timer     Timer
	deferred  bool
	finalized bool
	historyID string

	// flushing is held for the duration of a store write.
	flushing sync.Mutex
}

// NewSaver builds a saver for one session. snapshot must return the
// current record payload; it is invoked at fire time so the last state
// in a burst wins. onSaved and onError may be nil.
func NewSaver(w Writer, clock Clock, delay time.Duration, userID string, snapshot func() historymodel.Record, onSaved func(historymodel.Record), onError func(error)) *Saver {
	if clock == nil {
		clock = SystemClock{}
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Saver{
		writer:   w,
		clock:    clock,
		delay:    delay,
		userID:   userID,
		snapshot: snapshot,
		onSaved:  onSaved,
		onError:  onError,
	}
}

// SetHistoryID seeds the record pointer, typically from a previous
// session being resumed.
func (s *Saver) SetHistoryID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyID = id
}

// HistoryID returns the store-assigned record id, empty before the first
// successful write.
func (s *Saver) HistoryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyID
}

// Schedule requests a debounced write. No-op after finalize.
func (s *Saver) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, s.fireBackground)
}

// CancelPending drops any scheduled write without firing it.
func (s *Saver) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deferred = false
}

// Finalize performs the session-ending write immediately: it cancels any
// pending debounced write, stamps the end timestamp, computes duration
// and disables subsequent auto-persist. The write error, if any, is
// returned to the caller as well as reported through onError.
func (s *Saver) Finalize(ctx context.Context) error {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return nil
	}
	s.finalized = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deferred = false
	s.mu.Unlock()

	s.flushing.Lock()
	defer s.flushing.Unlock()
	return s.write(ctx, true)
}

func (s *Saver) fireBackground() {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if !s.flushing.TryLock() {
		// A write is already underway; defer instead of running in
		// parallel.
		s.mu.Lock()
		s.deferred = true
		s.mu.Unlock()
		return
	}
	if err := s.write(context.Background(), false); err != nil {
		// Background failures are logged and retried on the next
		// natural trigger only.
		log.Printf("[history] background persist failed: %v", err)
	}
	s.flushing.Unlock()

	s.mu.Lock()
	rerun := s.deferred && !s.finalized
	s.deferred = false
	s.mu.Unlock()
	if rerun {
		s.Schedule()
	}
}

func (s *Saver) write(ctx context.Context, finalize bool) error {
	rec := s.snapshot()

	s.mu.Lock()
	rec.HistoryID = s.historyID
	s.mu.Unlock()

	rec.Transcripts = PruneTranscripts(rec.Transcripts)
	if n := len(rec.MoodInferenceTimeline); n > MoodTimelineCap {
		rec.MoodInferenceTimeline = rec.MoodInferenceTimeline[n-MoodTimelineCap:]
	}
	if len(rec.RecommendedInterventions) > RecommendationCap {
		rec.RecommendedInterventions = rec.RecommendedInterventions[:RecommendationCap]
	}

	if finalize {
		now := s.clock.Now()
		rec.EndedAt = &now
		if rec.StartedAt != nil {
			duration := now.Sub(*rec.StartedAt).Milliseconds()
			rec.DurationMs = &duration
		}
	}

	saved, err := s.writer.Save(ctx, s.userID, rec)
	if err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return err
	}

	s.mu.Lock()
	if saved.HistoryID != "" {
		s.historyID = saved.HistoryID
	}
	s.mu.Unlock()

	if s.onSaved != nil {
		s.onSaved(saved)
	}
	return nil
}
