package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/calmloop/calmloop/backend/internal/analysis/care"
	"github.com/calmloop/calmloop/backend/internal/analysis/mood"
	"github.com/calmloop/calmloop/backend/internal/cache"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	historymodel "github.com/calmloop/calmloop/backend/internal/model/history"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
	historysvc "github.com/calmloop/calmloop/backend/internal/service/history"
	"github.com/calmloop/calmloop/backend/internal/service/voice"
)

// ErrNoActiveSession is returned by operations that require a live
// session.
var ErrNoActiveSession = errors.New("no active session")

// VoiceGateway is the slice of the provider gateway the store uses.
type VoiceGateway interface {
	StartSession(ctx context.Context, opts voice.StartOptions) (voice.BootstrapResult, error)
	RelayEvent(ctx context.Context, sessionID string, event json.RawMessage) (voice.RelayReceipt, error)
}

// HistoryGateway is the slice of the history store the orchestrator uses
// directly: writes go through the saver, reads hydrate prior sessions.
type HistoryGateway interface {
	historysvc.Writer
	Get(ctx context.Context, userID, historyID string) (historymodel.Record, error)
}

// CueProvider supplies extra mood cues from the optional remote
// classifier. Implementations never fail; they return nil instead.
type CueProvider interface {
	Extract(ctx context.Context, utterance string, transcripts []sessionmodel.TranscriptItem) []mood.Cue
}

// SnapshotCache persists the bounded state subset across restarts.
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, userID string, snap cache.Snapshot) error
	LoadSnapshot(ctx context.Context, userID string) (*cache.Snapshot, error)
}

// Deps are the collaborators one Store coordinates.
type Deps struct {
	Voice   VoiceGateway
	History HistoryGateway
	Cues    CueProvider
	Cache   SnapshotCache
	Clock   historysvc.Clock

	// DebounceDelay overrides the persistence debounce; zero means the
	// default.
	DebounceDelay time.Duration
}

// Store is the session orchestrator: an explicit state container whose
// named operations are the only way session state mutates. One Store
// manages one user's live companion session.
type Store struct {
	userID  string
	deps    Deps
	runTask func(f func())

	mu           sync.RWMutex
	state        State
	initializing bool
	saver        *historysvc.Saver

	subMu       sync.Mutex
	subscribers map[int]chan State
	nextSubID   int
}

// Option tweaks store construction.
type Option func(*Store)

// WithSyncTasks runs spawned side-effect tasks inline instead of on a
// goroutine. Tests use this to make inference application deterministic.
func WithSyncTasks() Option {
	return func(s *Store) {
		s.runTask = func(f func()) { f() }
	}
}

// NewStore builds an orchestrator for one user and, when a cache is
// configured, rehydrates the bounded snapshot left by a previous run.
func NewStore(userID string, deps Deps, opts ...Option) *Store {
	if deps.Clock == nil {
		deps.Clock = historysvc.SystemClock{}
	}
	s := &Store{
		userID:      userID,
		deps:        deps,
		runTask:     func(f func()) { go f() },
		state:       defaultState(),
		subscribers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restoreFromCache()
	return s
}

// UserID identifies the owner of this store.
func (s *Store) UserID() string { return s.userID }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// StartSession bootstraps a live session with the voice provider and
// resets per-session state to the bootstrap-provided context. A call
// while another bootstrap is in flight is a no-op; the in-flight one is
// never cancelled.
func (s *Store) StartSession(ctx context.Context, opts voice.StartOptions) error {
	s.mu.Lock()
	if s.initializing {
		s.mu.Unlock()
		return nil
	}
	s.initializing = true
	s.state.ConnectionState = sessionmodel.Connecting
	s.state.LastError = ""
	priorHistoryID := s.state.HistoryID
	s.mu.Unlock()
	s.notify()

	result, err := s.deps.Voice.StartSession(ctx, opts)

	s.mu.Lock()
	s.initializing = false
	if err != nil {
		s.state.ConnectionState = sessionmodel.Disconnected
		s.state.LastError = err.Error()
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("start companion session: %w", err)
	}

	now := s.deps.Clock.Now()
	fresh := defaultState()
	fresh.SessionID = result.SessionID
	fresh.ClientSecret = result.ClientSecret
	fresh.Instructions = result.Instructions
	fresh.Transport = fallback(result.Transport, opts.Transport)
	fresh.Locale = fallback(result.Locale, opts.Locale)
	fresh.Voice = fallback(result.Voice, opts.Voice)
	fresh.ConnectionState = result.ConnectionState
	fresh.Transcripts = append([]sessionmodel.TranscriptItem(nil), result.MoodContext...)
	fresh.Guardrails = result.Guardrails
	fresh.Recommendations = append(fresh.Recommendations, result.RecommendedInterventions...)
	fresh.RecentCheckIns = append(fresh.RecentCheckIns, result.CheckIns...)
	fresh.SessionStartedAt = &now
	fresh.HistoryID = priorHistoryID
	s.state = fresh

	s.saver = historysvc.NewSaver(
		s.deps.History,
		s.deps.Clock,
		s.deps.DebounceDelay,
		s.userID,
		s.persistSnapshot,
		s.onSaved,
		s.onPersistError,
	)
	s.saver.SetHistoryID(priorHistoryID)
	s.mu.Unlock()
	s.notify()

	if priorHistoryID != "" {
		s.runTask(func() { s.hydrate(priorHistoryID) })
	}
	return nil
}

// EndSession finalizes persistence, signals the provider best-effort and
// resets per-session state. It is a no-op without an active session and
// never fails teardown: a finalize error is recorded, not returned.
func (s *Store) EndSession(ctx context.Context) error {
	s.mu.Lock()
	if s.state.SessionID == "" {
		s.mu.Unlock()
		return nil
	}
	sessionID := s.state.SessionID
	saver := s.saver
	s.mu.Unlock()

	// Best-effort end-of-session signal; the provider may already be gone.
	if _, err := s.deps.Voice.RelayEvent(ctx, sessionID, json.RawMessage(`{"type":"session.end"}`)); err != nil {
		log.Printf("[session] end-of-session relay failed (ignored): %v", err)
	}

	var persistErr error
	if saver != nil {
		persistErr = saver.Finalize(ctx)
	}

	s.mu.Lock()
	priorHistoryID := s.state.HistoryID
	s.state = defaultState()
	s.state.HistoryID = priorHistoryID
	if persistErr != nil {
		s.state.LastPersistError = persistErr.Error()
	}
	s.saver = nil
	s.mu.Unlock()
	s.notify()
	return nil
}

// RelayEvent forwards one opaque event to the live provider session,
// tracking the agent-responding flag around the call. Failures propagate
// to the caller.
func (s *Store) RelayEvent(ctx context.Context, event json.RawMessage) (voice.RelayReceipt, error) {
	s.mu.Lock()
	if s.state.SessionID == "" {
		s.mu.Unlock()
		return voice.RelayReceipt{}, ErrNoActiveSession
	}
	sessionID := s.state.SessionID
	s.state.AgentResponding = true
	s.mu.Unlock()
	s.notify()

	receipt, err := s.deps.Voice.RelayEvent(ctx, sessionID, event)

	s.mu.Lock()
	s.state.AgentResponding = false
	if err != nil {
		s.state.LastError = err.Error()
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return receipt, fmt.Errorf("relay event: %w", err)
	}
	return receipt, nil
}

// persistSnapshot builds the record the saver writes; invoked at fire
// time so the final state of a burst wins.
func (s *Store) persistSnapshot() historymodel.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return historymodel.Record{
		SessionID:                s.state.SessionID,
		Transcripts:              append([]sessionmodel.TranscriptItem(nil), s.state.Transcripts...),
		RecommendedInterventions: append([]care.Recommendation(nil), s.state.Recommendations...),
		Guardrails:               s.state.Guardrails,
		MoodInferenceTimeline:    append([]mood.InferenceResult(nil), s.state.MoodTimeline...),
		StartedAt:                s.state.SessionStartedAt,
		Transport:                s.state.Transport,
		Locale:                   s.state.Locale,
		Voice:                    s.state.Voice,
	}
}

func (s *Store) onSaved(rec historymodel.Record) {
	s.mu.Lock()
	s.state.HistoryID = rec.HistoryID
	s.state.LastPersistError = ""
	s.mu.Unlock()
	s.cacheSnapshot()
	s.notify()
}

func (s *Store) onPersistError(err error) {
	s.mu.Lock()
	s.state.LastPersistError = err.Error()
	s.mu.Unlock()
	s.notify()
}

// hydrate merges a previous session's persisted transcripts into the
// live log. Failures are logged only; session start never depends on it.
func (s *Store) hydrate(historyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec, err := s.deps.History.Get(ctx, s.userID, historyID)
	if err != nil {
		log.Printf("[session] history hydration failed (ignored): %v", err)
		return
	}

	s.mu.Lock()
	s.state.Transcripts = historysvc.MergeTranscripts(s.state.Transcripts, rec.Transcripts)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) restoreFromCache() {
	if s.deps.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := s.deps.Cache.LoadSnapshot(ctx, s.userID)
	if err != nil {
		log.Printf("[session] snapshot restore failed (ignored): %v", err)
		return
	}
	if snap == nil {
		return
	}

	s.mu.Lock()
	s.state.Transcripts = append([]sessionmodel.TranscriptItem(nil), snap.Transcripts...)
	s.state.MoodTimeline = append([]mood.InferenceResult(nil), snap.MoodTimeline...)
	s.state.RecentCheckIns = append([]checkin.CheckIn(nil), snap.RecentCheckIns...)
	s.state.Guardrails = snap.Guardrails
	s.state.Recommendations = append([]care.Recommendation(nil), snap.Recommendations...)
	s.state.HistoryID = snap.HistoryID
	s.mu.Unlock()
}

func (s *Store) cacheSnapshot() {
	if s.deps.Cache == nil {
		return
	}
	s.mu.RLock()
	snap := cache.Snapshot{
		SessionID:       s.state.SessionID,
		HistoryID:       s.state.HistoryID,
		Transcripts:     append([]sessionmodel.TranscriptItem(nil), s.state.Transcripts...),
		MoodTimeline:    append([]mood.InferenceResult(nil), s.state.MoodTimeline...),
		RecentCheckIns:  append([]checkin.CheckIn(nil), s.state.RecentCheckIns...),
		Guardrails:      s.state.Guardrails,
		Recommendations: append([]care.Recommendation(nil), s.state.Recommendations...),
	}
	s.mu.RUnlock()

	s.runTask(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Cache.SaveSnapshot(ctx, s.userID, snap); err != nil {
			log.Printf("[session] snapshot cache write failed (ignored): %v", err)
		}
	})
}

func fallback(value, alt string) string {
	if value != "" {
		return value
	}
	return alt
}
