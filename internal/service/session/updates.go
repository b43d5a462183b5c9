package session

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/calmloop/calmloop/backend/internal/analysis/care"
	"github.com/calmloop/calmloop/backend/internal/analysis/mood"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

// PushTranscript appends an utterance to the live log and kicks off a
// mood inference pass. Missing id and timestamp are filled in.
func (s *Store) PushTranscript(item sessionmodel.TranscriptItem) sessionmodel.TranscriptItem {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = s.deps.Clock.Now()
	}

	s.mu.Lock()
	s.state.Transcripts = append(s.state.Transcripts, item)
	s.mu.Unlock()

	s.afterSignal()
	return item
}

// UpdateAudioLevels records an audio telemetry sample. A change in
// energy or background noise beyond SignalDeltaThreshold counts as a new
// signal and triggers inference; smaller jitter only updates state.
func (s *Store) UpdateAudioLevels(energy, noise float64) {
	s.mu.Lock()
	significant := math.Abs(energy-s.state.AudioEnergy) > SignalDeltaThreshold ||
		math.Abs(noise-s.state.BackgroundNoise) > SignalDeltaThreshold
	s.state.AudioEnergy = energy
	s.state.BackgroundNoise = noise
	s.state.AudioBuffers = append(s.state.AudioBuffers, AudioSample{
		Energy:     energy,
		Noise:      noise,
		CapturedAt: s.deps.Clock.Now(),
	})
	if n := len(s.state.AudioBuffers); n > AudioBufferCap {
		s.state.AudioBuffers = s.state.AudioBuffers[n-AudioBufferCap:]
	}
	s.mu.Unlock()

	if significant {
		s.afterSignal()
		return
	}
	s.notify()
}

// UpdateGuardrails merges externally asserted safety flags into the
// session. Flags accumulate; nothing unsets mid-session.
func (s *Store) UpdateGuardrails(flags sessionmodel.GuardrailFlags) {
	s.mu.Lock()
	s.state.Guardrails = s.state.Guardrails.Merge(flags)
	s.mu.Unlock()
	s.afterSignal()
}

// SetRecommendations replaces the recommendation list.
func (s *Store) SetRecommendations(recs []care.Recommendation) {
	s.mu.Lock()
	s.state.Recommendations = care.Normalize(recs)
	s.mu.Unlock()
	s.afterSignal()
}

// SetRecentCheckIns replaces the cached check-in history (most recent
// first).
func (s *Store) SetRecentCheckIns(items []checkin.CheckIn) {
	s.mu.Lock()
	s.state.RecentCheckIns = append([]checkin.CheckIn(nil), items...)
	s.mu.Unlock()
	s.afterSignal()
}

// SetConnectionState reflects the transport layer's connection state.
// The core never invents reconnecting on its own.
func (s *Store) SetConnectionState(state sessionmodel.ConnectionState) {
	s.mu.Lock()
	s.state.ConnectionState = state
	s.mu.Unlock()
	s.notify()
}

// SetMicrophone toggles the microphone flag.
func (s *Store) SetMicrophone(on bool) {
	s.mu.Lock()
	s.state.MicrophoneOn = on
	s.mu.Unlock()
	s.notify()
}

// SetCaptions toggles caption display.
func (s *Store) SetCaptions(on bool) {
	s.mu.Lock()
	s.state.CaptionsEnabled = on
	s.mu.Unlock()
	s.notify()
}

// SetAgentTyping toggles the agent-typing indicator.
func (s *Store) SetAgentTyping(on bool) {
	s.mu.Lock()
	s.state.AgentTyping = on
	s.mu.Unlock()
	s.notify()
}

// SetInterruptionRequested toggles the user's interruption request.
func (s *Store) SetInterruptionRequested(on bool) {
	s.mu.Lock()
	s.state.InterruptionRequested = on
	s.mu.Unlock()
	s.notify()
}

// RecordToolCall registers a pending tool call requested by the
// companion.
func (s *Store) RecordToolCall(name string, args json.RawMessage) sessionmodel.ToolCall {
	call := sessionmodel.ToolCall{
		ID:        uuid.NewString(),
		Name:      name,
		Arguments: args,
		Status:    sessionmodel.ToolCallPending,
		CreatedAt: s.deps.Clock.Now(),
	}
	s.mu.Lock()
	s.state.ToolCalls = append(s.state.ToolCalls, call)
	s.mu.Unlock()
	s.notify()
	return call
}

// ResolveToolCall marks a pending tool call approved or rejected.
func (s *Store) ResolveToolCall(id string, approved bool) bool {
	status := sessionmodel.ToolCallRejected
	if approved {
		status = sessionmodel.ToolCallApproved
	}

	s.mu.Lock()
	found := false
	for i := range s.state.ToolCalls {
		if s.state.ToolCalls[i].ID == id && s.state.ToolCalls[i].Status == sessionmodel.ToolCallPending {
			s.state.ToolCalls[i].Status = status
			found = true
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.notify()
	}
	return found
}

// afterSignal is the shared tail of every signal-bearing mutation: fire
// an inference task, schedule a debounced persist and publish the new
// state.
func (s *Store) afterSignal() {
	s.triggerInference()
	s.schedulePersist()
	s.notify()
}

func (s *Store) schedulePersist() {
	s.mu.RLock()
	saver := s.saver
	s.mu.RUnlock()
	if saver != nil {
		saver.Schedule()
	}
}

// triggerInference spawns a mood inference pass over a snapshot of the
// current state. It is fire-and-forget: failures are logged, and when
// several passes race the last one to resolve wins.
func (s *Store) triggerInference() {
	s.mu.RLock()
	input := mood.Input{
		Transcripts:     append([]sessionmodel.TranscriptItem(nil), s.state.Transcripts...),
		AudioEnergy:     s.state.AudioEnergy,
		BackgroundNoise: s.state.BackgroundNoise,
		RecentCheckIns:  append([]checkin.CheckIn(nil), s.state.RecentCheckIns...),
		Guardrails:      s.state.Guardrails,
	}
	s.mu.RUnlock()

	s.runTask(func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[session] inference task panic (ignored): %v", r)
			}
		}()

		if s.deps.Cues != nil {
			if latest, ok := sessionmodel.LatestUserUtterance(input.Transcripts); ok {
				ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
				input.ExtraCues = s.deps.Cues.Extract(ctx, latest.Content, input.Transcripts)
				cancel()
			}
		}

		result := mood.Infer(input)
		if result == nil {
			return
		}
		s.applyInference(result)
	})
}

// applyInference merges a resolved inference into the timeline,
// recomputes trend and recommendations and schedules persistence. An
// empty recommender result preserves the prior recommendation set.
func (s *Store) applyInference(result *mood.InferenceResult) {
	s.mu.Lock()
	trend, delta := mood.EvaluateTrend(result, s.state.MoodTimeline)
	s.state.MoodTimeline = append(s.state.MoodTimeline, *result)
	if n := len(s.state.MoodTimeline); n > MoodTimelineCap {
		s.state.MoodTimeline = s.state.MoodTimeline[n-MoodTimelineCap:]
	}
	s.state.MoodTrend = trend
	s.state.MoodDelta = delta

	if recs := care.FromMood(result, s.state.RecentCheckIns); len(recs) > 0 {
		s.state.Recommendations = recs
	}
	s.mu.Unlock()

	s.schedulePersist()
	s.cacheSnapshot()
	s.notify()
}
