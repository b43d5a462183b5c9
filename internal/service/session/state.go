package session

import (
	"time"

	"github.com/calmloop/calmloop/backend/internal/analysis/care"
	"github.com/calmloop/calmloop/backend/internal/analysis/mood"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

const (
	// MoodTimelineCap bounds the live mood timeline; oldest entries are
	// evicted first.
	MoodTimelineCap = 24

	// AudioBufferCap bounds retained audio telemetry samples.
	AudioBufferCap = 24

	// SignalDeltaThreshold is the minimum absolute change in audio
	// energy or background noise that counts as a new signal.
	SignalDeltaThreshold = 0.18
)

// AudioSample is one retained audio telemetry reading.
type AudioSample struct {
	Energy     float64   `json:"energy"`
	Noise      float64   `json:"noise"`
	CapturedAt time.Time `json:"capturedAt"`
}

// State is the live aggregate of one companion session. It is the single
// source of truth the UI renders from and is mutated only through the
// Store's own operations.
type State struct {
	ConnectionState       sessionmodel.ConnectionState  `json:"connectionState"`
	MicrophoneOn          bool                          `json:"microphoneOn"`
	SessionID             string                        `json:"sessionId,omitempty"`
	ClientSecret          string                        `json:"clientSecret,omitempty"`
	Instructions          string                        `json:"instructions,omitempty"`
	Transport             string                        `json:"transport,omitempty"`
	Locale                string                        `json:"locale,omitempty"`
	Voice                 string                        `json:"voice,omitempty"`
	Transcripts           []sessionmodel.TranscriptItem `json:"transcripts"`
	AudioEnergy           float64                       `json:"audioEnergy"`
	BackgroundNoise       float64                       `json:"backgroundNoise"`
	AudioBuffers          []AudioSample                 `json:"audioBuffers,omitempty"`
	ToolCalls             []sessionmodel.ToolCall       `json:"toolCalls,omitempty"`
	Guardrails            sessionmodel.GuardrailFlags   `json:"guardrails"`
	Recommendations       []care.Recommendation         `json:"recommendations,omitempty"`
	MoodTimeline          []mood.InferenceResult        `json:"moodTimeline,omitempty"`
	MoodTrend             mood.Trend                    `json:"moodTrend"`
	MoodDelta             int                           `json:"moodDelta"`
	RecentCheckIns        []checkin.CheckIn             `json:"recentCheckIns,omitempty"`
	SessionStartedAt      *time.Time                    `json:"sessionStartedAt,omitempty"`
	HistoryID             string                        `json:"historyId,omitempty"`
	LastPersistError      string                        `json:"lastPersistError,omitempty"`
	LastError             string                        `json:"lastError,omitempty"`
	CaptionsEnabled       bool                          `json:"captionsEnabled"`
	AgentTyping           bool                          `json:"agentTyping"`
	InterruptionRequested bool                          `json:"interruptionRequested"`
	AgentResponding       bool                          `json:"agentResponding"`
}

func defaultState() State {
	return State{
		ConnectionState: sessionmodel.Disconnected,
		MoodTrend:       mood.TrendStable,
	}
}

// clone deep-copies the slices so callers can hold a snapshot without
// racing the store.
func (s State) clone() State {
	out := s
	out.Transcripts = append([]sessionmodel.TranscriptItem(nil), s.Transcripts...)
	out.AudioBuffers = append([]AudioSample(nil), s.AudioBuffers...)
	out.ToolCalls = append([]sessionmodel.ToolCall(nil), s.ToolCalls...)
	out.Recommendations = append([]care.Recommendation(nil), s.Recommendations...)
	out.MoodTimeline = append([]mood.InferenceResult(nil), s.MoodTimeline...)
	out.RecentCheckIns = append([]checkin.CheckIn(nil), s.RecentCheckIns...)
	return out
}
