package history

import (
	"time"

	"github.com/calmloop/calmloop/backend/internal/analysis/care"
	"github.com/calmloop/calmloop/backend/internal/analysis/mood"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

// Record is the durable unit of one companion conversation. The document
// lives in the remote history store; HistoryID is assigned there on the
// first save and reused for every subsequent write of the same session.
type Record struct {
	HistoryID                string                        `json:"historyId,omitempty"`
	SessionID                string                        `json:"sessionId"`
	Transcripts              []sessionmodel.TranscriptItem `json:"transcripts"`
	RecommendedInterventions []care.Recommendation         `json:"recommendedInterventions,omitempty"`
	Guardrails               sessionmodel.GuardrailFlags   `json:"guardrails"`
	MoodInferenceTimeline    []mood.InferenceResult        `json:"moodInferenceTimeline,omitempty"`
	DurationMs               *int64                        `json:"durationMs,omitempty"`
	StartedAt                *time.Time                    `json:"startedAt,omitempty"`
	EndedAt                  *time.Time                    `json:"endedAt,omitempty"`
	Transport                string                        `json:"transport,omitempty"`
	Locale                   string                        `json:"locale,omitempty"`
	Voice                    string                        `json:"voice,omitempty"`
	Metadata                 map[string]any                `json:"metadata,omitempty"`
	StoredAt                 time.Time                     `json:"storedAt,omitempty"`
	UpdatedAt                time.Time                     `json:"updatedAt,omitempty"`
}

// Summary is the list-view projection of a Record.
type Summary struct {
	HistoryID       string     `json:"historyId"`
	SessionID       string     `json:"sessionId"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationMs      *int64     `json:"durationMs,omitempty"`
	TranscriptCount int        `json:"transcriptCount"`
	StoredAt        time.Time  `json:"storedAt,omitempty"`
}
