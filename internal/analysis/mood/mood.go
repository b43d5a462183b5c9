package mood

// Sentiment is the inferred emotional valence of the latest user utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Arousal is the inferred activation level derived from voice energy net
// of background noise.
type Arousal string

const (
	ArousalLow    Arousal = "low"
	ArousalMedium Arousal = "medium"
	ArousalHigh   Arousal = "high"
)

// Polarity classifies a lexical cue. Escalation cues always carry the
// highest severity and force a crisis signal.
type Polarity string

const (
	PolarityPositive   Polarity = "positive"
	PolarityNegative   Polarity = "negative"
	PolarityEscalation Polarity = "escalation"
)

// Action is the recommended follow-up for the companion loop.
type Action string

const (
	ActionMonitor    Action = "monitor"
	ActionDeEscalate Action = "de-escalate"
	ActionEscalate   Action = "escalate"
)

// Cue is a weighted lexical match contributing to the sentiment score.
type Cue struct {
	Term     string   `json:"term"`
	Polarity Polarity `json:"polarity"`
	Weight   float64  `json:"weight"`
}

// PatternDetection names a detected cognitive distortion with the phrases
// that triggered it.
type PatternDetection struct {
	Name     string   `json:"name"`
	Weight   float64  `json:"weight"`
	Evidence []string `json:"evidence"`
}

// ExplainabilityTag is a named weighted contribution to the inference,
// surfaced so the UI can attribute the estimate.
type ExplainabilityTag struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// InferenceResult is one mood snapshot appended to the session's bounded
// mood timeline.
type InferenceResult struct {
	Sentiment              Sentiment           `json:"sentiment"`
	Arousal                Arousal             `json:"arousal"`
	Confidence             float64             `json:"confidence"`
	Cues                   []Cue               `json:"cues,omitempty"`
	SupportingTranscriptID string              `json:"supportingTranscriptId,omitempty"`
	CrisisLikely           bool                `json:"crisisLikely"`
	RecommendedAction      Action              `json:"recommendedAction"`
	Patterns               []PatternDetection  `json:"patterns,omitempty"`
	ExplainabilityTags     []ExplainabilityTag `json:"explainabilityTags,omitempty"`
	InterventionHints      []string            `json:"interventionHints,omitempty"`
}

// Trend compares consecutive inference snapshots.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)
