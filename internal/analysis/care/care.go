package care

// Priority orders recommendations for display; lower values come first.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityMedium Priority = 1
	PriorityLow    Priority = 2
)

// Kind enumerates the micro-interventions the app can offer.
type Kind string

const (
	KindBreathing            Kind = "breathing"
	KindGrounding            Kind = "grounding"
	KindSafetyResources      Kind = "safety-resources"
	KindGratitudeReflection  Kind = "gratitude-reflection"
	KindReframing            Kind = "reframing"
	KindSelfCompassion       Kind = "self-compassion"
	KindBehavioralActivation Kind = "behavioral-activation"
	KindMindfulPause         Kind = "mindful-pause"
)

// Recommendation is an advisory suggestion; it is never auto-triggered.
type Recommendation struct {
	Type              Kind     `json:"type"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Priority          Priority `json:"priority"`
	EstimatedDuration string   `json:"estimatedDuration,omitempty"`
}
