package care

import (
	"sort"

	"github.com/calmloop/calmloop/backend/internal/analysis/mood"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
)

const (
	lowMoodThreshold      = 2
	mildLowMoodThreshold  = 3
	highIntensityFloor    = 7
	moderateIntensityCeil = 6
)

var catalog = map[Kind]Recommendation{
	KindBreathing: {
		Type:              KindBreathing,
		Title:             "Box breathing",
		Description:       "A short paced-breathing exercise to settle a spike of intensity.",
		Priority:          PriorityMedium,
		EstimatedDuration: "3 min",
	},
	KindGrounding: {
		Type:              KindGrounding,
		Title:             "5-4-3-2-1 grounding",
		Description:       "Reconnect with your surroundings through the five senses.",
		Priority:          PriorityMedium,
		EstimatedDuration: "4 min",
	},
	KindSafetyResources: {
		Type:              KindSafetyResources,
		Title:             "Support resources",
		Description:       "Immediate access to crisis lines and professional support.",
		Priority:          PriorityHigh,
		EstimatedDuration: "1 min",
	},
	KindGratitudeReflection: {
		Type:              KindGratitudeReflection,
		Title:             "Gratitude reflection",
		Description:       "Note three small things that went well today.",
		Priority:          PriorityLow,
		EstimatedDuration: "2 min",
	},
	KindReframing: {
		Type:              KindReframing,
		Title:             "Thought reframing",
		Description:       "Examine an all-or-nothing thought and find a middle view.",
		Priority:          PriorityMedium,
		EstimatedDuration: "5 min",
	},
	KindSelfCompassion: {
		Type:              KindSelfCompassion,
		Title:             "Self-compassion break",
		Description:       "Speak to yourself the way you would to a friend.",
		Priority:          PriorityMedium,
		EstimatedDuration: "3 min",
	},
	KindBehavioralActivation: {
		Type:              KindBehavioralActivation,
		Title:             "One small step",
		Description:       "Pick one tiny activity and schedule it for today.",
		Priority:          PriorityMedium,
		EstimatedDuration: "5 min",
	},
	KindMindfulPause: {
		Type:              KindMindfulPause,
		Title:             "Mindful pause",
		Description:       "A brief check-in with breath and body.",
		Priority:          PriorityLow,
		EstimatedDuration: "2 min",
	},
}

// hintKinds maps extractor intervention hints onto catalog entries.
var hintKinds = map[string]Kind{
	mood.HintCrisisSupport:  KindSafetyResources,
	"breathing":             KindBreathing,
	"grounding":             KindGrounding,
	"reframing":             KindReframing,
	"self-compassion":       KindSelfCompassion,
	"behavioral-activation": KindBehavioralActivation,
	"mindful-pause":         KindMindfulPause,
	"gratitude-reflection":  KindGratitudeReflection,
}

// FromCheckIns recommends interventions from recent check-ins alone, for
// use before any live mood inference exists. Check-ins are most recent
// first; the rules evaluate the latest one. All matching rules contribute.
func FromCheckIns(checkIns []checkin.CheckIn) []Recommendation {
	var recs []Recommendation
	if len(checkIns) > 0 {
		latest := checkIns[0]
		if latest.Mood <= lowMoodThreshold && latest.Intensity >= highIntensityFloor {
			recs = append(recs, catalog[KindBreathing])
		}
		if latest.Mood <= mildLowMoodThreshold && latest.Intensity <= moderateIntensityCeil {
			recs = append(recs, catalog[KindGrounding])
		}
		if latest.CrisisDetected {
			// Safety resources jump the queue ahead of everything else.
			safety := catalog[KindSafetyResources]
			safety.Priority = PriorityHigh
			recs = append([]Recommendation{safety}, recs...)
		}
	}
	if len(recs) == 0 {
		recs = append(recs, catalog[KindGratitudeReflection])
	}
	return Normalize(recs)
}

// FromMood combines the extractor's intervention hints with the check-in
// rules. The result is deduplicated by kind (keeping the strongest
// priority) and sorted for display.
func FromMood(result *mood.InferenceResult, checkIns []checkin.CheckIn) []Recommendation {
	if result == nil {
		return FromCheckIns(checkIns)
	}

	var recs []Recommendation
	for _, hint := range result.InterventionHints {
		kind, ok := hintKinds[hint]
		if !ok {
			continue
		}
		rec := catalog[kind]
		if hint == mood.HintCrisisSupport {
			rec.Priority = PriorityHigh
		}
		recs = append(recs, rec)
	}
	if len(checkIns) > 0 {
		recs = append(recs, FromCheckIns(checkIns)...)
	}
	if len(recs) == 0 {
		recs = append(recs, catalog[KindGratitudeReflection])
	}
	return Normalize(dedupe(recs))
}

// Normalize sorts recommendations by ascending priority value; ties keep
// insertion order.
func Normalize(recs []Recommendation) []Recommendation {
	out := append([]Recommendation(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

func dedupe(recs []Recommendation) []Recommendation {
	seen := make(map[Kind]int, len(recs))
	var out []Recommendation
	for _, rec := range recs {
		if idx, ok := seen[rec.Type]; ok {
			if rec.Priority < out[idx].Priority {
				out[idx].Priority = rec.Priority
			}
			continue
		}
		seen[rec.Type] = len(out)
		out = append(out, rec)
	}
	return out
}
