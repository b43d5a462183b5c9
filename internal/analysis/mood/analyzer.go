package mood

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

const (
	arousalHighThreshold   = 0.75
	arousalMediumThreshold = 0.35

	sentimentThreshold = 1.5

	confidenceBase         = 0.55
	confidenceStep         = 0.08
	confidenceArousalBonus = 0.08
	confidenceCap          = 0.95

	checkInNudge   = 0.3
	checkInNeutral = 3.0
)

// Input carries everything the extractor needs for one inference pass.
// ExtraCues holds cues fetched from the optional remote classifier; the
// caller is responsible for that call so Infer stays deterministic.
type Input struct {
	Transcripts     []sessionmodel.TranscriptItem
	AudioEnergy     float64
	BackgroundNoise float64
	RecentCheckIns  []checkin.CheckIn
	Guardrails      sessionmodel.GuardrailFlags
	ExtraCues       []Cue
}

// Infer derives a mood snapshot from the latest user utterance plus audio
// telemetry, recent check-ins and guardrail flags. It returns nil when no
// user utterance exists yet.
func Infer(in Input) *InferenceResult {
	latest, ok := sessionmodel.LatestUserUtterance(in.Transcripts)
	if !ok {
		return nil
	}

	normalized := NormalizeUtterance(latest.Content)
	cues := matchCues(normalized)
	cues = append(cues, in.ExtraCues...)

	score, escalated := scoreCues(cues)
	score = adjustForCheckIns(score, in.RecentCheckIns)

	arousal := deriveArousal(in.AudioEnergy, in.BackgroundNoise)
	sentiment := deriveSentiment(score)

	confidence := confidenceBase + math.Min(math.Abs(score), 4)*confidenceStep
	if arousal == ArousalHigh {
		confidence += confidenceArousalBonus
	}
	if confidence > confidenceCap {
		confidence = confidenceCap
	}

	crisisLikely := escalated || in.Guardrails.CrisisIndicated()

	action := ActionMonitor
	switch {
	case crisisLikely:
		action = ActionEscalate
	case sentiment == SentimentNegative && arousal == ArousalHigh:
		action = ActionDeEscalate
	}

	patterns := detectPatterns(normalized)

	return &InferenceResult{
		Sentiment:              sentiment,
		Arousal:                arousal,
		Confidence:             confidence,
		Cues:                   cues,
		SupportingTranscriptID: latest.ID,
		CrisisLikely:           crisisLikely,
		RecommendedAction:      action,
		Patterns:               patterns,
		ExplainabilityTags:     buildExplainability(patterns, cues, arousal),
		InterventionHints:      deriveHints(crisisLikely, patterns, sentiment),
	}
}

// NormalizeUtterance lowercases, strips diacritics and non-letters, and
// collapses whitespace. Apostrophes vanish without leaving a space so
// contractions match their lexicon form ("can't" becomes "cant").
func NormalizeUtterance(text string) string {
	decomposed := norm.NFD.String(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Combining mark left over from decomposition: drop it.
		case r == '\'' || r == '’':
		case unicode.IsLetter(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func matchCues(normalized string) []Cue {
	if normalized == "" {
		return nil
	}

	var cues []Cue
	appendMatches := func(terms map[string]float64, polarity Polarity) {
		for term, weight := range terms {
			if strings.Contains(normalized, term) {
				cues = append(cues, Cue{Term: term, Polarity: polarity, Weight: weight})
			}
		}
	}
	appendMatches(positiveTerms, PolarityPositive)
	appendMatches(negativeTerms, PolarityNegative)
	appendMatches(escalationTerms, PolarityEscalation)

	// Map iteration order is random; keep the cue list deterministic.
	sort.Slice(cues, func(i, j int) bool {
		if cues[i].Polarity != cues[j].Polarity {
			return cues[i].Polarity < cues[j].Polarity
		}
		return cues[i].Term < cues[j].Term
	})
	return cues
}

// scoreCues folds the cue set into a scalar sentiment score and reports
// whether any escalation cue fired. Escalation weights count at
// escalationSeverity, so adding one can only lower the score.
func scoreCues(cues []Cue) (float64, bool) {
	score := 0.0
	escalated := false
	for _, cue := range cues {
		switch cue.Polarity {
		case PolarityPositive:
			score += cue.Weight
		case PolarityNegative:
			score -= cue.Weight
		case PolarityEscalation:
			score -= cue.Weight * escalationSeverity
			escalated = true
		}
	}
	return score, escalated
}

// adjustForCheckIns nudges the score toward recent self-reported mood:
// the average mood centered on the neutral midpoint, scaled down.
func adjustForCheckIns(score float64, checkIns []checkin.CheckIn) float64 {
	if len(checkIns) == 0 {
		return score
	}
	sum := 0.0
	for _, ci := range checkIns {
		sum += float64(ci.Mood)
	}
	avg := sum / float64(len(checkIns))
	return score + checkInNudge*(avg-checkInNeutral)
}

func deriveArousal(energy, backgroundNoise float64) Arousal {
	effective := math.Max(energy-backgroundNoise, 0)
	switch {
	case effective > arousalHighThreshold:
		return ArousalHigh
	case effective > arousalMediumThreshold:
		return ArousalMedium
	default:
		return ArousalLow
	}
}

func deriveSentiment(score float64) Sentiment {
	switch {
	case score > sentimentThreshold:
		return SentimentPositive
	case score < -sentimentThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func detectPatterns(normalized string) []PatternDetection {
	var detections []PatternDetection
	for _, rule := range patternRules {
		var evidence []string
		for _, phrase := range rule.Phrases {
			if strings.Contains(normalized, phrase) {
				evidence = append(evidence, phrase)
			}
		}
		if len(evidence) == 0 {
			continue
		}
		weight := math.Min(0.3*float64(len(evidence)), 1.0)
		detections = append(detections, PatternDetection{
			Name:     rule.Name,
			Weight:   weight,
			Evidence: evidence,
		})
	}
	return detections
}

func buildExplainability(patterns []PatternDetection, cues []Cue, arousal Arousal) []ExplainabilityTag {
	arousalBoost := 0.0
	switch arousal {
	case ArousalHigh:
		arousalBoost = 0.2
	case ArousalMedium:
		arousalBoost = 0.1
	}

	tags := []ExplainabilityTag{
		{Name: "transcript", Weight: 0.4},
		{Name: "audio-arousal", Weight: 0.2 + arousalBoost},
		{Name: "history", Weight: 0.15},
	}
	for _, p := range patterns {
		tags = append(tags, ExplainabilityTag{Name: "pattern:" + p.Name, Weight: p.Weight})
	}
	if len(cues) > 0 {
		tags = append(tags, ExplainabilityTag{
			Name:   "cue-density",
			Weight: math.Min(0.1*float64(len(cues)), 0.5),
		})
	}
	return tags
}

func deriveHints(crisisLikely bool, patterns []PatternDetection, sentiment Sentiment) []string {
	if crisisLikely {
		return []string{HintCrisisSupport}
	}

	var hints []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		hint, ok := patternHints[p.Name]
		if !ok || seen[hint] {
			continue
		}
		seen[hint] = true
		hints = append(hints, hint)
	}
	if len(hints) == 0 {
		hints = append(hints, sentimentHints[sentiment])
	}
	return hints
}
