package mood

import (
	"testing"
	"time"

	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

func userUtterance(id, content string) sessionmodel.TranscriptItem {
	return sessionmodel.TranscriptItem{
		ID:        id,
		Speaker:   sessionmodel.SpeakerUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestInferCrisisUtterance(t *testing.T) {
	result := Infer(Input{
		Transcripts: []sessionmodel.TranscriptItem{
			userUtterance("t1", "I feel so anxious and overwhelmed, I can't go on"),
		},
	})
	if result == nil {
		t.Fatal("expected an inference result")
	}
	if result.Sentiment != SentimentNegative {
		t.Fatalf("expected negative sentiment, got %s", result.Sentiment)
	}
	if !result.CrisisLikely {
		t.Fatal("expected crisisLikely to be set")
	}
	if result.RecommendedAction != ActionEscalate {
		t.Fatalf("expected escalate, got %s", result.RecommendedAction)
	}
	if len(result.InterventionHints) != 1 || result.InterventionHints[0] != HintCrisisSupport {
		t.Fatalf("expected only the crisis-support hint, got %v", result.InterventionHints)
	}
	if result.SupportingTranscriptID != "t1" {
		t.Fatalf("expected supporting transcript t1, got %s", result.SupportingTranscriptID)
	}
}

func TestInferPositiveLowArousal(t *testing.T) {
	result := Infer(Input{
		Transcripts: []sessionmodel.TranscriptItem{
			userUtterance("t1", "I feel grateful and calm today"),
		},
		AudioEnergy:     0.1,
		BackgroundNoise: 0.05,
	})
	if result == nil {
		t.Fatal("expected an inference result")
	}
	if result.Sentiment != SentimentPositive {
		t.Fatalf("expected positive sentiment, got %s", result.Sentiment)
	}
	if result.Arousal != ArousalLow {
		t.Fatalf("expected low arousal, got %s", result.Arousal)
	}
	if result.CrisisLikely {
		t.Fatal("crisisLikely should not be set")
	}
	if result.RecommendedAction != ActionMonitor {
		t.Fatalf("expected monitor, got %s", result.RecommendedAction)
	}
}

func TestInferNoUserUtterance(t *testing.T) {
	result := Infer(Input{
		Transcripts: []sessionmodel.TranscriptItem{
			{ID: "c1", Speaker: sessionmodel.SpeakerCompanion, Content: "how are you feeling"},
		},
	})
	if result != nil {
		t.Fatalf("expected nil without a user utterance, got %+v", result)
	}
}

func TestInferUsesLatestUserUtterance(t *testing.T) {
	result := Infer(Input{
		Transcripts: []sessionmodel.TranscriptItem{
			userUtterance("t1", "I feel hopeless and worthless"),
			{ID: "c1", Speaker: sessionmodel.SpeakerCompanion, Content: "I hear you"},
			userUtterance("t2", "actually I feel grateful and hopeful now"),
		},
	})
	if result == nil {
		t.Fatal("expected an inference result")
	}
	if result.SupportingTranscriptID != "t2" {
		t.Fatalf("expected latest utterance t2, got %s", result.SupportingTranscriptID)
	}
	if result.Sentiment != SentimentPositive {
		t.Fatalf("expected positive sentiment from the latest utterance, got %s", result.Sentiment)
	}
}

func TestGuardrailFlagsForceCrisis(t *testing.T) {
	result := Infer(Input{
		Transcripts: []sessionmodel.TranscriptItem{
			userUtterance("t1", "I feel okay I guess"),
		},
		Guardrails: sessionmodel.GuardrailFlags{CrisisDetected: true},
	})
	if result == nil {
		t.Fatal("expected an inference result")
	}
	if !result.CrisisLikely {
		t.Fatal("guardrail crisis flag must force crisisLikely")
	}
	if result.RecommendedAction != ActionEscalate {
		t.Fatalf("expected escalate, got %s", result.RecommendedAction)
	}
}

func TestEscalationCueNeverRaisesScore(t *testing.T) {
	base := []Cue{
		{Term: "grateful", Polarity: PolarityPositive, Weight: 1.2},
		{Term: "tired", Polarity: PolarityNegative, Weight: 0.6},
	}
	baseScore, escalated := scoreCues(base)
	if escalated {
		t.Fatal("no escalation cue present, escalated should be false")
	}

	for _, weight := range []float64{0.1, 1.0, 2.5} {
		withEscalation := append(append([]Cue(nil), base...),
			Cue{Term: "cant go on", Polarity: PolarityEscalation, Weight: weight})
		score, escalated := scoreCues(withEscalation)
		if score >= baseScore {
			t.Fatalf("escalation cue (weight %.1f) raised score: %.2f >= %.2f", weight, score, baseScore)
		}
		if !escalated {
			t.Fatal("escalation cue must set the crisis signal")
		}
	}
}

func TestCheckInNudge(t *testing.T) {
	lowMood := []checkin.CheckIn{{Mood: 1}, {Mood: 1}}
	highMood := []checkin.CheckIn{{Mood: 5}, {Mood: 5}}

	if got := adjustForCheckIns(0, lowMood); got >= 0 {
		t.Fatalf("low self-reported mood should pull the score down, got %.2f", got)
	}
	if got := adjustForCheckIns(0, highMood); got <= 0 {
		t.Fatalf("high self-reported mood should push the score up, got %.2f", got)
	}
	if got := adjustForCheckIns(1.0, nil); got != 1.0 {
		t.Fatalf("no check-ins should leave the score unchanged, got %.2f", got)
	}
}

func TestNormalizeUtterance(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"I can't go on!", "i cant go on"},
		{"I can’t sleep", "i cant sleep"},
		{"  Feeling   GREAT  today. ", "feeling great today"},
		{"naïve café", "naive cafe"},
		{"", ""},
		{"123 !!!", ""},
	}
	for _, tc := range cases {
		if got := NormalizeUtterance(tc.in); got != tc.want {
			t.Fatalf("NormalizeUtterance(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMatchCuesDeterministic(t *testing.T) {
	text := NormalizeUtterance("anxious, overwhelmed, grateful and calm")
	first := matchCues(text)
	if len(first) != 4 {
		t.Fatalf("expected 4 cues, got %d: %v", len(first), first)
	}
	for i := 0; i < 20; i++ {
		again := matchCues(text)
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("cue order changed between runs: %v vs %v", first, again)
			}
		}
	}
}

func TestDeriveArousalNetOfNoise(t *testing.T) {
	cases := []struct {
		energy, noise float64
		want          Arousal
	}{
		{0.9, 0.0, ArousalHigh},
		{0.9, 0.6, ArousalLow},
		{0.5, 0.0, ArousalMedium},
		{0.1, 0.05, ArousalLow},
		{0.2, 0.9, ArousalLow},
	}
	for _, tc := range cases {
		if got := deriveArousal(tc.energy, tc.noise); got != tc.want {
			t.Fatalf("deriveArousal(%.2f, %.2f) = %s, want %s", tc.energy, tc.noise, got, tc.want)
		}
	}
}

func TestDetectPatterns(t *testing.T) {
	text := NormalizeUtterance("it's all my fault, I ruined everything and nothing will change")
	detections := detectPatterns(text)

	names := make(map[string]PatternDetection, len(detections))
	for _, d := range detections {
		names[d.Name] = d
	}
	blame, ok := names["self-blame"]
	if !ok {
		t.Fatalf("expected self-blame detection, got %v", detections)
	}
	if len(blame.Evidence) != 2 {
		t.Fatalf("expected two self-blame phrases, got %v", blame.Evidence)
	}
	if blame.Weight != 0.6 {
		t.Fatalf("expected weight 0.6 for two matches, got %.2f", blame.Weight)
	}
	if _, ok := names["hopelessness"]; !ok {
		t.Fatalf("expected hopelessness detection, got %v", detections)
	}
}

func TestDeriveHintsPatternsOverrideSentiment(t *testing.T) {
	patterns := []PatternDetection{{Name: "all-or-nothing", Weight: 0.3}}
	hints := deriveHints(false, patterns, SentimentNegative)
	if len(hints) != 1 || hints[0] != "reframing" {
		t.Fatalf("expected reframing hint, got %v", hints)
	}

	hints = deriveHints(false, nil, SentimentNegative)
	if len(hints) != 1 || hints[0] != "breathing" {
		t.Fatalf("expected breathing fallback, got %v", hints)
	}

	hints = deriveHints(true, patterns, SentimentNegative)
	if len(hints) != 1 || hints[0] != HintCrisisSupport {
		t.Fatalf("crisis must yield only crisis-support, got %v", hints)
	}
}

func TestConfidenceBounds(t *testing.T) {
	// A pile of heavy cues plus high arousal must still respect the cap.
	result := Infer(Input{
		Transcripts: []sessionmodel.TranscriptItem{
			userUtterance("t1", "i want to die i cant take it anymore no reason to live hopeless worthless"),
		},
		AudioEnergy: 0.95,
	})
	if result == nil {
		t.Fatal("expected an inference result")
	}
	if result.Confidence > 0.95 {
		t.Fatalf("confidence above cap: %.3f", result.Confidence)
	}
	if result.Confidence < 0.55 {
		t.Fatalf("confidence below base: %.3f", result.Confidence)
	}
}

func TestEvaluateTrend(t *testing.T) {
	negative := InferenceResult{Sentiment: SentimentNegative}
	neutral := InferenceResult{Sentiment: SentimentNeutral}
	positive := InferenceResult{Sentiment: SentimentPositive}

	trend, delta := EvaluateTrend(&positive, []InferenceResult{negative})
	if trend != TrendImproving || delta != 2 {
		t.Fatalf("expected improving/2, got %s/%d", trend, delta)
	}

	trend, delta = EvaluateTrend(&negative, []InferenceResult{neutral})
	if trend != TrendDeclining || delta != -1 {
		t.Fatalf("expected declining/-1, got %s/%d", trend, delta)
	}

	trend, delta = EvaluateTrend(&neutral, []InferenceResult{neutral})
	if trend != TrendStable || delta != 0 {
		t.Fatalf("expected stable/0, got %s/%d", trend, delta)
	}

	trend, delta = EvaluateTrend(&positive, nil)
	if trend != TrendStable || delta != 0 {
		t.Fatalf("empty timeline should be stable/0, got %s/%d", trend, delta)
	}

	trend, delta = EvaluateTrend(nil, []InferenceResult{neutral})
	if trend != TrendStable || delta != 0 {
		t.Fatalf("nil result should be stable/0, got %s/%d", trend, delta)
	}

	// The comparison uses the newest timeline entry, not the oldest.
	trend, _ = EvaluateTrend(&positive, []InferenceResult{positive, negative})
	if trend != TrendImproving {
		t.Fatalf("expected improving against the latest entry, got %s", trend)
	}
}
