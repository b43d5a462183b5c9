package mood

// Lexical catalogues matched against the normalized user utterance. Terms
// are stored in normalized form (lowercase, letters and spaces only) so
// matching stays a plain substring check.

var positiveTerms = map[string]float64{
	"grateful":     1.2,
	"thankful":     1.1,
	"calm":         1.0,
	"peaceful":     1.0,
	"happy":        1.0,
	"hopeful":      1.1,
	"relaxed":      1.0,
	"relieved":     0.9,
	"proud":        1.0,
	"content":      0.9,
	"optimistic":   1.1,
	"rested":       0.8,
	"better today": 0.8,
	"feeling good": 0.8,
	"loved":        1.0,
	"supported":    0.9,
}

var negativeTerms = map[string]float64{
	"anxious":     1.2,
	"overwhelmed": 1.2,
	"panic":       1.2,
	"depressed":   1.2,
	"hopeless":    1.3,
	"worthless":   1.3,
	"sad":         1.0,
	"lonely":      1.0,
	"scared":      1.0,
	"afraid":      1.0,
	"stressed":    1.0,
	"miserable":   1.1,
	"worried":     0.9,
	"angry":       0.9,
	"guilty":      0.9,
	"numb":        0.9,
	"exhausted":   0.8,
	"cant sleep":  0.8,
	"tired":       0.6,
}

// escalationTerms always carry the highest severity; any match forces the
// crisis path regardless of the rest of the utterance.
var escalationTerms = map[string]float64{
	"cant go on":            2.0,
	"cant take it anymore":  2.0,
	"end it all":            2.2,
	"want to die":           2.5,
	"kill myself":           2.5,
	"hurt myself":           2.2,
	"no reason to live":     2.3,
	"better off without me": 2.2,
	"give up completely":    1.8,
}

// escalationSeverity amplifies escalation weights in the scalar score.
const escalationSeverity = 1.5

type patternRule struct {
	Name    string
	Phrases []string
}

// patternRules drive cognitive-distortion detection. Phrases are in
// normalized form.
var patternRules = []patternRule{
	{
		Name: "catastrophizing",
		Phrases: []string{
			"worst thing",
			"ruin everything",
			"everything is falling apart",
			"never recover",
			"complete disaster",
		},
	},
	{
		Name: "all-or-nothing",
		Phrases: []string{
			"always fail",
			"never works",
			"nothing ever",
			"no one ever",
			"everyone always",
		},
	},
	{
		Name: "self-blame",
		Phrases: []string{
			"my fault",
			"i ruined",
			"im to blame",
			"because of me",
			"i always mess",
		},
	},
	{
		Name: "hopelessness",
		Phrases: []string{
			"no point",
			"whats the use",
			"nothing will change",
			"never get better",
			"cant see a way",
		},
	},
}

// patternHints maps a detected pattern to the intervention hint it
// suggests. Crisis overrides all of these.
var patternHints = map[string]string{
	"catastrophizing": "grounding",
	"all-or-nothing":  "reframing",
	"self-blame":      "self-compassion",
	"hopelessness":    "behavioral-activation",
}

// sentimentHints is the fallback hint when no pattern fired.
var sentimentHints = map[Sentiment]string{
	SentimentNegative: "breathing",
	SentimentNeutral:  "mindful-pause",
	SentimentPositive: "gratitude-reflection",
}

// HintCrisisSupport is the sole hint emitted when crisis is likely.
const HintCrisisSupport = "crisis-support"
