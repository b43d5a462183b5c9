package cues

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/calmloop/calmloop/backend/internal/analysis/mood"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

// Config controls the remote cue classifier.
type Config struct {
	Enabled      bool
	HistoryLimit int
}

// Service asks a chat model for additional weighted mood cues when the
// static lexicons are not enough. It is strictly advisory: any failure
// yields an empty cue set, never an error, so the lexical path keeps
// working offline.
type Service struct {
	enabled      bool
	classifier   compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
}

// NewService creates the cue classifier. chatModel may reuse an existing
// model instance; with a nil model the service stays disabled.
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 6
	}

	svc := &Service{
		enabled:      cfg.Enabled && chatModel != nil,
		historyLimit: historyLimit,
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(cueSystemPrompt),
		schema.UserMessage(cueUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile cue classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled reports whether the remote classifier is usable.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Extract returns extra cues for the utterance, or nil when disabled or
// on any failure.
func (s *Service) Extract(ctx context.Context, utterance string, transcripts []sessionmodel.TranscriptItem) []mood.Cue {
	if !s.Enabled() || strings.TrimSpace(utterance) == "" {
		return nil
	}

	input := map[string]any{
		"utterance": strings.TrimSpace(utterance),
		"history":   formatHistory(transcripts, s.historyLimit),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		log.Printf("[cues] classifier invoke failed, continuing without remote cues: %v", err)
		return nil
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	parsed, err := parseClassifierOutput(msg.Content)
	if err != nil {
		log.Printf("[cues] classifier output parse failed, continuing without remote cues: %v", err)
		return nil
	}
	return parsed
}

// parseClassifierOutput pulls the JSON array out of the model response
// and keeps only well-formed cues.
func parseClassifierOutput(content string) ([]mood.Cue, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json array")
	}

	var raw []struct {
		Term     string  `json:"term"`
		Polarity string  `json:"polarity"`
		Weight   float64 `json:"weight"`
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &raw); err != nil {
		return nil, err
	}

	var cues []mood.Cue
	for _, item := range raw {
		polarity, ok := parsePolarity(item.Polarity)
		if !ok || strings.TrimSpace(item.Term) == "" {
			continue
		}
		cues = append(cues, mood.Cue{
			Term:     strings.ToLower(strings.TrimSpace(item.Term)),
			Polarity: polarity,
			Weight:   clampWeight(item.Weight),
		})
	}
	return cues, nil
}

func parsePolarity(raw string) (mood.Polarity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive":
		return mood.PolarityPositive, true
	case "negative":
		return mood.PolarityNegative, true
	case "escalation":
		return mood.PolarityEscalation, true
	default:
		return "", false
	}
}

func clampWeight(val float64) float64 {
	if val <= 0 {
		return 0.5
	}
	if val > 3 {
		return 3
	}
	return val
}

func formatHistory(items []sessionmodel.TranscriptItem, limit int) string {
	if len(items) == 0 {
		return "no prior conversation"
	}
	start := len(items) - limit
	if start < 0 {
		start = 0
	}

	var builder strings.Builder
	for i := start; i < len(items); i++ {
		item := items[i]
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(string(item.Speaker))
		builder.WriteString(": ")
		builder.WriteString(content)
	}
	if builder.Len() == 0 {
		return "no prior conversation"
	}
	return builder.String()
}

const cueSystemPrompt = "You analyze short mental-wellness conversations. Given the user's latest utterance and recent history, list weighted emotional cues present in the utterance. Respond with only a JSON array of objects with fields: term (short lowercase phrase), polarity (one of positive/negative/escalation), weight (number between 0 and 3). Use escalation only for content suggesting self-harm or crisis. Return [] when no clear cues exist."

const cueUserPrompt = "Recent conversation:\n{history}\n\nLatest user utterance:\n{utterance}\n\nReturn the JSON array."
