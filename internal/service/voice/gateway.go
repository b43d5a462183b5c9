package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/calmloop/calmloop/backend/internal/analysis/care"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

// ErrUpstream marks a voice-provider failure that survived the retry
// budget.
var ErrUpstream = errors.New("voice provider unavailable")

// DefaultMaxAttempts bounds how many times a provider call is tried.
const DefaultMaxAttempts = 3

// StartOptions selects the transport, locale and voice of a new session.
type StartOptions struct {
	Transport string `json:"transport"`
	Locale    string `json:"locale"`
	Voice     string `json:"voice"`
}

// BootstrapResult is what the provider hands back when a session starts:
// the transport secret plus the initial conversation context the
// orchestrator seeds its state from.
type BootstrapResult struct {
	SessionID                string                        `json:"sessionId"`
	ClientSecret             string                        `json:"clientSecret,omitempty"`
	Instructions             string                        `json:"instructions,omitempty"`
	Transport                string                        `json:"transport"`
	Locale                   string                        `json:"locale"`
	Voice                    string                        `json:"voice"`
	ConnectionState          sessionmodel.ConnectionState  `json:"connectionState"`
	RecommendedInterventions []care.Recommendation         `json:"recommendedInterventions,omitempty"`
	Guardrails               sessionmodel.GuardrailFlags   `json:"guardrails"`
	MoodContext              []sessionmodel.TranscriptItem `json:"moodContext,omitempty"`
	CheckIns                 []checkin.CheckIn             `json:"checkIns,omitempty"`
}

// RelayReceipt echoes the outcome of forwarding one event.
type RelayReceipt struct {
	Delivered bool   `json:"delivered"`
	Attempts  int    `json:"attempts"`
	Status    string `json:"status,omitempty"`
}

// Gateway proxies the one-shot calls to the external realtime-voice
// provider. The provider's own protocol stays opaque here; the gateway
// only knows how to start a session and forward a single event, with
// bounded exponential backoff and jitter on transient failures.
type Gateway struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxAttempts int
}

// NewGateway builds a provider gateway. A nil httpClient gets a default
// with a bounded timeout.
func NewGateway(baseURL, apiKey string, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Gateway{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  httpClient,
		maxAttempts: DefaultMaxAttempts,
	}
}

// StartSession asks the provider for a new live session.
func (g *Gateway) StartSession(ctx context.Context, opts StartOptions) (BootstrapResult, error) {
	var result BootstrapResult
	_, err := g.post(ctx, "/v1/realtime/sessions", opts, &result)
	if err != nil {
		return BootstrapResult{}, err
	}
	if result.ConnectionState == "" {
		result.ConnectionState = sessionmodel.Connected
	}
	return result, nil
}

// RelayEvent forwards one opaque event to the live session.
func (g *Gateway) RelayEvent(ctx context.Context, sessionID string, event json.RawMessage) (RelayReceipt, error) {
	payload := struct {
		SessionID string          `json:"sessionId"`
		Event     json.RawMessage `json:"event"`
	}{SessionID: sessionID, Event: event}

	var receipt RelayReceipt
	attempts, err := g.post(ctx, "/v1/realtime/sessions/"+url.PathEscape(sessionID)+"/events", payload, &receipt)
	receipt.Attempts = attempts
	if err != nil {
		return receipt, err
	}
	receipt.Delivered = true
	return receipt, nil
}

// post performs a JSON POST with the retry policy and reports how many
// attempts were made.
func (g *Gateway) post(ctx context.Context, path string, in, out any) (int, error) {
	encoded, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("encode provider payload: %w", err)
	}

	attempts := 0
	operation := func() error {
		attempts++

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if g.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.apiKey)
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
		case resp.StatusCode >= 400:
			// Client errors will not get better with retries.
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode response: %v", ErrUpstream, err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	err = backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(g.maxAttempts-1)), ctx))
	return attempts, err
}
