package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Voice   VoiceConfig
	History HistoryConfig
	Cache   CacheConfig
	Session SessionConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Voice:   voice,
		History: HistoryConfig{BaseURL: getEnvOrDefault("HISTORY_STORE_URL", "")},
		Cache:   CacheConfig{Path: getEnvOrDefault("SNAPSHOT_CACHE_PATH", "calmloop-cache.db")},
		Session: session,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the chat model used by the remote cue classifier.
type AIConfig struct {
	APIKey          string
	AccessKey       string
	SecretKey       string
	Model           string
	BaseURL         string
	Region          string
	Temperature     *float64
	MaxTokens       *int
	CueLLMEnabled   bool
	CueHistoryLimit int
}

// Enabled reports whether the required model credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	cueEnabled, err := parseBoolEnv("AI_CUE_LLM_ENABLED", false)
	if err != nil {
		return AIConfig{}, err
	}

	cueHistory := 6
	if historyOverride, err := parseOptionalIntEnv("AI_CUE_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if historyOverride != nil && *historyOverride >= 1 {
		cueHistory = *historyOverride
	}

	return AIConfig{
		APIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:           strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:     temperature,
		MaxTokens:       maxTokens,
		CueLLMEnabled:   cueEnabled,
		CueHistoryLimit: cueHistory,
	}, nil
}

// VoiceConfig describes the realtime-voice provider endpoint.
type VoiceConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func loadVoiceConfig() (VoiceConfig, error) {
	timeoutSeconds := 20
	if timeout, err := parseOptionalIntEnv("VOICE_PROVIDER_TIMEOUT"); err != nil {
		return VoiceConfig{}, err
	} else if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	return VoiceConfig{
		BaseURL: getEnvOrDefault("VOICE_PROVIDER_URL", ""),
		APIKey:  strings.TrimSpace(os.Getenv("VOICE_PROVIDER_API_KEY")),
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// HistoryConfig describes the remote history store.
type HistoryConfig struct {
	BaseURL string
}

// CacheConfig describes the local snapshot cache.
type CacheConfig struct {
	Path string
}

// SessionConfig carries orchestrator tunables.
type SessionConfig struct {
	DebounceDelay time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	debounceMs := 4000
	if override, err := parseOptionalIntEnv("PERSIST_DEBOUNCE_MS"); err != nil {
		return SessionConfig{}, err
	} else if override != nil && *override > 0 {
		debounceMs = *override
	}

	return SessionConfig{DebounceDelay: time.Duration(debounceMs) * time.Millisecond}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
