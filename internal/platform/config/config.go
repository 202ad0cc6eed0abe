// Package config loads application configuration from environment variables.
// All variables use the BUZZLE_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	AWS         AWSConfig
	AI          AIConfig
	TTS         TTSConfig
	Progress    ProgressConfig
	Session     SessionConfig
	Log         LogConfig
	CatalogPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Host            string
	AllowedOrigins  []string // extra websocket origins
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL disables
// the database.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL
// disables the cache.
type CacheConfig struct {
	URL string
}

// AWSConfig holds settings shared by Polly, Bedrock and DynamoDB.
type AWSConfig struct {
	Region string
}

// AIConfig holds configuration for all AI providers.
type AIConfig struct {
	Anthropic AnthropicConfig
	OpenAI    OpenAIConfig
	DeepSeek  DeepSeekConfig
	Bedrock   BedrockConfig
	// LessonProvider, when set, is tried first for learn mode.
	LessonProvider string
}

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// BedrockConfig holds AWS Bedrock settings. Credentials come from the
// default AWS chain.
type BedrockConfig struct {
	Enabled bool
	Model   string
}

// TTSConfig holds narration synthesis settings.
type TTSConfig struct {
	Provider string // "polly", "google" or "chain" (polly, then google)
	Language string // google translate voice language
	CacheTTL time.Duration
}

// ProgressConfig holds progress storage settings.
type ProgressConfig struct {
	Store       string // "memory", "postgres" or "dynamodb"
	DynamoTable string
	// URL, when set, sends finished games to a remote progress endpoint
	// instead of the local store.
	URL string
}

// SessionConfig holds play-through settings.
type SessionConfig struct {
	// GenerateURL, when set, sends generation requests to a remote endpoint
	// instead of the in-process generator.
	GenerateURL      string
	NarrationGap     time.Duration
	FeedbackFallback time.Duration
	FeedbackTimeout  time.Duration
	ToggleCooldown   time.Duration
	SuccessThreshold int
	NarrationLimit   int // concurrent synthesis calls per generation
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with BUZZLE_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("BUZZLE_SERVER_PORT", 8080),
			Host:            envStr("BUZZLE_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins:  envList("BUZZLE_SERVER_ALLOWED_ORIGINS"),
			ShutdownTimeout: envDuration("BUZZLE_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:      envStr("BUZZLE_DATABASE_URL", ""),
			MaxConns: envInt("BUZZLE_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("BUZZLE_DATABASE_MIN_CONNS", 2),
		},
		Cache: CacheConfig{
			URL: envStr("BUZZLE_CACHE_URL", ""),
		},
		AWS: AWSConfig{
			Region: envStr("BUZZLE_AWS_REGION", "us-east-1"),
		},
		AI: AIConfig{
			Anthropic: AnthropicConfig{
				APIKey: envStr("BUZZLE_AI_ANTHROPIC_API_KEY", ""),
				Model:  envStr("BUZZLE_AI_ANTHROPIC_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				APIKey: envStr("BUZZLE_AI_OPENAI_API_KEY", ""),
				Model:  envStr("BUZZLE_AI_OPENAI_MODEL", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("BUZZLE_AI_DEEPSEEK_API_KEY", ""),
			},
			Bedrock: BedrockConfig{
				Enabled: envBool("BUZZLE_AI_BEDROCK_ENABLED", false),
				Model:   envStr("BUZZLE_AI_BEDROCK_MODEL", ""),
			},
			LessonProvider: envStr("BUZZLE_AI_LESSON_PROVIDER", ""),
		},
		TTS: TTSConfig{
			Provider: envStr("BUZZLE_TTS_PROVIDER", "chain"),
			Language: envStr("BUZZLE_TTS_LANGUAGE", "en"),
			CacheTTL: envDuration("BUZZLE_TTS_CACHE_TTL", 24*time.Hour),
		},
		Progress: ProgressConfig{
			Store:       envStr("BUZZLE_PROGRESS_STORE", "memory"),
			DynamoTable: envStr("BUZZLE_PROGRESS_DYNAMO_TABLE", "BuzzleUserProgress"),
			URL:         envStr("BUZZLE_PROGRESS_URL", ""),
		},
		Session: SessionConfig{
			GenerateURL:      envStr("BUZZLE_SESSION_GENERATE_URL", ""),
			NarrationGap:     envDuration("BUZZLE_SESSION_NARRATION_GAP", time.Second),
			FeedbackFallback: envDuration("BUZZLE_SESSION_FEEDBACK_FALLBACK", 3*time.Second),
			FeedbackTimeout:  envDuration("BUZZLE_SESSION_FEEDBACK_TIMEOUT", 10*time.Second),
			ToggleCooldown:   envDuration("BUZZLE_SESSION_TOGGLE_COOLDOWN", time.Second),
			SuccessThreshold: envInt("BUZZLE_SESSION_SUCCESS_THRESHOLD", 3),
			NarrationLimit:   envInt("BUZZLE_SESSION_NARRATION_LIMIT", 4),
		},
		Log: LogConfig{
			Level:  envStr("BUZZLE_LOG_LEVEL", "info"),
			Format: envStr("BUZZLE_LOG_FORMAT", "json"),
		},
		CatalogPath: envStr("BUZZLE_CATALOG_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("BUZZLE_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Session.GenerateURL == "" && !c.HasAIProvider() {
		return fmt.Errorf("at least one AI provider must be configured when BUZZLE_SESSION_GENERATE_URL is empty")
	}

	switch c.TTS.Provider {
	case "polly", "google", "chain":
	default:
		return fmt.Errorf("BUZZLE_TTS_PROVIDER must be 'polly', 'google' or 'chain', got %q", c.TTS.Provider)
	}

	switch c.Progress.Store {
	case "memory", "dynamodb":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("BUZZLE_DATABASE_URL is required when BUZZLE_PROGRESS_STORE is 'postgres'")
		}
	default:
		return fmt.Errorf("BUZZLE_PROGRESS_STORE must be 'memory', 'postgres' or 'dynamodb', got %q", c.Progress.Store)
	}

	if c.Session.SuccessThreshold < 1 {
		return fmt.Errorf("BUZZLE_SESSION_SUCCESS_THRESHOLD must be positive, got %d", c.Session.SuccessThreshold)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("BUZZLE_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.Anthropic.APIKey != "" ||
		c.AI.OpenAI.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Bedrock.Enabled
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
