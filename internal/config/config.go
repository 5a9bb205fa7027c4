package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultModel is used when MODEL is absent or set to the "gemini" alias.
const DefaultModel = "gemini-pro"

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// Gemini
	GeminiAPIKey    string
	GeminiBaseURL   string
	Model           string
	GroundingPrefix string

	// Rate limiting of outbound Gemini calls. Disabled when RateLimitPerMinute is 0.
	RateLimitPerMinute int
	RateLimitTimeout   time.Duration
	ThrottleMessage    string

	// Sessions
	SystemPrompt  string
	MaxTokens     int
	SessionTTL    time.Duration
	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string

	// HTTP surface
	AdminJWTSecret     string
	HTTPRateLimitRPS   float64
	HTTPRateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", ""),
		Model:           NormalizeModel(getEnv("MODEL", "")),
		GroundingPrefix: getOptionalEnv("GEMINI_GROUNDING_PREFIX"),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_GEMINI", 0),
		RateLimitTimeout:   getEnvAsDuration("RATE_LIMIT_TIMEOUT", 5*time.Second),
		ThrottleMessage:    getEnv("THROTTLE_MESSAGE", ""),

		SystemPrompt:  getEnv("CHARACTER_DESC", ""),
		MaxTokens:     getEnvAsInt("CONVERSATION_MAX_TOKENS", 1000),
		SessionTTL:    getEnvAsDuration("SESSION_EXPIRES_IN", time.Hour),
		SessionStore:  strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "memory"))),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		HTTPRateLimitRPS:   getEnvAsFloat("HTTP_RATE_LIMIT_RPS", 5),
		HTTPRateLimitBurst: getEnvAsInt("HTTP_RATE_LIMIT_BURST", 10),
	}
}

// RateLimitEnabled reports whether outbound Gemini calls go through the token bucket.
func (c *Config) RateLimitEnabled() bool {
	return c != nil && c.RateLimitPerMinute > 0
}

// GroundingEnabled reports whether a grounding prefix is configured.
func (c *Config) GroundingEnabled() bool {
	return c != nil && c.GroundingPrefix != ""
}

// NormalizeModel maps an empty model and the "gemini" alias to DefaultModel.
func NormalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" || model == "gemini" {
		return DefaultModel
	}
	return model
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getOptionalEnv returns the value of key only when it is present and non-blank.
func getOptionalEnv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
