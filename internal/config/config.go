package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string
	CORSOrigins string
	TablePrefix string
	// Completion service configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string // empty = api.openai.com; set for compatible gateways
	Model         string
	StreamTimeout time.Duration
	// Context assembly
	TokenBudget     int
	KeepRecentPairs int
	// Rate limiting (completion requests per identifier per window)
	RateLimit       int
	RateLimitWindow time.Duration
	// Debug flags
	Debug bool
	// File logging; empty LogDir means stdout only
	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWKSURL:     getEnv("JWKS_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		Model:         getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
		StreamTimeout: getDuration("STREAM_TIMEOUT", 60*time.Second),

		TokenBudget:     getInt("CONTEXT_TOKEN_BUDGET", 7000),
		KeepRecentPairs: getInt("CONTEXT_KEEP_RECENT_PAIRS", 6),

		RateLimit:       getInt("RATE_LIMIT", 10),
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", time.Minute),

		// Default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getInt("LOG_MAX_FILES", 10),
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
