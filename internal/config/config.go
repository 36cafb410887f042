// Package config loads configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration values.
type Config struct {
	// Upstream discussion API
	APIBaseURL string
	APIToken   string

	// Qdrant connection
	QdrantHost string
	QdrantPort int

	// OpenAI embeddings
	OpenAIAPIKey string

	// Sync state database
	DataDir string

	// Server
	Port       string
	ServerMode bool

	// Logging
	LogLevel slog.Level
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		APIBaseURL: getEnv("EDSYNC_API_URL", "https://edstem.org"),
		APIToken:   getEnv("EDSYNC_API_TOKEN", ""),

		QdrantHost: getEnv("QDRANT_HOST", "localhost"),
		QdrantPort: getEnvInt("QDRANT_PORT", 6334),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),

		DataDir: getEnv("EDSYNC_DATA_DIR", ""),

		Port:       getEnv("PORT", "8080"),
		ServerMode: getEnv("SERVER_MODE", "false") == "true",

		LogLevel: parseLogLevel(getEnv("EDSYNC_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
