package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/ucundinamarca/cundibot/internal/logger"
)

type Config struct {
	GeminiAPIKey   string
	DatabaseURL    string
	HTTPPort       string
	LogLevel       string
	KnowledgeDir   string
	IndexPath      string
	ChatModel      string
	EmbeddingModel string
}

// Load reads configuration from the environment (and a .env file, if one
// exists). GEMINI_API_KEY is deliberately not required at startup: without it
// the chat and ingestion paths fail with their own errors instead of the
// process refusing to boot.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Log.Info("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", "chatbot_log.db"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		KnowledgeDir:   getEnv("KNOWLEDGE_DIR", "knowledge"),
		IndexPath:      getEnv("INDEX_PATH", "knowledge_index.json"),
		ChatModel:      getEnv("CHAT_MODEL", "gemini-1.5-flash-latest"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
	}

	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		return nil, fmt.Errorf("HTTP_PORT must be numeric, got %q", cfg.HTTPPort)
	}
	if cfg.GeminiAPIKey == "" {
		logger.Log.Warn("GEMINI_API_KEY is not set; chat and ingestion will be unavailable until it is configured")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
