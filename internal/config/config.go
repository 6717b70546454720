package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the process-wide, read-only configuration: the store connection
// and completion-client credentials are shared by every request.
type Config struct {
	ListenAddr    string
	MongoURI      string
	MongoDatabase string
	OpenAIBaseURL string
	OpenAIToken   string
	Model         string
	JWTSecret     string
}

// Load reads .env if present, then the environment. MONGODB_URI may be left
// empty to run against the in-memory store.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8100"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "chatnova"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIToken:   os.Getenv("OPENAI_API_KEY"),
		Model:         getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
	}

	if cfg.OpenAIToken == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
