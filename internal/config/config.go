package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret  string
	JWTExpiry  time.Duration
	AdminToken string
	OpenAIKey  string

	AttemptBudget       int
	ExternalCallTimeout time.Duration

	DailyImageFallback string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:  getEnvString("APP_ENV", "development"),
		Port: getEnvString("PORT", "8080"),

		RedisURL:  getEnvString("REDIS_URL", "localhost:6379"),
		RedisPass: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		JWTSecret:  getEnvString("JWT_SECRET", ""),
		JWTExpiry:  time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		AdminToken: getEnvString("API_SECRET_TOKEN", ""),
		OpenAIKey:  getEnvString("OPENAI_API_KEY", ""),

		AttemptBudget:       getEnvInt("ATTEMPT_BUDGET", 3),
		ExternalCallTimeout: time.Duration(getEnvInt("EXTERNAL_CALL_TIMEOUT_SECONDS", 30)) * time.Second,

		DailyImageFallback: getEnvString("DAILY_IMAGE_FALLBACK", "https://images.unsplash.com/photo-1610177498573-78deaa4a797b"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.AttemptBudget < 1 {
		return nil, fmt.Errorf("ATTEMPT_BUDGET must be at least 1, got %d", cfg.AttemptBudget)
	}

	return cfg, nil
}

func getEnvString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
