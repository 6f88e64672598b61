package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Port        string
	MongoURI    string
	Environment string

	// JWT shared secret for verifying caller identity
	JWTSecret string

	// Bearer secret for the external-scheduler cleanup endpoint
	CronSecret string

	// CORS
	AllowedOrigins string

	// Rendering
	LogoURL string

	// Record retention
	RecordTTLDays   int    // sliding expiry window, reset on every save
	CleanupSchedule string // cron expression for the in-process sweep, UTC
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3001"),
		MongoURI:    getEnv("MONGODB_URI", ""),
		Environment: getEnv("ENVIRONMENT", ""),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		CronSecret: getEnv("CRON_SECRET", ""),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),

		LogoURL: getEnv("LOGO_URL", ""),

		RecordTTLDays:   getIntEnv("RECORD_TTL_DAYS", 15),
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 2 * * *"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
