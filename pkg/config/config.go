package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Environment      string
	Port             string
	StorageDriver    string
	DynamoDBEndpoint string
	DynamoDBRegion   string
	DynamoDBTable    string
	AWSAccessKey     string
	AWSSecretKey     string
	JWTSecret        string
	TokenTTL         time.Duration
	AllowedOrigins   []string
	LogLevel         string
}

// Load reads configuration from environment variables. Outside production a
// .env file in the working directory is loaded first, if present; variables
// already set in the environment win.
func Load() *Config {
	env := getEnv("ENV", "development")
	if env != "production" {
		_ = godotenv.Load()
	}

	return &Config{
		Environment:      env,
		Port:             getEnv("PORT", "8080"),
		StorageDriver:    getEnv("STORAGE_DRIVER", DriverDynamoDB),
		DynamoDBEndpoint: lookupEnv("DYNAMODB_ENDPOINT", "http://localhost:8000"),
		DynamoDBRegion:   getEnv("DYNAMODB_REGION", "us-east-1"),
		DynamoDBTable:    getEnv("DYNAMODB_TABLE", "chat-app"),
		AWSAccessKey:     getEnv("AWS_ACCESS_KEY_ID", "dummy"),
		AWSSecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", "dummy"),
		JWTSecret:        getEnv("JWT_SECRET", "secret"),
		TokenTTL:         getDuration("TOKEN_TTL", 7*24*time.Hour),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv reads an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv is like getEnv but an explicitly empty variable is kept, so
// DYNAMODB_ENDPOINT= selects the real AWS endpoint.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
