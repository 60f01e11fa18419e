package config

import (
	"testing"
	"time"
)

var configVars = []string{
	"PORT",
	"STORAGE_DRIVER",
	"DYNAMODB_ENDPOINT",
	"DYNAMODB_REGION",
	"DYNAMODB_TABLE",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"JWT_SECRET",
	"TOKEN_TTL",
	"ALLOWED_ORIGINS",
	"LOG_LEVEL",
}

// clearEnv blanks every config variable for the duration of the test.
// DYNAMODB_ENDPOINT is distinguished between unset and empty, so it is
// restored separately by the tests that need it.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "production")
	for _, k := range configVars {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Port", cfg.Port, "8080"},
		{"StorageDriver", cfg.StorageDriver, DriverDynamoDB},
		{"DynamoDBRegion", cfg.DynamoDBRegion, "us-east-1"},
		{"DynamoDBTable", cfg.DynamoDBTable, "chat-app"},
		{"AWSAccessKey", cfg.AWSAccessKey, "dummy"},
		{"AWSSecretKey", cfg.AWSSecretKey, "dummy"},
		{"JWTSecret", cfg.JWTSecret, "secret"},
		{"LogLevel", cfg.LogLevel, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}

	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("TokenTTL = %v, want 168h", cfg.TokenTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("AllowedOrigins = %v, want [http://localhost:5173]", cfg.AllowedOrigins)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DYNAMODB_ENDPOINT", "http://dynamodb:8000")
	t.Setenv("DYNAMODB_REGION", "us-west-2")
	t.Setenv("DYNAMODB_TABLE", "chat-test")
	t.Setenv("AWS_ACCESS_KEY_ID", "test-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test-secret")
	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Port", cfg.Port, "9000"},
		{"StorageDriver", cfg.StorageDriver, DriverMemory},
		{"DynamoDBEndpoint", cfg.DynamoDBEndpoint, "http://dynamodb:8000"},
		{"DynamoDBRegion", cfg.DynamoDBRegion, "us-west-2"},
		{"DynamoDBTable", cfg.DynamoDBTable, "chat-test"},
		{"AWSAccessKey", cfg.AWSAccessKey, "test-key"},
		{"AWSSecretKey", cfg.AWSSecretKey, "test-secret"},
		{"JWTSecret", cfg.JWTSecret, "s3cr3t"},
		{"LogLevel", cfg.LogLevel, "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}

	if cfg.TokenTTL != time.Hour {
		t.Errorf("TokenTTL = %v, want 1h", cfg.TokenTTL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoad_EmptyEndpointSelectsAWS(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.DynamoDBEndpoint != "" {
		t.Errorf("DynamoDBEndpoint = %q, want empty", cfg.DynamoDBEndpoint)
	}
}

func TestLoad_InvalidTokenTTL(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKEN_TTL", "forever")

	cfg := Load()

	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("TokenTTL = %v, want default", cfg.TokenTTL)
	}
}

func TestGetEnv_WithValue(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	result := getEnv("TEST_VAR", "default")
	if result != "test-value" {
		t.Errorf("getEnv() = %q, want %q", result, "test-value")
	}
}

func TestGetEnv_WithoutValue(t *testing.T) {
	result := getEnv("MISSING_VAR_FOR_CONFIG_TEST", "default-value")
	if result != "default-value" {
		t.Errorf("getEnv() = %q, want %q", result, "default-value")
	}
}

func TestGetEnv_EmptyString(t *testing.T) {
	t.Setenv("EMPTY_VAR", "")

	// Empty string should return default
	result := getEnv("EMPTY_VAR", "default")
	if result != "default" {
		t.Errorf("getEnv() with empty string = %q, want %q", result, "default")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a ,b,, c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
