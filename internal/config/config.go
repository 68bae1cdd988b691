package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Inbound auth
	RelayAPIKey    string
	AdminJWTSecret string

	// Zone and destination mapping
	ZoneMapJSON  string
	FieldMapJSON string
	SourceTag    string
	MediumTag    string

	// Forwarding behaviour
	ForwardTimeout  time.Duration
	ForwardThrottle time.Duration

	// Failure ledger
	LedgerBackend string
	LedgerCap     int

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Operator alerts
	EmailProvider     string
	AlertEmail        string
	AlertWindow       time.Duration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	AWSRegion         string

	// Public-route protection
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RelayAPIKey:    getEnv("RELAY_API_KEY", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		ZoneMapJSON:  getEnv("ZONE_MAP_JSON", ""),
		FieldMapJSON: getEnv("FIELD_MAP_JSON", ""),
		SourceTag:    getEnv("SOURCE_TAG", "partner-relay"),
		MediumTag:    getEnv("MEDIUM_TAG", "partner-api"),

		ForwardTimeout:  getEnvAsDuration("FORWARD_TIMEOUT", 5*time.Second),
		ForwardThrottle: getEnvAsDuration("FORWARD_THROTTLE", 150*time.Millisecond),

		LedgerBackend: strings.ToLower(strings.TrimSpace(getEnv("LEDGER_BACKEND", "memory"))),
		LedgerCap:     getEnvAsInt("LEDGER_CAP", 1000),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		AlertEmail:        getEnv("ALERT_EMAIL", ""),
		AlertWindow:       getEnvAsDuration("ALERT_WINDOW", 15*time.Minute),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Lead Relay"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
