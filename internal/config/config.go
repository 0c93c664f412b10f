package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Voice provider webhook ingestion
	DevFallbackBusinessID string

	// Twilio SMS
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Tool endpoints shared secret
	ToolsBearerToken string

	// Dashboard auth
	DashboardJWTSecret string

	// Analytics
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	AnalyticsCacheTTL time.Duration
	AnalyticsStaleTTL time.Duration
	RepeatCallerTopN  int

	CORSAllowedOrigins string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		DevFallbackBusinessID: getEnv("DEV_FALLBACK_BUSINESS_ID", ""),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		ToolsBearerToken: getEnv("TOOLS_BEARER_TOKEN", ""),

		DashboardJWTSecret: getEnv("DASHBOARD_JWT_SECRET", ""),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		AnalyticsCacheTTL: getEnvAsDuration("ANALYTICS_CACHE_TTL", 30*time.Second),
		AnalyticsStaleTTL: getEnvAsDuration("ANALYTICS_STALE_TTL", 5*time.Minute),
		RepeatCallerTopN:  getEnvAsInt("REPEAT_CALLER_TOP_N", 20),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}
}

// IsProduction reports whether the app runs with production safeguards,
// which disables the dev fallback tenant.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CORSOrigins returns the configured allowed origins as a list.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
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
