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
	LogLevel      string
	PublicBaseURL string

	// Upstream services
	BackendBaseURL string
	PushGatewayURL string

	// Auth
	PatientJWTSecret string

	// Redis (cart storage)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	RedisDB       int

	// Cart behavior
	CartKeyPrefix string
	CartTTL       time.Duration

	// Realtime bridge
	RealtimeMaxRetries     int
	RealtimeBackoffBase    time.Duration
	RealtimeConnectTimeout time.Duration

	// Checkout
	DeliveryFeeCents int

	// Error surfacing: lenient swallows storage/connection errors the way the
	// portal UI expects; strict returns them to callers for debugging.
	StrictErrors bool

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:5000"),
		PushGatewayURL: getEnv("PUSH_GATEWAY_URL", "ws://localhost:5001/ws"),

		PatientJWTSecret: getEnv("PATIENT_JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		CartKeyPrefix: getEnv("CART_KEY_PREFIX", "cart:"),
		CartTTL:       getEnvAsDuration("CART_TTL", 30*24*time.Hour),

		RealtimeMaxRetries:     getEnvAsInt("REALTIME_MAX_RETRIES", 4),
		RealtimeBackoffBase:    getEnvAsDuration("REALTIME_BACKOFF_BASE", 2*time.Second),
		RealtimeConnectTimeout: getEnvAsDuration("REALTIME_CONNECT_TIMEOUT", 10*time.Second),

		DeliveryFeeCents: getEnvAsInt("DELIVERY_FEE_CENTS", 4000),

		StrictErrors: getEnvAsBool("STRICT_ERRORS", false),

		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
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

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
