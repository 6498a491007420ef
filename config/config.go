package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Payment gateway defaults, overridden by the settings collection
	PaymentProvider      string
	PaystackPublicKey    string
	PaystackSecretKey    string
	PaystackBaseURL      string
	StripePublishableKey string
	StripeSecretKey      string
	Currency             string
	GatewayTimeout       time.Duration

	// Checkout
	ReferencePrefix        string
	VerificationSecret     string
	VerificationSecretHash string
	TicketSigningKey       string

	// Holds and cleanup
	HoldTTL        time.Duration
	PendingTTL     time.Duration
	ReaperInterval time.Duration

	// Security
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "ticket-shop-server"),

		// Payment
		PaymentProvider:      getEnv("PAYMENT_PROVIDER", "paystack"),
		PaystackPublicKey:    getEnv("PAYSTACK_PUBLIC_KEY", ""),
		PaystackSecretKey:    getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackBaseURL:      getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		Currency:             getEnv("CURRENCY", "NGN"),
		GatewayTimeout:       getEnvAsDuration("GATEWAY_TIMEOUT", "10s"),

		// Checkout
		ReferencePrefix:        getEnv("REFERENCE_PREFIX", "TS"),
		VerificationSecret:     getEnv("VERIFICATION_SECRET", ""),
		VerificationSecretHash: getEnv("VERIFICATION_SECRET_HASH", ""),
		TicketSigningKey:       getEnv("TICKET_SIGNING_KEY", ""),

		// Holds and cleanup
		HoldTTL:        getEnvAsDuration("HOLD_TTL", "15m"),
		PendingTTL:     getEnvAsDuration("PENDING_TTL", "30m"),
		ReaperInterval: getEnvAsDuration("REAPER_INTERVAL", "5m"),

		// Security
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// fall back to the default when the env value is malformed
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
