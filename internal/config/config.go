package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int
	JWTSecret     string
	DatabaseURL   string
	CORSOrigins   []string
	AdminEmail    string
	AdminPassword string

	// Checkout
	DefaultGateway      string
	Currency            string
	PostPaymentRedirect string
	SessionTTL          time.Duration
	SimulatedLatency    time.Duration

	// Stripe; the stripe gateway is only registered when the secret key is set.
	StripeSecretKey     string
	StripeWebhookSecret string

	// Events; publishing is disabled when no broker is configured.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "4001"))
	if err != nil {
		return nil, fmt.Errorf("PORT must be a number: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	ttl, err := time.ParseDuration(getEnv("CHECKOUT_SESSION_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("CHECKOUT_SESSION_TTL: %w", err)
	}
	latency, err := time.ParseDuration(getEnv("SIMULATED_LATENCY", "1500ms"))
	if err != nil {
		return nil, fmt.Errorf("SIMULATED_LATENCY: %w", err)
	}

	gateway := getEnv("DEFAULT_GATEWAY", "complypay")
	if gateway != "stripe" && gateway != "complypay" {
		return nil, fmt.Errorf("DEFAULT_GATEWAY must be stripe or complypay, got %q", gateway)
	}
	stripeKey := getEnv("STRIPE_SECRET_KEY", "")
	if gateway == "stripe" && stripeKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required when DEFAULT_GATEWAY=stripe")
	}

	return &Config{
		Port:                port,
		JWTSecret:           jwtSecret,
		DatabaseURL:         dbURL,
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		AdminEmail:          getEnv("ADMIN_EMAIL", "admin@orgadmin.local"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", "admin123"),
		DefaultGateway:      gateway,
		Currency:            strings.ToUpper(getEnv("CURRENCY", "BRL")),
		PostPaymentRedirect: getEnv("POST_PAYMENT_REDIRECT", "/login"),
		SessionTTL:          ttl,
		SimulatedLatency:    latency,
		StripeSecretKey:     stripeKey,
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		KafkaBrokers:        splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "checkout-events"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
