package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is assembled from environment variables at startup. Only the JWT
// key is unconditionally required; the store backend decides which
// connection strings must be present.
type Config struct {
	Addr           string
	AllowedOrigins []string
	JWTKey         string

	// StoreBackend is one of "memory", "redis", "postgres".
	StoreBackend string
	RedisAddr    string
	PostgresURL  string

	FeedWebhookURL string
	SweepInterval  time.Duration
	Debug          bool
}

func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("ADDR", ":5000"),
		StoreBackend:  envOr("STORE_BACKEND", "memory"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		SweepInterval: 5 * time.Minute,
		Debug:         os.Getenv("DEBUG") == "true",
	}

	jwtKey, exists := os.LookupEnv("JWT_KEY")
	if !exists {
		return Config{}, fmt.Errorf("missing JWT_KEY")
	}
	cfg.JWTKey = jwtKey

	if origins, exists := os.LookupEnv("ALLOWED_ORIGINS"); exists {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	if raw, exists := os.LookupEnv("SWEEP_INTERVAL"); exists {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("bad SWEEP_INTERVAL %q: %w", raw, err)
		}
		cfg.SweepInterval = interval
	}

	cfg.PostgresURL = os.Getenv("POSTGRES_URL")
	cfg.FeedWebhookURL = os.Getenv("FEED_WEBHOOK_URL")

	switch cfg.StoreBackend {
	case "memory", "redis":
	case "postgres":
		if cfg.PostgresURL == "" {
			return Config{}, fmt.Errorf("STORE_BACKEND=postgres needs POSTGRES_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if value, exists := os.LookupEnv(name); exists {
		return value
	}
	return fallback
}
