package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config is the full service configuration, loaded once at startup and passed
// explicitly to the components that need each piece. No component reads the
// environment on its own.
type Config struct {
	Addr string
	Env  string

	PostgresDSN string

	MinioEndpoint  string
	MinioSecure    bool
	MinioAccessKey string
	MinioSecretKey string
	RawBucket      string

	KafkaBrokers           []string
	TopicWorkoutIngestedV1 string

	TerraAPIKey        string
	TerraDeveloperID   string
	TerraWebhookSecret string

	JwtIssuer   string
	JwtAudience string
	JwtSecret   string

	PollInterval time.Duration
}

const defaultPollInterval = 15 * time.Minute

func Load() (Config, error) {
	cfg := Config{
		Addr:                   getEnvDefault("FITSYNC_ADDR", ":8080"),
		Env:                    getEnvDefault("ENV", "local"),
		PostgresDSN:            buildPostgresDSN(),
		MinioAccessKey:         os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:         os.Getenv("MINIO_SECRET_KEY"),
		RawBucket:              os.Getenv("RAW_BUCKET"),
		TopicWorkoutIngestedV1: os.Getenv("TOPIC_WORKOUT_INGESTED_V1"),
		TerraAPIKey:            os.Getenv("TERRA_API_KEY"),
		TerraDeveloperID:       os.Getenv("TERRA_DEVELOPER_ID"),
		TerraWebhookSecret:     os.Getenv("TERRA_WEBHOOK_SECRET"),
		JwtIssuer:              os.Getenv("JWT_ISSUER"),
		JwtAudience:            os.Getenv("JWT_AUDIENCE"),
		JwtSecret:              os.Getenv("JWT_SECRET"),
		PollInterval:           defaultPollInterval,
	}

	endpoint, secure, err := parseEndpoint(os.Getenv("MINIO_ENDPOINT"))
	if err != nil {
		return Config{}, err
	}
	cfg.MinioEndpoint = endpoint
	cfg.MinioSecure = secure

	for _, broker := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		trimmed := strings.TrimSpace(broker)
		if trimmed != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, trimmed)
		}
	}

	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = interval
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("missing POSTGRES configuration")
	}
	if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.RawBucket == "" {
		return Config{}, fmt.Errorf("missing MINIO_ACCESS_KEY, MINIO_SECRET_KEY, or RAW_BUCKET")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return Config{}, fmt.Errorf("missing KAFKA_BROKERS")
	}
	if cfg.TopicWorkoutIngestedV1 == "" {
		return Config{}, fmt.Errorf("missing TOPIC_WORKOUT_INGESTED_V1")
	}
	if cfg.TerraWebhookSecret == "" {
		return Config{}, fmt.Errorf("missing TERRA_WEBHOOK_SECRET")
	}
	if cfg.JwtIssuer == "" || cfg.JwtAudience == "" || cfg.JwtSecret == "" {
		return Config{}, fmt.Errorf("missing JWT_ISSUER, JWT_AUDIENCE, or JWT_SECRET")
	}

	return cfg, nil
}

func buildPostgresDSN() string {
	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	db := os.Getenv("POSTGRES_DB")
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	if host == "" || port == "" || db == "" || user == "" || pass == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, db)
}

func parseEndpoint(raw string) (string, bool, error) {
	if raw == "" {
		return "", false, fmt.Errorf("missing MINIO_ENDPOINT")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("invalid MINIO_ENDPOINT: %w", err)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("invalid MINIO_ENDPOINT: missing host")
		}
		return parsed.Host, parsed.Scheme == "https", nil
	}
	return raw, false, nil
}

func getEnvDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}
