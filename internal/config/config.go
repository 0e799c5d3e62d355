package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/victorivanov/huddle/internal/snowflake"
)

type Config struct {
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	ServerAddr         string
	LogLevel           slog.Level
	WorkerID           int64
	ProcessID          int64
	RateLimitPerMinute int
	MetricsEnabled     bool
	// Browser origins allowed to open the gateway. Empty allows any.
	GatewayOrigins []string

	// Archive storage for purged conversations. An empty endpoint disables
	// archiving.
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOSecure    bool
}

// Load reads the configuration from the environment, after merging a .env
// file from the working directory if one exists. It panics when a required
// variable is missing or a value does not parse.
func Load() *Config {
	_ = godotenv.Load(".env")

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		DatabaseURL: getenv("DATABASE_URL"),
		RedisURL:    get("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getenv("JWT_SECRET"),
		ServerAddr:  get("SERVER_ADDR", ":8080"),
		LogLevel:    parseLogLevel(getenv("LOG_LEVEL")),

		MinIOEndpoint:  getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    get("MINIO_BUCKET", "huddle-archive"),

		GatewayOrigins: splitList(getenv("GATEWAY_ORIGINS")),
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.WorkerID, err = parseID("SNOWFLAKE_WORKER_ID", get("SNOWFLAKE_WORKER_ID", "1"), snowflake.MaxWorkerID); err != nil {
		return nil, err
	}
	if cfg.ProcessID, err = parseID("SNOWFLAKE_PROCESS_ID", get("SNOWFLAKE_PROCESS_ID", "1"), snowflake.MaxProcessID); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = strconv.Atoi(get("RATE_LIMIT_PER_MINUTE", "120")); err != nil || cfg.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be a non-negative integer")
	}
	if cfg.MetricsEnabled, err = strconv.ParseBool(get("METRICS_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("METRICS_ENABLED: %w", err)
	}
	if cfg.MinIOSecure, err = strconv.ParseBool(get("MINIO_SECURE", "false")); err != nil {
		return nil, fmt.Errorf("MINIO_SECURE: %w", err)
	}

	return cfg, nil
}

func parseID(key, v string, limit int64) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 || n > limit {
		return 0, fmt.Errorf("%s must be between 0 and %d, got %q", key, limit, v)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
