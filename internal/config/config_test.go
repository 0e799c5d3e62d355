package config

import (
	"log/slog"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DATABASE_URL": "postgres://localhost/huddle",
		"JWT_SECRET":   "s3cret",
	}))
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.ServerAddr != ":8080" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.WorkerID != 1 || cfg.ProcessID != 1 {
		t.Errorf("snowflake ids = %d/%d, want 1/1", cfg.WorkerID, cfg.ProcessID)
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Errorf("RateLimitPerMinute = %d", cfg.RateLimitPerMinute)
	}
	if !cfg.MetricsEnabled {
		t.Error("metrics should default to enabled")
	}
	if cfg.MinIOEndpoint != "" || cfg.MinIOBucket != "huddle-archive" || cfg.MinIOSecure {
		t.Errorf("unexpected archive defaults: %q %q %v", cfg.MinIOEndpoint, cfg.MinIOBucket, cfg.MinIOSecure)
	}
	if len(cfg.GatewayOrigins) != 0 {
		t.Errorf("GatewayOrigins = %v, want none", cfg.GatewayOrigins)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DATABASE_URL":          "postgres://db/huddle",
		"JWT_SECRET":            "s3cret",
		"REDIS_URL":             "redis://cache:6379/2",
		"SERVER_ADDR":           "127.0.0.1:9000",
		"LOG_LEVEL":             "DEBUG",
		"SNOWFLAKE_WORKER_ID":   "7",
		"SNOWFLAKE_PROCESS_ID":  "0",
		"RATE_LIMIT_PER_MINUTE": "0",
		"METRICS_ENABLED":       "false",
		"MINIO_ENDPOINT":        "minio:9000",
		"MINIO_BUCKET":          "archives",
		"MINIO_SECURE":          "true",
		"GATEWAY_ORIGINS":       " https://app.huddle.test, ,http://localhost:5173",
	}))
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.RedisURL != "redis://cache:6379/2" || cfg.ServerAddr != "127.0.0.1:9000" {
		t.Errorf("unexpected addresses: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.WorkerID != 7 || cfg.ProcessID != 0 {
		t.Errorf("snowflake ids = %d/%d", cfg.WorkerID, cfg.ProcessID)
	}
	if cfg.RateLimitPerMinute != 0 || cfg.MetricsEnabled {
		t.Errorf("rate limit %d, metrics %v", cfg.RateLimitPerMinute, cfg.MetricsEnabled)
	}
	if cfg.MinIOEndpoint != "minio:9000" || cfg.MinIOBucket != "archives" || !cfg.MinIOSecure {
		t.Errorf("unexpected archive settings: %q %q %v", cfg.MinIOEndpoint, cfg.MinIOBucket, cfg.MinIOSecure)
	}
	if got := strings.Join(cfg.GatewayOrigins, "|"); got != "https://app.huddle.test|http://localhost:5173" {
		t.Errorf("GatewayOrigins = %q", got)
	}
}

func TestFromEnv_MissingRequired(t *testing.T) {
	_, err := FromEnv(envMap(nil))
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{"DATABASE_URL", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestFromEnv_InvalidValues(t *testing.T) {
	base := map[string]string{"DATABASE_URL": "postgres://db", "JWT_SECRET": "x"}
	tests := map[string]string{
		"SNOWFLAKE_WORKER_ID":   "32",
		"SNOWFLAKE_PROCESS_ID":  "-1",
		"RATE_LIMIT_PER_MINUTE": "lots",
		"METRICS_ENABLED":       "maybe",
		"MINIO_SECURE":          "sometimes",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			env := map[string]string{key: value}
			for k, v := range base {
				env[k] = v
			}
			if _, err := FromEnv(envMap(env)); err == nil {
				t.Errorf("%s=%q: expected an error", key, value)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		" debug ": slog.LevelDebug,
		"Warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoad_PanicsWithoutRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	defer func() {
		if recover() == nil {
			t.Error("expected Load to panic")
		}
	}()
	Load()
}
