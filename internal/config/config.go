// Package config loads the top-level server and worker process
// configuration from the environment, using a per-field
// os.Getenv-then-validate style.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ServerConfig is the HTTP transport binary's own configuration (PORT and
// the queue backend); the binary reads DATABASE_URL through
// dbpool.LoadConfigFromEnv.
type ServerConfig struct {
	Port          string
	UseRedisQueue bool
	RedisURL      string
}

// LoadServerConfigFromEnv loads PORT, USE_REDIS_QUEUE/QUEUE_BACKEND, and
// REDIS_URL. DATABASE_URL and pool tuning are owned by dbpool.LoadConfigFromEnv.
func LoadServerConfigFromEnv() (ServerConfig, error) {
	cfg := ServerConfig{Port: "8080"}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	backend := strings.ToLower(os.Getenv("QUEUE_BACKEND"))
	if backend == "redis" {
		cfg.UseRedisQueue = true
	}
	if v := os.Getenv("USE_REDIS_QUEUE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid USE_REDIS_QUEUE: %w", err)
		}
		cfg.UseRedisQueue = b
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.UseRedisQueue && cfg.RedisURL == "" {
		return cfg, fmt.Errorf("REDIS_URL is required when the Redis queue backend is enabled")
	}

	return cfg, nil
}

// WorkerConfig is the background worker binary's own configuration:
// REDIS_URL and WORKER_JOB_TYPES. The binary reads DATABASE_URL through
// dbpool.LoadConfigFromEnv.
type WorkerConfig struct {
	RedisURL string
	JobTypes []string
}

// LoadWorkerConfigFromEnv loads REDIS_URL (required) and WORKER_JOB_TYPES
// (comma-separated, defaulting to every known job type).
func LoadWorkerConfigFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{JobTypes: []string{"ingest", "crate_add"}}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return cfg, fmt.Errorf("REDIS_URL is required")
	}

	if v := os.Getenv("WORKER_JOB_TYPES"); v != "" {
		parts := strings.Split(v, ",")
		types := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part != "" {
				types = append(types, part)
			}
		}
		if len(types) > 0 {
			cfg.JobTypes = types
		}
	}

	return cfg, nil
}
