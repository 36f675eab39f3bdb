package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for all environment overrides.
const EnvPrefix = "FACEPACE_"

// EnvConfigFile names the env var holding an optional YAML config path.
const EnvConfigFile = EnvPrefix + "CONFIG"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FACEPACE_CONFIG is set
//  3. env (prefix FACEPACE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FACEPACE_UPLOAD_WORKERS -> upload_workers (flat keys, underscores kept).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The config path itself is not a config key.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.AnalysisTimeoutMS <= 0:
		return invalid("analysis_timeout_ms must be positive")
	case c.UploadWorkers <= 0:
		return invalid("upload_workers must be positive")
	case c.UploadWaitMS <= 0:
		return invalid("upload_wait_ms must be positive")
	case c.UploadQueueSize <= 0:
		return invalid("upload_queue_size must be positive")
	case c.InflightGuardSize <= 0:
		return invalid("inflight_guard_size must be positive")
	case c.MaxUploadBytes <= 0:
		return invalid("max_upload_bytes must be positive")
	case c.CaptureJPEGQuality < 1 || c.CaptureJPEGQuality > 100:
		return invalid("capture_jpeg_quality must be within 1..100")
	}

	switch c.AnalysisMode {
	case AnalysisRemote:
		if c.AnalysisEndpoint == "" {
			return invalid("analysis_endpoint is required in remote mode")
		}
	case AnalysisSimulated:
	default:
		return invalid("unknown analysis_mode %q", c.AnalysisMode)
	}

	switch c.StorageBackend {
	case StorageFS:
		if c.StorageDir == "" {
			return invalid("storage_dir is required for fs storage")
		}
	case StorageS3, StorageGCS:
	default:
		return invalid("unknown storage_backend %q", c.StorageBackend)
	}
	if c.StorageBucket == "" {
		return invalid("storage_bucket must not be empty")
	}

	switch c.SessionBackend {
	case SessionMemory, SessionRedis:
	default:
		return invalid("unknown session_backend %q", c.SessionBackend)
	}

	switch c.LeaderboardBackend {
	case LeaderboardMemory:
	case LeaderboardSQLite, LeaderboardPostgres:
		if c.LeaderboardDSN == "" {
			return invalid("leaderboard_dsn is required for %s", c.LeaderboardBackend)
		}
	default:
		return invalid("unknown leaderboard_backend %q", c.LeaderboardBackend)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
