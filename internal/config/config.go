// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case so env vars map one to one (FACEPACE_ADDR -> addr).
// - New returns a Config populated with defaults; Load layers file and env on top.
// - Validate reports the first invalid field wrapped in ErrInvalidConfig.
package config

import (
	"runtime"
	"time"
)

// Storage backends.
const (
	StorageFS  = "fs"
	StorageS3  = "s3"
	StorageGCS = "gcs"
)

// Analysis modes. Simulated must be chosen explicitly and is never a fallback.
const (
	AnalysisRemote    = "remote"
	AnalysisSimulated = "simulated"
)

// Session store backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Leaderboard backends.
const (
	LeaderboardMemory   = "memory"
	LeaderboardSQLite   = "sqlite"
	LeaderboardPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// PublicBaseURL is used to build public references for the fs backend.
	PublicBaseURL string `koanf:"public_base_url"`

	// StorageBackend selects fs, s3 or gcs.
	StorageBackend string `koanf:"storage_backend"`
	StorageDir     string `koanf:"storage_dir"`
	StorageBucket  string `koanf:"storage_bucket"`
	S3Region       string `koanf:"s3_region"`
	S3Endpoint     string `koanf:"s3_endpoint"`
	S3Prefix       string `koanf:"s3_prefix"`
	GCSPrefix      string `koanf:"gcs_prefix"`

	// AnalysisEndpoint is the full URL of the remote analysis service.
	AnalysisEndpoint  string `koanf:"analysis_endpoint"`
	AnalysisTimeoutMS int    `koanf:"analysis_timeout_ms"`
	AnalysisMode      string `koanf:"analysis_mode"`

	// UploadWaitMS bounds how long an analysis request waits for its uploads.
	UploadWaitMS int `koanf:"upload_wait_ms"`

	// SessionBackend selects memory or redis.
	SessionBackend string `koanf:"session_backend"`
	SessionTTLS    int    `koanf:"session_ttl_s"`
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`

	// LeaderboardBackend selects memory, sqlite or postgres.
	LeaderboardBackend  string `koanf:"leaderboard_backend"`
	LeaderboardDSN      string `koanf:"leaderboard_dsn"`
	MaxLeaderboardLimit int    `koanf:"max_leaderboard_limit"`

	// UploadQueueSize bounds the in-memory upload job queue.
	UploadQueueSize int `koanf:"upload_queue_size"`

	// UploadWorkers sets the number of background upload workers.
	UploadWorkers int `koanf:"upload_workers"`

	// MaxUploadBytes caps a single media upload body.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// InflightGuardSize bounds the in-flight analysis guard.
	InflightGuardSize int `koanf:"inflight_guard_size"`

	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	TracingEnabled bool   `koanf:"tracing_enabled"`
	OTLPEndpoint   string `koanf:"otlp_endpoint"`

	// Capture profile used by the capture CLI.
	CaptureMirror      bool `koanf:"capture_mirror"`
	CaptureJPEGQuality int  `koanf:"capture_jpeg_quality"`

	// Results display profile.
	ShowHeartRate bool `koanf:"show_heart_rate"`
	ShowSubScores bool `koanf:"show_sub_scores"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		PublicBaseURL:       "http://localhost:9080",
		StorageBackend:      StorageFS,
		StorageDir:          "./data/media",
		StorageBucket:       "photos",
		S3Region:            "us-east-1",
		AnalysisEndpoint:    "http://localhost:8000/pixtral_get_age",
		AnalysisTimeoutMS:   290_000,
		AnalysisMode:        AnalysisRemote,
		UploadWaitMS:        60_000,
		SessionBackend:      SessionMemory,
		SessionTTLS:         3600,
		RedisAddr:           "localhost:6379",
		LeaderboardBackend:  LeaderboardMemory,
		MaxLeaderboardLimit: 100,
		UploadQueueSize:     1024,
		UploadWorkers:       runtime.NumCPU() * 2,
		MaxUploadBytes:      50 << 20,
		InflightGuardSize:   10_000,
		RateLimitRPS:        20,
		RateLimitBurst:      40,
		OTLPEndpoint:        "localhost:4317",
		CaptureMirror:       true,
		CaptureJPEGQuality:  80,
		ShowHeartRate:       true,
		ShowSubScores:       true,
	}
}

// AnalysisTimeout returns the analysis ceiling as a duration.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutMS) * time.Millisecond
}

// UploadWait returns the upload join bound as a duration.
func (c *Config) UploadWait() time.Duration {
	return time.Duration(c.UploadWaitMS) * time.Millisecond
}

// SessionTTL returns the session expiry as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLS) * time.Second
}
