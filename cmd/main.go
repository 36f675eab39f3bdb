package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/facepace/internal/adapters/analyzer"
	"github.com/okian/facepace/internal/adapters/http/api"
	"github.com/okian/facepace/internal/adapters/http/swagger"
	"github.com/okian/facepace/internal/adapters/repository"
	"github.com/okian/facepace/internal/adapters/sessionstore"
	"github.com/okian/facepace/internal/adapters/storage"
	app "github.com/okian/facepace/internal/app"
	"github.com/okian/facepace/internal/config"
	"github.com/okian/facepace/internal/domain/results"
	"github.com/okian/facepace/pkg/logger"
	"github.com/okian/facepace/pkg/metrics"
	"github.com/okian/facepace/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout               = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	writeTimeoutMargin        = 10 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	serviceName               = "facepace"
)

var version = "dev"

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "facepace exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l logger.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       true,
		SampleRate:     1,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			l.Warn(ctx, "tracer shutdown failed", logger.Error(err))
		}
	}()

	store, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if c, ok := store.(storage.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	svc, err := buildService(ctx, cfg, store, l)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			l.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc, store, limiter, l),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("storage", cfg.StorageBackend),
			logger.String("analysis_mode", cfg.AnalysisMode),
			logger.String("sessions", cfg.SessionBackend),
			logger.String("leaderboard", cfg.LeaderboardBackend),
			logger.Duration("write_timeout", srv.WriteTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	l.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	l.Info(ctx, "server stopped")
	return nil
}

// buildService constructs the collaborators selected by cfg and injects them.
func buildService(ctx context.Context, cfg *config.Config, store storage.Store, l logger.Logger) (*app.Service, error) {
	an, err := analyzer.NewFromConfig(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("init analyzer: %w", err)
	}
	sessions, err := sessionstore.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	board, err := repository.NewFromConfig(ctx, cfg, repository.WithLogger(l))
	if err != nil {
		_ = sessions.Close()
		return nil, fmt.Errorf("init leaderboard: %w", err)
	}

	return app.New(
		app.WithLogger(l),
		app.WithUploader(storage.NewUploader(store,
			storage.WithBucket(cfg.StorageBucket),
			storage.WithLogger(l),
		)),
		app.WithAnalyzer(an),
		app.WithSessionStore(sessions),
		app.WithLeaderboard(board),
		app.WithPresenter(results.NewPresenter(results.DisplayProfile{
			ShowHeartRate: cfg.ShowHeartRate,
			ShowSubScores: cfg.ShowSubScores,
		})),
		app.WithWorkerCount(cfg.UploadWorkers),
		app.WithQueueSize(cfg.UploadQueueSize),
		app.WithInflightGuardSize(cfg.InflightGuardSize),
		app.WithMaxUploadBytes(cfg.MaxUploadBytes),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithIdleTimeout(cfg.SessionTTL()),
		app.WithUploadWait(cfg.UploadWait()),
	), nil
}

// newRouter registers the docs and business routes.
func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service, store storage.Store, limiter *api.RateLimiter, l logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	swagger.Register(ctx, r)

	opts := []api.Option{
		api.WithLogger(l),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithRateLimiter(limiter),
	}
	if fs, ok := store.(*storage.FileStore); ok {
		opts = append(opts, api.WithMedia(fs.Handler()))
	}
	api.NewServer(svc, opts...).Register(ctx, r)
	return r
}

// writeTimeout covers the upload join and a full analysis round trip.
func writeTimeout(cfg *config.Config) time.Duration {
	return cfg.UploadWait() + cfg.AnalysisTimeout() + writeTimeoutMargin
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes the leaderboard and queue gauges; GetStats
// updates them as it reads.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	_ = svc.GetStats(ctx)
}
