package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/facepace/internal/adapters/http/api"
	"github.com/okian/facepace/internal/adapters/storage"
	"github.com/okian/facepace/internal/config"
	"github.com/okian/facepace/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.AnalysisMode = config.AnalysisSimulated
	cfg.StorageDir = t.TempDir()
	cfg.UploadWorkers = 2
	cfg.UploadQueueSize = 8
	return cfg
}

func TestMainConfiguration(t *testing.T) {
	convey.Convey("Given FACEPACE_ environment overrides", t, func() {
		t.Setenv("FACEPACE_ADDR", ":8088")
		t.Setenv("FACEPACE_UPLOAD_QUEUE_SIZE", "500")
		t.Setenv("FACEPACE_UPLOAD_WORKERS", "3")
		t.Setenv("FACEPACE_ANALYSIS_MODE", "simulated")

		convey.Convey("Then configuration loads them", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8088")
			convey.So(cfg.UploadQueueSize, convey.ShouldEqual, 500)
			convey.So(cfg.UploadWorkers, convey.ShouldEqual, 3)
			convey.So(cfg.AnalysisMode, convey.ShouldEqual, config.AnalysisSimulated)
		})

		convey.Convey("Then the write timeout covers the upload join and a full analysis", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(writeTimeout(cfg), convey.ShouldBeGreaterThan, cfg.UploadWait()+cfg.AnalysisTimeout())
		})
	})

	convey.Convey("Given an unknown analysis mode", t, func() {
		t.Setenv("FACEPACE_ANALYSIS_MODE", "psychic")

		convey.Convey("Then configuration loading fails", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given a simulated configuration on local storage", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		l := logger.NewNop()

		store, err := storage.NewFromConfig(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)

		svc, err := buildService(ctx, cfg, store, l)
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		h := newRouter(ctx, cfg, svc, store, api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), l)

		convey.Convey("Then the health endpoint answers", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the API document is served", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then a session can be created", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusCreated)
		})

		convey.Convey("Then the service metrics update without panicking", func() {
			convey.So(func() { updateServiceMetrics(ctx, svc) }, convey.ShouldNotPanic)
		})
	})

	convey.Convey("Given an unknown analysis mode", t, func() {
		cfg := testConfig(t)
		cfg.AnalysisMode = "psychic"

		convey.Convey("Then the service cannot be built", func() {
			store, err := storage.NewFromConfig(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			_, err = buildService(context.Background(), cfg, store, logger.NewNop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMainMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metric updaters", t, func() {
		convey.Convey("Then system metrics update without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the system updater returns when its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("system metrics updater did not stop")
			}
		})
	})
}
