package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/facepace/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageBackend, convey.ShouldEqual, config.StorageFS)
			convey.So(cfg.StorageBucket, convey.ShouldEqual, "photos")
			convey.So(cfg.AnalysisMode, convey.ShouldEqual, config.AnalysisRemote)
			convey.So(cfg.AnalysisTimeout(), convey.ShouldEqual, 290*time.Second)
			convey.So(cfg.UploadWait(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.CaptureJPEGQuality, convey.ShouldEqual, 80)
			convey.So(cfg.SessionTTL(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero timeout", func(c *config.Config) { c.AnalysisTimeoutMS = 0 }},
			{"no workers", func(c *config.Config) { c.UploadWorkers = 0 }},
			{"zero upload wait", func(c *config.Config) { c.UploadWaitMS = 0 }},
			{"zero inflight guard", func(c *config.Config) { c.InflightGuardSize = 0 }},
			{"unknown analysis mode", func(c *config.Config) { c.AnalysisMode = "fallback" }},
			{"remote without endpoint", func(c *config.Config) { c.AnalysisEndpoint = "" }},
			{"unknown storage", func(c *config.Config) { c.StorageBackend = "ftp" }},
			{"empty bucket", func(c *config.Config) { c.StorageBucket = "" }},
			{"sqlite without dsn", func(c *config.Config) { c.LeaderboardBackend = config.LeaderboardSQLite }},
			{"unknown session backend", func(c *config.Config) { c.SessionBackend = "memcached" }},
			{"jpeg quality over bounds", func(c *config.Config) { c.CaptureJPEGQuality = 101 }},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it should be rejected as invalid", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When simulated mode has no endpoint", func() {
			cfg.AnalysisMode = config.AnalysisSimulated
			cfg.AnalysisEndpoint = ""

			convey.Convey("Then it should still validate", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
