package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1_024)
				convey.So(cfg.Detector.Kind, convey.ShouldEqual, "embedserver")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ROLLCALL_ADDR", ":8080")
			_ = os.Setenv("ROLLCALL_MATCH_THRESHOLD", "0.45")
			_ = os.Setenv("ROLLCALL_LEDGER__POLICY", "upsert")
			_ = os.Setenv("ROLLCALL_GALLERY__REFRESH_TIMEOUT", "90s")
			_ = os.Setenv("ROLLCALL_REQUIRE_ENROLLMENT", "false")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 0.45)
				convey.So(cfg.Ledger.Policy, convey.ShouldEqual, "upsert")
				convey.So(cfg.Ledger.Kind, convey.ShouldEqual, "memory")
				convey.So(cfg.Gallery.RefreshTimeout, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.RequireEnrollment, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			yamlContent := `
addr: ":9090"
worker_count: 3
timezone: Europe/Berlin
ledger:
  kind: sql
  driver: sqlite
  dsn: file:ledger.db
roster:
  kind: file
  path: testdata/roster.yaml
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ROLLCALL_CONFIG", tmpFile)
			_ = os.Setenv("ROLLCALL_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.Ledger.Kind, convey.ShouldEqual, "sql")
				convey.So(cfg.Ledger.Policy, convey.ShouldEqual, "audit")
				convey.So(cfg.Location().String(), convey.ShouldEqual, "Europe/Berlin")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("ROLLCALL_CONFIG", "/nonexistent/rollcall.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should fail with ErrLoadConfig", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the merged config is invalid", func() {
			_ = os.Setenv("ROLLCALL_DETECTOR__KIND", "dlib")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should fail with ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, config.EnvPrefix) {
			_ = os.Unsetenv(strings.SplitN(kv, "=", 2)[0])
		}
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "rollcall-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}
