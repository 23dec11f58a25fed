package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/adapters/http/client"
	"github.com/okian/rollcall/internal/adapters/repository"
	app "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func clearEnv() {
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "ROLLCALL_") {
			_ = os.Unsetenv(k)
		}
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		clearEnv()
		defer clearEnv()

		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("ROLLCALL_ADDR", ":8088")
			_ = os.Setenv("ROLLCALL_SESSION_TTL", "5m")

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8088")
				convey.So(cfg.SessionTTL, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendMemory)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then a manager on its own registry should be creatable", func() {
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
				convey.So(manager, convey.ShouldNotBeNil)
				convey.So(manager.Enabled(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given a configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("When the backend is memory", func() {
			st, closeStore, err := openStore(ctx, cfg)

			convey.Convey("Then an in-memory store is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := st.(*repository.MemoryStore)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(closeStore(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the backend is remote", func() {
			cfg.StoreBackend = config.BackendRemote
			cfg.RemoteURL = "http://attendance.example:8080"

			st, closeStore, err := openStore(ctx, cfg)

			convey.Convey("Then the HTTP client is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := st.(*client.Client)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(closeStore(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the remote backend has no URL", func() {
			cfg.StoreBackend = config.BackendRemote
			cfg.RemoteURL = ""

			_, _, err := openStore(ctx, cfg)

			convey.Convey("Then the client refuses to build", func() {
				convey.So(errors.Is(err, client.ErrMissingBaseURL), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the backend is unknown", func() {
			cfg.StoreBackend = "sqlite"

			_, _, err := openStore(ctx, cfg)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a mux built from the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		mem := repository.NewMemoryStore(ctx)
		defer func() { _ = mem.Close() }()

		svc := app.New(app.WithStore(mem), app.WithBackendName(config.BackendMemory))
		mux := newMux(ctx, cfg, svc, logger.Discard())

		get := func(path string) int {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			return rec.Code
		}

		convey.Convey("Then API, docs and metrics routes are served", func() {
			convey.So(get("/healthz"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/stats"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/students"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/metrics"), convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And the store API can be switched off", func() {
			cfg.StoreAPIEnabled = false
			mux = newMux(ctx, cfg, svc, logger.Discard())
			convey.So(get("/students"), convey.ShouldEqual, http.StatusNotFound)
			convey.So(get("/healthz"), convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it returns once the context is done", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx, 10*time.Millisecond)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		clearEnv()
		defer clearEnv()

		convey.Convey("When the configuration is invalid", func() {
			_ = os.Setenv("ROLLCALL_ADDR", "")

			convey.Convey("Then run fails before serving", func() {
				err := run(context.Background())
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the digest schedule is malformed", func() {
			_ = os.Setenv("ROLLCALL_ADDR", "127.0.0.1:0")
			_ = os.Setenv("ROLLCALL_DIGEST_SCHEDULE", "not a schedule")

			convey.Convey("Then it is rejected while loading", func() {
				err := run(context.Background())
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "digest_schedule")
			})
		})
	})
}
