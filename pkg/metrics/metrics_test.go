package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then defaults apply", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("school"),
				WithSubsystem("class_a"),
				WithMetricPrefix("test"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are honoured", func() {
				So(manager.Enabled(), ShouldBeFalse)
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)

				manager.submissions.WithLabelValues("created").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "school_class_a_test_submissions_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When ignoring empty option values", func() {
			manager := NewManager(
				WithNamespace(""),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "rollcall")
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		So(Default(), ShouldNotBeNil)

		Convey("When recording submissions", func() {
			before := testutil.ToFloat64(Default().submissions.WithLabelValues("updated"))
			RecordSubmission("updated")

			Convey("Then the counter advances", func() {
				So(testutil.ToFloat64(Default().submissions.WithLabelValues("updated")), ShouldEqual, before+1)
			})
		})

		Convey("When recording a failing scheduled job", func() {
			runs := testutil.ToFloat64(Default().scheduledJobRuns.WithLabelValues("digest"))
			fails := testutil.ToFloat64(Default().scheduledJobError.WithLabelValues("digest"))
			RecordScheduledJob("digest", errors.New("store down"))
			RecordScheduledJob("digest", nil)

			Convey("Then runs and failures are counted separately", func() {
				So(testutil.ToFloat64(Default().scheduledJobRuns.WithLabelValues("digest")), ShouldEqual, runs+2)
				So(testutil.ToFloat64(Default().scheduledJobError.WithLabelValues("digest")), ShouldEqual, fails+1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateActiveSessions(3)
			UpdateRosterSize(40)
			UpdateDailyAttendance(87)

			Convey("Then the last value wins", func() {
				So(testutil.ToFloat64(Default().activeSessions), ShouldEqual, 3)
				So(testutil.ToFloat64(Default().rosterSize), ShouldEqual, 40)
				So(testutil.ToFloat64(Default().dailyAttendance), ShouldEqual, 87)
			})
		})

		Convey("When recording the remaining series", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordSubmissionError("incomplete")
					RecordCreateConflict()
					RecordStaleResult()
					RecordMarkRejected("locked")
					RecordSessionExpired()
					RecordReport("daily")
					ObserveStoreOperation("memory", "create", time.Now(), nil)
					ObserveStoreOperation("memory", "update", time.Now(), errors.New("boom"))
					RecordHTTPRequest("/sessions", "POST", "201")
					RecordHTTPRequestDuration("/sessions", "POST", "201", 1.5)
					RecordErrorByEndpoint("/sessions", "POST", "client_error")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.5)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordSubmission("created")
		families, err := GetRegistry().Gather()

		Convey("Then it exposes rollcall metrics only", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(f.GetName(), ShouldStartWith, "rollcall_")
			}
		})
	})
}
