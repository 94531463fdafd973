package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSyncMetrics(t *testing.T) {
	Convey("Given sync metrics on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		m, err := New(WithRegistry(registry), WithNamespace("test"))
		So(err, ShouldBeNil)
		So(m, ShouldNotBeNil)

		Convey("When a run succeeds", func() {
			now := time.Unix(1718000000, 0)
			m.RunFinished("testowo", StatusOK, 3, 2*time.Second, now)

			Convey("Then run, inserted and last-success are recorded", func() {
				So(testutil.ToFloat64(m.runs.WithLabelValues("testowo", StatusOK)), ShouldEqual, 1)
				So(testutil.ToFloat64(m.inserted.WithLabelValues("testowo")), ShouldEqual, 3)
				So(testutil.ToFloat64(m.lastSuccess.WithLabelValues("testowo")), ShouldEqual, 1718000000)
			})
		})

		Convey("When a run fails", func() {
			m.RunFinished("awaria", StatusFailed, 0, time.Second, time.Now())

			Convey("Then no success timestamp is set", func() {
				So(testutil.ToFloat64(m.runs.WithLabelValues("awaria", StatusFailed)), ShouldEqual, 1)
				So(testutil.CollectAndCount(m.lastSuccess), ShouldEqual, 0)
			})
		})

		Convey("When sensors are processed and one fails", func() {
			m.SensorProcessed("awaria")
			m.SensorProcessed("awaria")
			m.FetchFailed("awaria")

			Convey("Then both counters move", func() {
				So(testutil.ToFloat64(m.sensorsVisited.WithLabelValues("awaria")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.fetchFailures.WithLabelValues("awaria")), ShouldEqual, 1)
			})
		})

		Convey("When registering twice on the same registry", func() {
			_, err := New(WithRegistry(registry), WithNamespace("test"))

			Convey("Then registration fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given custom duration buckets", t, func() {
		registry := prometheus.NewRegistry()
		m, err := New(WithRegistry(registry), WithBuckets([]float64{1, 10}))
		So(err, ShouldBeNil)

		m.RunFinished("kubełki", StatusOK, 0, 3*time.Second, time.Now())

		Convey("Then the histogram uses them", func() {
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			var bounds []float64
			for _, f := range families {
				if f.GetName() != "airq_sync_run_duration_seconds" {
					continue
				}
				for _, b := range f.GetMetric()[0].GetHistogram().GetBucket() {
					bounds = append(bounds, b.GetUpperBound())
				}
			}
			So(bounds, ShouldResemble, []float64{1, 10})
		})
	})

	Convey("A nil Sync ignores calls", t, func() {
		var m *Sync
		So(func() {
			m.RunFinished("x", StatusOK, 1, time.Second, time.Now())
			m.FetchFailed("x")
			m.SensorProcessed("x")
		}, ShouldNotPanic)
	})
}
