// Package telemetry exposes prometheus metrics for bulk jobs.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kvedit/internal/pipeline"
)

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}

var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvedit_records_total",
		Help: "Records by column family and per-record decision.",
	}, []string{"column_family", "decision"})

	writtenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvedit_records_written_total",
		Help: "Records durably written, by column family.",
	}, []string{"column_family"})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvedit_jobs_total",
		Help: "Finished jobs by column family and outcome.",
	}, []string{"column_family", "outcome"})
)

// ObserveReport folds one finished job report into the counters.
func ObserveReport(cf string, rep *pipeline.Report) {
	if rep == nil {
		return
	}
	recordsTotal.WithLabelValues(cf, "skipped").Add(float64(rep.Skipped))
	recordsTotal.WithLabelValues(cf, "transformed").Add(float64(rep.Transformed))
	recordsTotal.WithLabelValues(cf, "unchanged").Add(float64(rep.Unchanged))
	recordsTotal.WithLabelValues(cf, "failed").Add(float64(rep.Failed))
	writtenTotal.WithLabelValues(cf).Add(float64(rep.Written))

	outcome := "complete"
	if rep.Incomplete {
		outcome = "incomplete"
	}
	jobsTotal.WithLabelValues(cf, outcome).Inc()
}
