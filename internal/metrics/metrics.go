// Package metrics exposes prometheus instruments for article operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "article_operations_total",
		Help: "Article manager operations by name and outcome.",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "article_operation_duration_seconds",
		Help:    "Latency of article manager operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	indexTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "article_index_tasks_total",
		Help: "Search index tasks by kind and outcome.",
	}, []string{"kind", "outcome"})
)

// Observe records one operation; use as `defer metrics.Observe("create", time.Now(), &err)`.
func Observe(operation string, start time.Time, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func IndexTask(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	indexTasksTotal.WithLabelValues(kind, outcome).Inc()
}
