// Package metrics provides Prometheus metrics for the persistence layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NonUniqueResultsTotal counts unique lookups that matched more than one row
	NonUniqueResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "query",
			Name:      "non_unique_results_total",
			Help:      "Total number of unique lookups that matched more than one row",
		},
		[]string{"table"},
	)

	// QueryErrorsTotal counts store failures surfaced by the query builder
	QueryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "Total number of failed queries by table",
		},
		[]string{"table"},
	)

	// HistoricalTransitionsTotal counts historical chain transitions by operation and outcome
	HistoricalTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "historical",
			Name:      "transitions_total",
			Help:      "Total number of historical chain transitions by operation and status",
		},
		[]string{"table", "operation", "status"},
	)

	// RoleCacheLookupsTotal counts role cache lookups by result
	RoleCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "roles",
			Name:      "cache_lookups_total",
			Help:      "Total number of role cache lookups by result",
		},
		[]string{"result"},
	)
)
