// Package metrics exposes Prometheus metrics for migration runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunsTotal tracks orchestration runs by outcome.
var RunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pupmigrate_runs_total",
		Help: "Total orchestration runs by outcome",
	},
	[]string{"dialect", "outcome"},
)

// MigrationsAppliedTotal tracks applied migration units.
var MigrationsAppliedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pupmigrate_migrations_applied_total",
		Help: "Total migration units applied",
	},
	[]string{"dialect"},
)

// LoadScriptsTotal tracks executed extra load scripts.
var LoadScriptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pupmigrate_load_scripts_total",
		Help: "Total extra load scripts executed",
	},
	[]string{"dialect"},
)

// PendingMigrations tracks the pending-set size computed by the last run.
var PendingMigrations = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "pupmigrate_pending_migrations",
		Help: "Pending migrations at the start of the last run",
	},
	[]string{"dialect"},
)

// RunDuration records orchestration run durations.
var RunDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pupmigrate_run_duration_seconds",
		Help:    "Orchestration run duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"dialect"},
)

// Handler returns an HTTP handler serving the default Prometheus registry,
// for embedding the engine in a long-running service.
func Handler() http.Handler {
	return promhttp.Handler()
}
