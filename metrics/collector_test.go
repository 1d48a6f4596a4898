package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_IncrementsLabeledCounters(t *testing.T) {
	c := NewCollector("testdialect")

	runs := testutil.ToFloat64(RunsTotal.WithLabelValues("testdialect", "succeeded"))
	applied := testutil.ToFloat64(MigrationsAppliedTotal.WithLabelValues("testdialect"))

	c.IncRun("succeeded")
	c.IncMigrationsApplied()
	c.IncMigrationsApplied()
	c.IncLoadScripts()
	c.SetPendingMigrations(3)
	c.ObserveRunDuration(0.25)

	assert.Equal(t, runs+1, testutil.ToFloat64(RunsTotal.WithLabelValues("testdialect", "succeeded")))
	assert.Equal(t, applied+2, testutil.ToFloat64(MigrationsAppliedTotal.WithLabelValues("testdialect")))
	assert.Equal(t, float64(3), testutil.ToFloat64(PendingMigrations.WithLabelValues("testdialect")))
}
