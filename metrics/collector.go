package metrics

// Collector wraps metrics and provides helper methods with the dialect label
// pre-filled.
type Collector struct {
	dialect string
}

// NewCollector creates a new Collector for the given dialect.
func NewCollector(dialect string) *Collector {
	return &Collector{dialect: dialect}
}

// IncRun increments the runs counter for an outcome ("succeeded" or "failed").
func (c *Collector) IncRun(outcome string) {
	RunsTotal.WithLabelValues(c.dialect, outcome).Inc()
}

// IncMigrationsApplied increments the applied migrations counter.
func (c *Collector) IncMigrationsApplied() {
	MigrationsAppliedTotal.WithLabelValues(c.dialect).Inc()
}

// IncLoadScripts increments the load scripts counter.
func (c *Collector) IncLoadScripts() {
	LoadScriptsTotal.WithLabelValues(c.dialect).Inc()
}

// SetPendingMigrations sets the pending migrations gauge.
func (c *Collector) SetPendingMigrations(count int) {
	PendingMigrations.WithLabelValues(c.dialect).Set(float64(count))
}

// ObserveRunDuration records a run duration observation.
func (c *Collector) ObserveRunDuration(seconds float64) {
	RunDuration.WithLabelValues(c.dialect).Observe(seconds)
}
