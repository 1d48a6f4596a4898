package engine

import (
	"database/sql"

	"github.com/getpup/pupmigrate"
	"github.com/getpup/pupmigrate/bookkeeping"
	"github.com/getpup/pupmigrate/session"
)

// Option configures an Engine.
type Option func(*config)

// config holds the internal configuration for creating an Engine.
type config struct {
	target         session.Target
	db             *sql.DB
	dialect        bookkeeping.Dialect
	directory      string
	reset          bool
	migrate        bool
	dryRun         bool
	loadPaths      []string
	reporter       pupmigrate.Reporter
	tableConfig    bookkeeping.TableConfig
	procedures     pupmigrate.ProcedureRegistry
	scriptExt      string
	procedureExt   string
	bookkeeper     pupmigrate.Bookkeeper
	metricsEnabled *bool
}

// WithTarget sets the database to connect to by driver name and DSN. The
// engine opens and closes its own pool per run.
func WithTarget(driver, dsn string) Option {
	return func(c *config) { c.target = session.Target{Driver: driver, DSN: dsn} }
}

// WithDatabase uses an existing pool instead of opening one. The caller
// keeps ownership of db.
func WithDatabase(db *sql.DB, dialect bookkeeping.Dialect) Option {
	return func(c *config) {
		c.db = db
		c.dialect = dialect
	}
}

// WithDirectory sets the migration directory.
func WithDirectory(dir string) Option {
	return func(c *config) { c.directory = dir }
}

// WithReset clears all bookkeeping records before detection, so every
// catalog migration becomes pending again.
func WithReset(reset bool) Option {
	return func(c *config) { c.reset = reset }
}

// WithMigrate controls whether pending migrations are applied.
func WithMigrate(migrate bool) Option {
	return func(c *config) { c.migrate = migrate }
}

// WithDryRun rolls the transaction back instead of committing, regardless of
// migration success, so no change is persisted.
func WithDryRun(dryRun bool) Option {
	return func(c *config) { c.dryRun = dryRun }
}

// WithLoad appends extra scripts executed sequentially after migrations.
// Load scripts are not versioned and not recorded.
func WithLoad(paths ...string) Option {
	return func(c *config) { c.loadPaths = append(c.loadPaths, paths...) }
}

// WithReporter sets the progress reporter.
func WithReporter(r pupmigrate.Reporter) Option {
	return func(c *config) { c.reporter = r }
}

// WithTableName overrides the bookkeeping table name.
func WithTableName(table string) Option {
	return func(c *config) { c.tableConfig = bookkeeping.TableConfig{Table: table} }
}

// WithProcedures sets the registry resolving procedure steps.
func WithProcedures(registry pupmigrate.ProcedureRegistry) Option {
	return func(c *config) { c.procedures = registry }
}

// WithExtensions overrides the recognized script and procedure extensions.
func WithExtensions(scriptExt, procedureExt string) Option {
	return func(c *config) {
		c.scriptExt = scriptExt
		c.procedureExt = procedureExt
	}
}

// WithBookkeeper overrides the bookkeeping implementation.
func WithBookkeeper(b pupmigrate.Bookkeeper) Option {
	return func(c *config) { c.bookkeeper = b }
}

// WithMetricsEnabled enables or disables Prometheus metrics (default: true).
func WithMetricsEnabled(enabled bool) Option {
	return func(c *config) { c.metricsEnabled = &enabled }
}
