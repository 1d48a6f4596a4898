// Package engine drives a full migration run: connect, ensure bookkeeping,
// detect the current version, apply pending migrations, load extra scripts,
// commit or roll back, and verify the resulting version.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/blang/semver/v4"
	"github.com/google/uuid"

	"github.com/getpup/pupmigrate"
	"github.com/getpup/pupmigrate/bookkeeping"
	"github.com/getpup/pupmigrate/catalog"
	"github.com/getpup/pupmigrate/metrics"
	"github.com/getpup/pupmigrate/runner"
	"github.com/getpup/pupmigrate/session"
)

// State names a phase of the orchestration state machine.
type State string

const (
	StateConnecting   State = "connecting"
	StateInitializing State = "initializing"
	StateResetting    State = "resetting"
	StateDetecting    State = "detecting"
	StateMigrating    State = "migrating"
	StateLoading      State = "loading"
	StateFinalizing   State = "finalizing"
	StateVerifying    State = "verifying"
)

// Engine runs migrations against one database target. An Engine may be
// reused for multiple runs, but each run exclusively owns its session: no
// two statements of a run ever execute concurrently.
type Engine struct {
	cfg        config
	catalog    *catalog.Catalog
	bookkeeper pupmigrate.Bookkeeper
	runner     *runner.Runner
	collector  *metrics.Collector
}

// New creates an Engine with the given options.
//
// Required options:
//   - WithDirectory: migration directory
//   - WithTarget or WithDatabase: database to migrate
//
// Optional configuration (with defaults):
//   - WithMigrate: apply pending migrations (default: true)
//   - WithReset: clear bookkeeping before detecting (default: false)
//   - WithDryRun: roll back instead of committing (default: false)
//   - WithLoad: extra scripts executed after migrations (default: none)
//   - WithReporter: progress reporter (default: nil, no reporting)
//   - WithTableName: bookkeeping table name (default: schema_version)
//   - WithProcedures: registry for procedure steps (default: empty)
//   - WithExtensions: script and procedure extensions (default: .sql, .proc)
//   - WithBookkeeper: custom bookkeeping implementation
//   - WithMetricsEnabled: Prometheus metrics (default: true)
func New(opts ...Option) (*Engine, error) {
	cfg := config{
		migrate:      true,
		tableConfig:  bookkeeping.DefaultTableConfig(),
		scriptExt:    catalog.DefaultScriptExt,
		procedureExt: catalog.DefaultProcedureExt,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.directory == "" {
		return nil, fmt.Errorf("migration directory is required: use WithDirectory option")
	}
	if cfg.db == nil && cfg.target.Driver == "" {
		return nil, fmt.Errorf("database target is required: use WithTarget or WithDatabase option")
	}

	if cfg.dialect == "" {
		dialect, err := bookkeeping.DialectForDriver(cfg.target.Driver)
		if err != nil {
			return nil, err
		}
		cfg.dialect = dialect
	}

	e := &Engine{
		cfg: cfg,
		catalog: catalog.New(
			catalog.WithScriptExt(cfg.scriptExt),
			catalog.WithProcedureExt(cfg.procedureExt),
		),
		bookkeeper: cfg.bookkeeper,
	}
	if e.bookkeeper == nil {
		store, err := bookkeeping.NewWithConfig(cfg.dialect, cfg.tableConfig)
		if err != nil {
			return nil, err
		}
		e.bookkeeper = store
	}

	r, err := runner.New(runner.Config{
		Bookkeeper: e.bookkeeper,
		Procedures: cfg.procedures,
		Reporter:   cfg.reporter,
	})
	if err != nil {
		return nil, err
	}
	e.runner = r

	if cfg.metricsEnabled == nil || *cfg.metricsEnabled {
		e.collector = metrics.NewCollector(string(cfg.dialect))
	}

	return e, nil
}

// Run executes one orchestration run and returns its outcome exactly once.
// Every database operation within the run is strictly sequential. The
// session is released on every path; a run that fails before finalizing is
// rolled back.
func (e *Engine) Run(ctx context.Context) (err error) {
	runID := uuid.New().String()
	start := time.Now()

	defer func() {
		if e.collector == nil {
			return
		}
		e.collector.ObserveRunDuration(time.Since(start).Seconds())
		if err != nil {
			e.collector.IncRun("failed")
		} else {
			e.collector.IncRun("succeeded")
		}
	}()

	info := func(msg string, kv ...any) {
		if e.cfg.reporter != nil {
			e.cfg.reporter.Info(ctx, msg, append([]any{"run_id", runID}, kv...)...)
		}
	}
	warn := func(msg string, kv ...any) {
		if e.cfg.reporter != nil {
			e.cfg.reporter.Warn(ctx, msg, append([]any{"run_id", runID}, kv...)...)
		}
	}
	fail := func(state State, err error) error {
		if e.cfg.reporter != nil {
			e.cfg.reporter.Error(ctx, "run failed", "run_id", runID, "state", string(state), "error", err)
		}
		return err
	}

	units, err := e.catalog.List(e.cfg.directory)
	if err != nil {
		if e.cfg.reporter != nil {
			e.cfg.reporter.Error(ctx, "run failed", "run_id", runID, "error", err)
		}
		return err
	}

	// Connecting
	info("connecting", "state", string(StateConnecting), "dialect", string(e.cfg.dialect))
	db := e.cfg.db
	if db == nil {
		db, err = sql.Open(e.cfg.target.Driver, e.cfg.target.DSN)
		if err != nil {
			return fail(StateConnecting, fmt.Errorf("open %s: %w: %w", e.cfg.target.Driver, pupmigrate.ErrConnection, err))
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
	}

	sess, err := session.Attach(ctx, db)
	if err != nil {
		return fail(StateConnecting, err)
	}
	defer func() {
		if !sess.Terminated() {
			if rbErr := sess.Rollback(); rbErr != nil && err == nil {
				err = rbErr
			}
		}
		if relErr := sess.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()

	// Initializing
	info("ensuring bookkeeping schema", "state", string(StateInitializing))
	if err := e.bookkeeper.EnsureSchema(ctx, sess); err != nil {
		return fail(StateInitializing, err)
	}

	// Resetting
	if e.cfg.reset {
		info("clearing bookkeeping", "state", string(StateResetting))
		if err := e.bookkeeper.Clear(ctx, sess); err != nil {
			return fail(StateResetting, err)
		}
	}

	// Detecting. A failed probe is the one absorbed query failure: the
	// bookkeeping table may be missing despite Initializing (prior partial
	// state), so roll back, reopen, and proceed as if nothing is recorded.
	current, detectErr := e.bookkeeper.CurrentVersion(ctx, sess)
	if detectErr != nil {
		warn("version detection failed; assuming no recorded version",
			"state", string(StateDetecting), "error", detectErr)
		if err := sess.Restart(ctx); err != nil {
			return fail(StateDetecting, err)
		}
		// The rollback also discarded any uncommitted work from Initializing
		// and Resetting; redo both so bookkeeping inserts have a table and a
		// requested reset still holds.
		if err := e.bookkeeper.EnsureSchema(ctx, sess); err != nil {
			return fail(StateDetecting, err)
		}
		if e.cfg.reset {
			if err := e.bookkeeper.Clear(ctx, sess); err != nil {
				return fail(StateDetecting, err)
			}
		}
		current = nil
	}
	info("detected version", "state", string(StateDetecting), "version", versionLabel(current))

	// Migrating
	if e.cfg.migrate {
		pending := pendingUnits(units, current)
		if e.collector != nil {
			e.collector.SetPendingMigrations(len(pending))
		}
		info("applying pending migrations", "state", string(StateMigrating), "pending", len(pending))

		for _, unit := range pending {
			if err := e.runner.Run(ctx, unit, sess); err != nil {
				return fail(StateMigrating, err)
			}
			if e.collector != nil {
				e.collector.IncMigrationsApplied()
			}
		}
	}

	// Loading
	for _, path := range e.cfg.loadPaths {
		info("loading script", "state", string(StateLoading), "path", path)
		script, err := os.ReadFile(path)
		if err != nil {
			return fail(StateLoading, fmt.Errorf("load script %s: %w", path, err))
		}
		if _, err := sess.Exec(ctx, string(script)); err != nil {
			return fail(StateLoading, fmt.Errorf("load script %s: %w", path, err))
		}
		if e.collector != nil {
			e.collector.IncLoadScripts()
		}
	}

	// Finalizing
	if e.cfg.dryRun {
		info("dry run, rolling back", "state", string(StateFinalizing))
		if err := sess.Rollback(); err != nil {
			return fail(StateFinalizing, err)
		}
	} else {
		info("committing", "state", string(StateFinalizing))
		if err := sess.Commit(); err != nil {
			return fail(StateFinalizing, err)
		}
	}

	// Verifying. Runs after the transaction is finalized: a verification
	// failure reports a state mismatch but never undoes committed work.
	if err := e.verify(ctx, db, units, info, warn); err != nil {
		return fail(StateVerifying, err)
	}

	info("run complete", "duration", time.Since(start).String())
	return nil
}

// verify re-detects the version actually reached and compares it against the
// maximum catalog version. No catalog target means nothing to compare.
func (e *Engine) verify(ctx context.Context, db *sql.DB, units []pupmigrate.MigrationUnit,
	info, warn func(string, ...any)) error {

	if len(units) == 0 {
		return nil
	}
	target := units[len(units)-1].Version

	sess, err := session.Attach(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		if !sess.Terminated() {
			_ = sess.Rollback()
		}
		_ = sess.Release()
	}()

	detected, err := e.bookkeeper.CurrentVersion(ctx, sess)
	if err != nil {
		// After a dry run against a fresh database the bookkeeping table may
		// not exist at all; that reads as no version reached.
		warn("verification probe failed; treating as no recorded version", "error", err)
		detected = nil
	}

	switch {
	case detected == nil || detected.LT(target):
		return fmt.Errorf("database at %s, catalog target %s: %w",
			versionLabel(detected), target, pupmigrate.ErrOutOfDate)

	case detected.EQ(target):
		info("database up to date", "state", string(StateVerifying), "version", target.String())
		return nil

	case detected.Major == target.Major:
		warn("database ahead of catalog within the same major version",
			"state", string(StateVerifying), "detected", detected.String(), "target", target.String())
		return nil

	default:
		return fmt.Errorf("database at %s, catalog target %s: %w",
			detected, target, pupmigrate.ErrIncompatibleVersion)
	}
}

// pendingUnits filters the catalog to units newer than current, preserving
// catalog order.
func pendingUnits(units []pupmigrate.MigrationUnit, current *semver.Version) []pupmigrate.MigrationUnit {
	if current == nil {
		return units
	}
	var pending []pupmigrate.MigrationUnit
	for _, unit := range units {
		if unit.Version.GT(*current) {
			pending = append(pending, unit)
		}
	}
	return pending
}

func versionLabel(v *semver.Version) string {
	if v == nil {
		return "none"
	}
	return v.String()
}
