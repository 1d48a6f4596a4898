package pupmigrate

import (
	"context"
	"database/sql"

	"github.com/blang/semver/v4"
)

// StepKind identifies how a migration step is executed.
type StepKind string

const (
	// StepKindScript indicates the step is a raw SQL script whose content is
	// sent to the session as a single call. The underlying driver must accept
	// scripts containing multiple statements.
	StepKindScript StepKind = "script"

	// StepKindProcedure indicates the step is an externally registered Go
	// function invoked with the session. This is the extension point for
	// migration logic that cannot be expressed declaratively.
	StepKindProcedure StepKind = "procedure"
)

// Step is one executable sub-unit of a migration.
type Step struct {
	// Name is the step's file name without its extension. For procedure
	// steps it is also the registry lookup key.
	Name string

	// Path is the filesystem location of the step's source file.
	Path string

	// Kind determines how the step is executed.
	Kind StepKind
}

// MigrationUnit is one version-tagged change: either a single script file or
// an ordered group of sub-scripts in a directory.
type MigrationUnit struct {
	// Version is the canonical semantic version parsed from the unit's name.
	// Versions are unique within a catalog.
	Version semver.Version

	// Title is the free-text label following the version in the unit's name.
	Title string

	// IsGroup is true when the unit is a directory of sub-scripts.
	IsGroup bool

	// SourcePath is the filesystem location of the unit.
	SourcePath string

	// Steps are the unit's executable sub-units in execution order.
	// A non-group unit has exactly one step.
	Steps []Step
}

// Execer is the statement surface migration steps and bookkeeping operate on.
// *session.Session implements it; the transaction behind it is owned by the
// orchestration run, never by the callee.
type Execer interface {
	// Exec runs one statement or multi-statement script.
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// Query runs one query and returns its rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Procedure is a registered migration function. It receives the run's
// session and must issue all of its work through it.
type Procedure func(ctx context.Context, sess Execer) error

// ProcedureRegistry maps step names to registered procedures. How the
// registry is populated (static table, init-time registration) is a
// deployment concern.
type ProcedureRegistry map[string]Procedure

// Bookkeeper is the persisted record of applied migration versions.
// *bookkeeping.Store implements it against a SQL database.
type Bookkeeper interface {
	// EnsureSchema idempotently creates the version table if absent.
	EnsureSchema(ctx context.Context, exec Execer) error

	// CurrentVersion returns the maximum recorded version, or nil if no
	// versions have been recorded.
	CurrentVersion(ctx context.Context, exec Execer) (*semver.Version, error)

	// RecordApplied inserts one applied-version record.
	// Returns ErrConflict if the version is already recorded.
	RecordApplied(ctx context.Context, exec Execer, version semver.Version) error

	// Clear deletes all recorded versions.
	Clear(ctx context.Context, exec Execer) error
}
