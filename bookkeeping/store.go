// Package bookkeeping persists the record of applied migration versions
// inside the target database.
package bookkeeping

import (
	"context"
	"fmt"
	"regexp"

	"github.com/blang/semver/v4"

	"github.com/getpup/pupmigrate"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Dialect selects placeholder and DDL differences between supported drivers.
type Dialect string

const (
	// DialectPostgres uses $n placeholders.
	DialectPostgres Dialect = "postgres"

	// DialectMySQL uses ? placeholders.
	DialectMySQL Dialect = "mysql"

	// DialectSQLite uses ? placeholders.
	DialectSQLite Dialect = "sqlite"
)

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// TableConfig configures the bookkeeping table name.
type TableConfig struct {
	// Table is the name of the table storing applied versions.
	Table string
}

// DefaultTableConfig returns the default bookkeeping table name.
func DefaultTableConfig() TableConfig {
	return TableConfig{Table: "schema_version"}
}

// Store reads and writes applied-version records through a borrowed session.
// It never owns the transaction: durability is decided by the enclosing run.
type Store struct {
	dialect Dialect
	table   string
}

// New creates a Store with the default table name.
func New(dialect Dialect) *Store {
	return &Store{dialect: dialect, table: DefaultTableConfig().Table}
}

// NewWithConfig creates a Store with a custom table name. The name is
// interpolated into SQL text, so it must be a plain identifier: start with a
// letter, then letters, numbers, and underscores only.
func NewWithConfig(dialect Dialect, config TableConfig) (*Store, error) {
	if !identifierRegex.MatchString(config.Table) {
		return nil, fmt.Errorf("table name must start with a letter and contain only letters, numbers, and underscores (got: %q)", config.Table)
	}
	return &Store{dialect: dialect, table: config.Table}, nil
}

// CreateTableSQL returns the DDL that EnsureSchema executes. CURRENT_TIMESTAMP
// is the one default expression all three dialects accept.
func (s *Store) CreateTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version TEXT NOT NULL PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, s.table)
}

// EnsureSchema idempotently creates the version table if absent.
func (s *Store) EnsureSchema(ctx context.Context, exec pupmigrate.Execer) error {
	if _, err := exec.Exec(ctx, s.CreateTableSQL()); err != nil {
		return fmt.Errorf("ensure %s: %w: %w", s.table, pupmigrate.ErrStorage, err)
	}
	return nil
}

// CurrentVersion returns the maximum recorded version by semantic-version
// comparison, or nil if no versions are recorded. String ordering is not
// semver ordering, so the maximum is computed client-side.
func (s *Store) CurrentVersion(ctx context.Context, exec pupmigrate.Execer) (*semver.Version, error) {
	query := fmt.Sprintf("SELECT version FROM %s", s.table)

	rows, err := exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read current version: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var current *semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}

		version, err := semver.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("recorded version %q is not a semantic version: %w", raw, err)
		}

		if current == nil || version.GT(*current) {
			current = &version
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}

	return current, nil
}

// RecordApplied inserts one applied-version record. Returns
// pupmigrate.ErrConflict if the version is already recorded.
func (s *Store) RecordApplied(ctx context.Context, exec pupmigrate.Execer, version semver.Version) error {
	probe := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE version = %s", s.table, s.placeholder(1))

	rows, err := exec.Query(ctx, probe, version.String())
	if err != nil {
		return fmt.Errorf("probe version %s: %w", version, err)
	}

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan version probe: %w", err)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close version probe: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("record version %s: %w", version, pupmigrate.ErrConflict)
	}

	insert := fmt.Sprintf("INSERT INTO %s (version) VALUES (%s)", s.table, s.placeholder(1))
	if _, err := exec.Exec(ctx, insert, version.String()); err != nil {
		return fmt.Errorf("record version %s: %w", version, err)
	}

	return nil
}

// Clear deletes all recorded versions. Used by reset.
func (s *Store) Clear(ctx context.Context, exec pupmigrate.Execer) error {
	query := fmt.Sprintf("DELETE FROM %s", s.table)
	if _, err := exec.Exec(ctx, query); err != nil {
		return fmt.Errorf("clear %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
