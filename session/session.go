// Package session wraps one live database connection and its single open
// transaction for the duration of an orchestration run.
package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/getpup/pupmigrate"
)

// Target names a database to connect to.
type Target struct {
	// Driver is the database/sql driver name, e.g. "postgres", "mysql",
	// "sqlite3".
	Driver string

	// DSN is the driver-specific data source name.
	DSN string
}

// Session owns exactly one connection with one open transaction. It is
// created by Connect or Attach and terminated by exactly one of Commit or
// Rollback, then returned to the pool by Release. Issuing an operation after
// termination is a programming error and panics.
//
// A Session must never be shared across concurrent runs; all statements on
// it execute strictly sequentially.
type Session struct {
	db         *sql.DB
	ownsDB     bool
	conn       *sql.Conn
	tx         *sql.Tx
	terminated bool
	released   bool
}

// Connect opens a pool for target, takes one connection from it, and begins
// a transaction. The Session owns the pool and closes it on Release.
func Connect(ctx context.Context, target Target) (*Session, error) {
	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", target.Driver, pupmigrate.ErrConnection, err)
	}

	sess, err := Attach(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sess.ownsDB = true
	return sess, nil
}

// Attach takes one connection from an existing pool and begins a
// transaction. The caller keeps ownership of the pool.
func Attach(ctx context.Context, db *sql.DB) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w: %w", pupmigrate.ErrConnection, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin transaction: %w: %w", pupmigrate.ErrConnection, err)
	}

	return &Session{db: db, conn: conn, tx: tx}, nil
}

// Exec runs one statement or multi-statement script inside the session's
// transaction. Failures are reported as a *pupmigrate.StatementError carrying
// a snippet of the failing statement.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.mustBeOpen("exec")

	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &pupmigrate.StatementError{Statement: snippet(query), Err: err}
	}
	return res, nil
}

// Query runs one query inside the session's transaction.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s.mustBeOpen("query")

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &pupmigrate.StatementError{Statement: snippet(query), Err: err}
	}
	return rows, nil
}

// Commit makes the transaction's work durable and terminates the session.
func (s *Session) Commit() error {
	s.mustBeOpen("commit")
	s.terminated = true

	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction's work and terminates the session.
func (s *Session) Rollback() error {
	s.mustBeOpen("rollback")
	s.terminated = true

	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Restart rolls back the open transaction and begins a new one on the same
// connection. It exists for the single detection-recovery path: absorbing a
// failed version probe without giving up the session.
func (s *Session) Restart(ctx context.Context) error {
	s.mustBeOpen("restart")

	if err := s.tx.Rollback(); err != nil {
		s.terminated = true
		return fmt.Errorf("restart rollback: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		s.terminated = true
		return fmt.Errorf("restart begin: %w: %w", pupmigrate.ErrConnection, err)
	}

	s.tx = tx
	return nil
}

// Terminated reports whether Commit or Rollback has been called.
func (s *Session) Terminated() bool {
	return s.terminated
}

// Release returns the connection to the pool, closing the pool as well when
// the session opened it. The underlying release happens exactly once; later
// calls are no-ops.
func (s *Session) Release() error {
	if s.released {
		return nil
	}
	s.released = true

	err := s.conn.Close()
	if s.ownsDB {
		if closeErr := s.db.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return fmt.Errorf("release connection: %w", err)
	}
	return nil
}

func (s *Session) mustBeOpen(op string) {
	if s.terminated || s.released {
		panic(fmt.Sprintf("session: %s on terminated session", op))
	}
}

// snippet truncates a script to a short identifying prefix for error
// reporting.
func snippet(query string) string {
	const max = 80
	if len(query) <= max {
		return query
	}
	return query[:max] + "..."
}
