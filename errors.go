package pupmigrate

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection indicates the database target could not be reached or a
	// transaction could not be opened. Fatal; never retried.
	ErrConnection = errors.New("connection failed")

	// ErrStorage indicates the bookkeeping schema could not be ensured,
	// typically a permission or connectivity failure.
	ErrStorage = errors.New("bookkeeping schema unavailable")

	// ErrConflict indicates a version was recorded twice. This signals a
	// broken invariant: pending-set filtering should make it impossible.
	ErrConflict = errors.New("version already recorded")

	// ErrProcedureNotRegistered indicates a procedure step has no entry in
	// the procedure registry.
	ErrProcedureNotRegistered = errors.New("procedure not registered")

	// ErrOutOfDate indicates post-run verification found the database behind
	// the catalog's target version. The transaction has already been
	// finalized; committed work is not undone.
	ErrOutOfDate = errors.New("database version behind catalog target")

	// ErrIncompatibleVersion indicates post-run verification found the
	// database ahead of the catalog target under a different major version.
	ErrIncompatibleVersion = errors.New("database version incompatible with catalog target")
)

// StatementError reports a failed statement or script execution. It carries
// the identity of the failing statement alongside the underlying cause.
type StatementError struct {
	// Statement identifies what was being executed: a step path, a load
	// script path, or a truncated statement snippet.
	Statement string

	// Err is the underlying driver error.
	Err error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %q failed: %v", e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}
