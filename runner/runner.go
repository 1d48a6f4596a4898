// Package runner executes one migration unit against a borrowed session.
package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/getpup/pupmigrate"
)

// Config holds configuration for the Runner.
type Config struct {
	// Bookkeeper records applied versions (required).
	Bookkeeper pupmigrate.Bookkeeper

	// Procedures resolves procedure steps by name (optional).
	Procedures pupmigrate.ProcedureRegistry

	// Reporter is for observability (optional).
	Reporter pupmigrate.Reporter
}

// Runner applies migration units. Steps within a unit run strictly
// sequentially; the first failure aborts the remaining steps. After every
// step succeeds the unit's version is recorded through the same session, so
// unit application is atomic within the enclosing transaction.
type Runner struct {
	config Config
}

// New creates a Runner with the given configuration.
func New(cfg Config) (*Runner, error) {
	if cfg.Bookkeeper == nil {
		return nil, fmt.Errorf("bookkeeper is required")
	}
	return &Runner{config: cfg}, nil
}

// Run executes every step of unit in order against sess, then records the
// unit's version as applied. The runner borrows sess; it never commits,
// rolls back, or releases it.
func (r *Runner) Run(ctx context.Context, unit pupmigrate.MigrationUnit, sess pupmigrate.Execer) error {
	for _, step := range unit.Steps {
		if r.config.Reporter != nil {
			r.config.Reporter.Info(ctx, "applying step",
				"version", unit.Version.String(), "step", step.Name, "kind", string(step.Kind))
		}

		if err := r.runStep(ctx, step, sess); err != nil {
			return fmt.Errorf("migration %s step %s: %w", unit.Version, step.Name, err)
		}
	}

	if err := r.config.Bookkeeper.RecordApplied(ctx, sess, unit.Version); err != nil {
		return err
	}

	if r.config.Reporter != nil {
		r.config.Reporter.Info(ctx, "migration applied",
			"version", unit.Version.String(), "title", unit.Title, "steps", len(unit.Steps))
	}

	return nil
}

func (r *Runner) runStep(ctx context.Context, step pupmigrate.Step, sess pupmigrate.Execer) error {
	switch step.Kind {
	case pupmigrate.StepKindScript:
		script, err := os.ReadFile(step.Path)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		if _, err := sess.Exec(ctx, string(script)); err != nil {
			return err
		}
		return nil

	case pupmigrate.StepKindProcedure:
		procedure, ok := r.config.Procedures[step.Name]
		if !ok {
			return fmt.Errorf("%s: %w", step.Name, pupmigrate.ErrProcedureNotRegistered)
		}
		return procedure(ctx, sess)

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}
