// Package catalog discovers migration units on disk and orders them by
// semantic version.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/getpup/pupmigrate"
)

const (
	// DefaultScriptExt marks declarative SQL script files.
	DefaultScriptExt = ".sql"

	// DefaultProcedureExt marks procedure steps resolved through the
	// procedure registry.
	DefaultProcedureExt = ".proc"
)

// Catalog reads a directory of migration units. Entries are named
// <semver>-<title>; a directory entry is a grouped migration whose contained
// scripts run in lexicographic name order, a file entry is a single
// migration. Entries that do not carry a valid semantic version or a
// recognized extension are skipped so non-migration files can coexist in the
// directory.
type Catalog struct {
	scriptExt    string
	procedureExt string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithScriptExt overrides the declarative script extension.
func WithScriptExt(ext string) Option {
	return func(c *Catalog) { c.scriptExt = ext }
}

// WithProcedureExt overrides the procedure step extension.
func WithProcedureExt(ext string) Option {
	return func(c *Catalog) { c.procedureExt = ext }
}

// New creates a Catalog with the given options.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		scriptExt:    DefaultScriptExt,
		procedureExt: DefaultProcedureExt,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List parses dir into migration units sorted strictly ascending by semantic
// version. Duplicate versions are an error: the catalog invariant requires
// versions to be unique per run.
func (c *Catalog) List(dir string) ([]pupmigrate.MigrationUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory %s: %w", dir, err)
	}

	var units []pupmigrate.MigrationUnit
	seen := make(map[string]string)

	for _, entry := range entries {
		unit, ok, err := c.parseEntry(dir, entry)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		key := unit.Version.String()
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate migration version %s: %s and %s", key, prev, unit.SourcePath)
		}
		seen[key] = unit.SourcePath
		units = append(units, unit)
	}

	sort.Slice(units, func(i, j int) bool {
		return units[i].Version.LT(units[j].Version)
	})

	return units, nil
}

// parseEntry converts one directory entry into a unit. The second return is
// false when the entry is not a migration (invalid version prefix or
// unrecognized extension).
func (c *Catalog) parseEntry(dir string, entry os.DirEntry) (pupmigrate.MigrationUnit, bool, error) {
	name := entry.Name()
	path := filepath.Join(dir, name)

	if entry.IsDir() {
		version, title, ok := splitVersionedName(name)
		if !ok {
			return pupmigrate.MigrationUnit{}, false, nil
		}

		steps, err := c.groupSteps(path)
		if err != nil {
			return pupmigrate.MigrationUnit{}, false, err
		}

		return pupmigrate.MigrationUnit{
			Version:    version,
			Title:      title,
			IsGroup:    true,
			SourcePath: path,
			Steps:      steps,
		}, true, nil
	}

	kind, ok := c.kindForExt(filepath.Ext(name))
	if !ok {
		return pupmigrate.MigrationUnit{}, false, nil
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	version, title, ok := splitVersionedName(base)
	if !ok {
		return pupmigrate.MigrationUnit{}, false, nil
	}

	return pupmigrate.MigrationUnit{
		Version:    version,
		Title:      title,
		SourcePath: path,
		Steps:      []pupmigrate.Step{{Name: base, Path: path, Kind: kind}},
	}, true, nil
}

// groupSteps enumerates the recognized scripts inside a grouped migration.
// os.ReadDir returns entries sorted by name, so authors control execution
// order with numeric prefixes.
func (c *Catalog) groupSteps(dir string) ([]pupmigrate.Step, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration group %s: %w", dir, err)
	}

	var steps []pupmigrate.Step
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, ok := c.kindForExt(filepath.Ext(entry.Name()))
		if !ok {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		steps = append(steps, pupmigrate.Step{
			Name: name,
			Path: filepath.Join(dir, entry.Name()),
			Kind: kind,
		})
	}

	return steps, nil
}

func (c *Catalog) kindForExt(ext string) (pupmigrate.StepKind, bool) {
	switch ext {
	case c.scriptExt:
		return pupmigrate.StepKindScript, true
	case c.procedureExt:
		return pupmigrate.StepKindProcedure, true
	default:
		return "", false
	}
}

// splitVersionedName parses <semver>-<title>. The version is everything up
// to the dash that leaves a strictly valid semantic version; a prerelease
// suffix in the version portion is not supported in unit names.
func splitVersionedName(name string) (semver.Version, string, bool) {
	idx := strings.Index(name, "-")
	if idx <= 0 || idx == len(name)-1 {
		return semver.Version{}, "", false
	}

	version, err := semver.Parse(name[:idx])
	if err != nil {
		return semver.Version{}, "", false
	}

	return version, name[idx+1:], true
}
