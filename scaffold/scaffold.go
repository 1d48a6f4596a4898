// Package scaffold generates new migration units in an existing catalog
// directory, naming them with the next semantic version.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/blang/semver/v4"

	"github.com/getpup/pupmigrate/catalog"
)

var titleRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Bump selects which version component the new migration increments.
type Bump string

const (
	BumpMajor Bump = "major"
	BumpMinor Bump = "minor"
	BumpPatch Bump = "patch"
)

// Config configures migration scaffolding.
type Config struct {
	// Directory is the migration catalog directory.
	Directory string

	// Title is the migration's free-text label. Must start with a letter and
	// contain only letters, numbers, and underscores so the generated name
	// stays a valid <semver>-<title> entry.
	Title string

	// Bump is the version component to increment (default: patch).
	Bump Bump

	// Group creates a directory with a first numbered sub-script instead of
	// a single file.
	Group bool

	// ScriptExt is the script extension (default: catalog.DefaultScriptExt).
	ScriptExt string
}

// Generate creates the next migration unit and returns its path. The next
// version is derived from the highest version already in the catalog, or
// 0.0.0 for an empty catalog.
func Generate(cfg *Config) (string, error) {
	if cfg.Title == "" || !titleRegex.MatchString(cfg.Title) {
		return "", fmt.Errorf("title must start with a letter and contain only letters, numbers, and underscores (got: %q)", cfg.Title)
	}
	if cfg.Bump == "" {
		cfg.Bump = BumpPatch
	}
	if cfg.ScriptExt == "" {
		cfg.ScriptExt = catalog.DefaultScriptExt
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return "", fmt.Errorf("create catalog directory: %w", err)
	}

	units, err := catalog.New(catalog.WithScriptExt(cfg.ScriptExt)).List(cfg.Directory)
	if err != nil {
		return "", err
	}

	base := semver.Version{}
	if len(units) > 0 {
		base = units[len(units)-1].Version
	}

	next, err := bump(base, cfg.Bump)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s", next, cfg.Title)
	header := fmt.Sprintf("-- migration %s\n", name)

	if cfg.Group {
		dir := filepath.Join(cfg.Directory, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create migration group: %w", err)
		}
		first := filepath.Join(dir, "01_"+cfg.Title+cfg.ScriptExt)
		if err := os.WriteFile(first, []byte(header), 0o600); err != nil {
			return "", fmt.Errorf("write migration script: %w", err)
		}
		return dir, nil
	}

	path := filepath.Join(cfg.Directory, name+cfg.ScriptExt)
	if err := os.WriteFile(path, []byte(header), 0o600); err != nil {
		return "", fmt.Errorf("write migration script: %w", err)
	}
	return path, nil
}

func bump(v semver.Version, level Bump) (semver.Version, error) {
	switch level {
	case BumpMajor:
		return semver.Version{Major: v.Major + 1}, nil
	case BumpMinor:
		return semver.Version{Major: v.Major, Minor: v.Minor + 1}, nil
	case BumpPatch:
		return semver.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}, nil
	default:
		return semver.Version{}, fmt.Errorf("unsupported bump level %q", level)
	}
}
