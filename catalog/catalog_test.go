package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupmigrate"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("-- test\n"), 0o600))
}

func TestList_OrdersBySemanticVersion(t *testing.T) {
	dir := t.TempDir()
	// Written out of order on purpose; 10.0.0 sorts after 9.0.0 under semver
	// but before it lexicographically.
	writeFile(t, filepath.Join(dir, "10.0.0-ten.sql"))
	writeFile(t, filepath.Join(dir, "0.0.2-views.sql"))
	writeFile(t, filepath.Join(dir, "9.0.0-nine.sql"))
	writeFile(t, filepath.Join(dir, "0.0.10-late.sql"))

	units, err := New().List(dir)
	require.NoError(t, err)
	require.Len(t, units, 4)

	var got []string
	for _, u := range units {
		got = append(got, u.Version.String())
	}
	assert.Equal(t, []string{"0.0.2", "0.0.10", "9.0.0", "10.0.0"}, got)
}

func TestList_SkipsNonMigrationEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0.0.1-initial.sql"))
	writeFile(t, filepath.Join(dir, "README.md"))
	writeFile(t, filepath.Join(dir, "notes.txt"))
	writeFile(t, filepath.Join(dir, "x.y.z-bad.sql"))
	writeFile(t, filepath.Join(dir, "1.2-incomplete.sql"))
	writeFile(t, filepath.Join(dir, "0.0.2-wrongext.yaml"))

	units, err := New().List(dir)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "0.0.1", units[0].Version.String())
	assert.Equal(t, "initial", units[0].Title)
	assert.False(t, units[0].IsGroup)
	require.Len(t, units[0].Steps, 1)
	assert.Equal(t, pupmigrate.StepKindScript, units[0].Steps[0].Kind)
}

func TestList_GroupedMigration(t *testing.T) {
	dir := t.TempDir()
	group := filepath.Join(dir, "0.0.1-initial")
	require.NoError(t, os.Mkdir(group, 0o755))
	writeFile(t, filepath.Join(group, "02_indexes.sql"))
	writeFile(t, filepath.Join(group, "01_tables.sql"))
	writeFile(t, filepath.Join(group, "notes.txt"))

	units, err := New().List(dir)
	require.NoError(t, err)
	require.Len(t, units, 1)

	unit := units[0]
	assert.True(t, unit.IsGroup)
	assert.Equal(t, "initial", unit.Title)
	require.Len(t, unit.Steps, 2)
	assert.Equal(t, "01_tables", unit.Steps[0].Name)
	assert.Equal(t, "02_indexes", unit.Steps[1].Name)
}

func TestList_TitleKeepsInnerDashes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0.1.0-create-order-views.sql"))

	units, err := New().List(dir)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "create-order-views", units[0].Title)
}

func TestList_ProcedureExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0.2.0-backfill.proc"))

	units, err := New().List(dir)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, pupmigrate.StepKindProcedure, units[0].Steps[0].Kind)
	assert.Equal(t, "0.2.0-backfill", units[0].Steps[0].Name)
}

func TestList_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0.0.1-initial.ddl"))
	writeFile(t, filepath.Join(dir, "0.0.2-skipme.sql"))

	units, err := New(WithScriptExt(".ddl")).List(dir)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "0.0.1", units[0].Version.String())
}

func TestList_DuplicateVersionIsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0.0.1-one.sql"))
	group := filepath.Join(dir, "0.0.1-other")
	require.NoError(t, os.Mkdir(group, 0o755))
	writeFile(t, filepath.Join(group, "01_a.sql"))

	_, err := New().List(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 0.0.1")
}

func TestList_MissingDirectory(t *testing.T) {
	_, err := New().List(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}
