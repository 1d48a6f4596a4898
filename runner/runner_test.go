package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blang/semver/v4"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupmigrate"
	"github.com/getpup/pupmigrate/bookkeeping"
	"github.com/getpup/pupmigrate/session"
)

func testSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.Connect(context.Background(), session.Target{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if !sess.Terminated() {
			_ = sess.Rollback()
		}
		_ = sess.Release()
	})
	return sess
}

func testStore(t *testing.T, ctx context.Context, sess *session.Session) *bookkeeping.Store {
	t.Helper()
	store := bookkeeping.New(bookkeeping.DialectSQLite)
	require.NoError(t, store.EnsureSchema(ctx, sess))
	return store
}

func writeScript(t *testing.T, dir, name, content string) pupmigrate.Step {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	base := name[:len(name)-len(filepath.Ext(name))]
	return pupmigrate.Step{Name: base, Path: path, Kind: pupmigrate.StepKindScript}
}

func unit(t *testing.T, raw string, isGroup bool, steps ...pupmigrate.Step) pupmigrate.MigrationUnit {
	t.Helper()
	version, err := semver.Parse(raw)
	require.NoError(t, err)
	return pupmigrate.MigrationUnit{Version: version, Title: "test", IsGroup: isGroup, Steps: steps}
}

func recordedVersions(t *testing.T, ctx context.Context, sess *session.Session) []string {
	t.Helper()
	rows, err := sess.Query(ctx, "SELECT version FROM schema_version ORDER BY version")
	require.NoError(t, err)
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}
	require.NoError(t, rows.Err())
	return versions
}

func TestRun_SingleScriptRecordsVersion(t *testing.T) {
	ctx := context.Background()
	sess := testSession(t)
	store := testStore(t, ctx, sess)
	dir := t.TempDir()

	r, err := New(Config{Bookkeeper: store})
	require.NoError(t, err)

	step := writeScript(t, dir, "0.0.1-initial.sql", "CREATE TABLE pups (name TEXT);")
	require.NoError(t, r.Run(ctx, unit(t, "0.0.1", false, step), sess))

	assert.Equal(t, []string{"0.0.1"}, recordedVersions(t, ctx, sess))

	rows, err := sess.Query(ctx, "SELECT COUNT(*) FROM pups")
	require.NoError(t, err)
	require.NoError(t, rows.Close())
}

func TestRun_GroupStepsRunInOrder(t *testing.T) {
	ctx := context.Background()
	sess := testSession(t)
	store := testStore(t, ctx, sess)
	dir := t.TempDir()

	// The second step depends on the table the first one creates.
	steps := []pupmigrate.Step{
		writeScript(t, dir, "01_tables.sql", "CREATE TABLE pups (name TEXT);"),
		writeScript(t, dir, "02_seed.sql", "INSERT INTO pups (name) VALUES ('rex');"),
	}

	r, err := New(Config{Bookkeeper: store})
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx, unit(t, "0.0.1", true, steps...), sess))

	rows, err := sess.Query(ctx, "SELECT COUNT(*) FROM pups")
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRun_FailingStepAbortsRemaining(t *testing.T) {
	ctx := context.Background()
	sess := testSession(t)
	store := testStore(t, ctx, sess)
	dir := t.TempDir()

	steps := []pupmigrate.Step{
		writeScript(t, dir, "01_tables.sql", "CREATE TABLE pups (name TEXT);"),
		writeScript(t, dir, "02_broken.sql", "SELEC broken;"),
		writeScript(t, dir, "03_never.sql", "CREATE TABLE never_created (id INT);"),
	}

	r, err := New(Config{Bookkeeper: store})
	require.NoError(t, err)

	err = r.Run(ctx, unit(t, "0.0.1", true, steps...), sess)
	require.Error(t, err)

	var stmtErr *pupmigrate.StatementError
	assert.ErrorAs(t, err, &stmtErr)

	// The failing step aborted the group: no later step ran, nothing was
	// recorded.
	_, queryErr := sess.Query(ctx, "SELECT COUNT(*) FROM never_created")
	require.Error(t, queryErr)
	assert.Empty(t, recordedVersions(t, ctx, sess))
}

func TestRun_ProcedureStep(t *testing.T) {
	ctx := context.Background()
	sess := testSession(t)
	store := testStore(t, ctx, sess)

	var called bool
	registry := pupmigrate.ProcedureRegistry{
		"01_backfill": func(ctx context.Context, exec pupmigrate.Execer) error {
			called = true
			_, err := exec.Exec(ctx, "CREATE TABLE backfilled (id INT)")
			return err
		},
	}

	r, err := New(Config{Bookkeeper: store, Procedures: registry})
	require.NoError(t, err)

	step := pupmigrate.Step{Name: "01_backfill", Path: "ignored", Kind: pupmigrate.StepKindProcedure}
	require.NoError(t, r.Run(ctx, unit(t, "0.2.0", false, step), sess))

	assert.True(t, called)
	assert.Equal(t, []string{"0.2.0"}, recordedVersions(t, ctx, sess))
}

func TestRun_UnregisteredProcedure(t *testing.T) {
	ctx := context.Background()
	sess := testSession(t)
	store := testStore(t, ctx, sess)

	r, err := New(Config{Bookkeeper: store})
	require.NoError(t, err)

	step := pupmigrate.Step{Name: "01_missing", Kind: pupmigrate.StepKindProcedure}
	err = r.Run(ctx, unit(t, "0.2.0", false, step), sess)
	require.Error(t, err)
	assert.ErrorIs(t, err, pupmigrate.ErrProcedureNotRegistered)
}

func TestRun_ProcedureErrorPropagates(t *testing.T) {
	ctx := context.Background()
	sess := testSession(t)
	store := testStore(t, ctx, sess)

	boom := errors.New("backfill exploded")
	registry := pupmigrate.ProcedureRegistry{
		"01_boom": func(context.Context, pupmigrate.Execer) error { return boom },
	}

	r, err := New(Config{Bookkeeper: store, Procedures: registry})
	require.NoError(t, err)

	step := pupmigrate.Step{Name: "01_boom", Kind: pupmigrate.StepKindProcedure}
	err = r.Run(ctx, unit(t, "0.3.0", false, step), sess)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, recordedVersions(t, ctx, sess))
}

func TestNew_RequiresBookkeeper(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
