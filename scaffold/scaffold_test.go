package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_FirstMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := Generate(&Config{Directory: dir, Title: "add_users"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "0.0.1-add_users.sql"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "0.0.1-add_users")
}

func TestGenerate_BumpsFromCatalogMaximum(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0.3.2-existing.sql"), []byte("-- x\n"), 0o600))

	tests := []struct {
		bump Bump
		want string
	}{
		{bump: BumpPatch, want: "0.3.3-next.sql"},
		{bump: BumpMinor, want: "0.4.0-next.sql"},
		{bump: BumpMajor, want: "1.0.0-next.sql"},
	}

	for _, tt := range tests {
		t.Run(string(tt.bump), func(t *testing.T) {
			path, err := Generate(&Config{Directory: dir, Title: "next", Bump: tt.bump})
			require.NoError(t, err)
			assert.Equal(t, tt.want, filepath.Base(path))
			require.NoError(t, os.Remove(path))
		})
	}
}

func TestGenerate_Group(t *testing.T) {
	dir := t.TempDir()

	path, err := Generate(&Config{Directory: dir, Title: "split_orders", Group: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "0.0.1-split_orders"), path)

	entries, err := os.ReadDir(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "01_split_orders.sql", entries[0].Name())
}

func TestGenerate_InvalidTitle(t *testing.T) {
	dir := t.TempDir()

	for _, title := range []string{"", "9lives", "has space", "has-dash", "has;semi"} {
		_, err := Generate(&Config{Directory: dir, Title: title})
		assert.Error(t, err, "title %q should be rejected", title)
	}
}

func TestGenerate_InvalidBump(t *testing.T) {
	_, err := Generate(&Config{Directory: t.TempDir(), Title: "ok", Bump: Bump("mega")})
	require.Error(t, err)
}
