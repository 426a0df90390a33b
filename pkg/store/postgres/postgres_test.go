package postgres

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMigrations itself requires a live pool, but the embedded migration set
// it walks is pure data: this guards against a migration file being added
// without a parseable .sql suffix or the embed directive silently missing
// the directory.
func TestMigrationsAreEmbeddedAndSorted(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	var names []string
	for _, e := range entries {
		assert.False(t, e.IsDir())
		assert.True(t, strings.HasSuffix(e.Name(), ".sql"))
		names = append(names, e.Name())
	}
	assert.True(t, sort.StringsAreSorted(names))
}
