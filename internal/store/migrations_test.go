package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrationsDir = filepath.Join("..", "..", "db", "migrations")

var (
	createTablePattern = regexp.MustCompile(`(?m)^CREATE TABLE (\w+)`)
	dropTablePattern   = regexp.MustCompile(`(?m)^DROP TABLE IF EXISTS (\w+)`)
)

// migrationPairs maps each version to its up and down file contents.
func migrationPairs(t *testing.T) map[string][2]string {
	t.Helper()
	entries, err := os.ReadDir(testMigrationsDir)
	require.NoError(t, err)

	pairs := map[string][2]string{}
	for _, entry := range entries {
		name := entry.Name()
		version, _, _ := strings.Cut(name, "_")
		body, err := os.ReadFile(filepath.Join(testMigrationsDir, name))
		require.NoError(t, err)
		pair := pairs[version]
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			require.Empty(t, pair[0], "duplicate up file for %s", version)
			pair[0] = string(body)
		case strings.HasSuffix(name, ".down.sql"):
			require.Empty(t, pair[1], "duplicate down file for %s", version)
			pair[1] = string(body)
		default:
			continue
		}
		pairs[version] = pair
	}
	require.NotEmpty(t, pairs, "no migrations discovered")
	return pairs
}

func tableNames(pattern *regexp.Regexp, sqlText string) []string {
	var names []string
	for _, match := range pattern.FindAllStringSubmatch(sqlText, -1) {
		names = append(names, match[1])
	}
	sort.Strings(names)
	return names
}

func TestMigrationsDownDropsEveryTable(t *testing.T) {
	for version, pair := range migrationPairs(t) {
		require.NotEmpty(t, pair[0], "version %s has no up file", version)
		require.NotEmpty(t, pair[1], "version %s has no down file", version)

		created := tableNames(createTablePattern, pair[0])
		assert.Equal(t, created, tableNames(dropTablePattern, pair[1]), "version %s", version)
	}
}

func TestInitialMigrationCarriesConcurrencyGuards(t *testing.T) {
	up := migrationPairs(t)["0001"][0]
	assert.Contains(t, up, "CREATE UNIQUE INDEX themes_single_active")
	assert.Contains(t, up, "PRIMARY KEY (idea_id, visitor_id)")
	assert.Contains(t, up, "idea_id TEXT NOT NULL REFERENCES ideas(id) ON DELETE CASCADE")
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("BUILDEA_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("BUILDEA_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, resetPublicSchema(ctx, db))

	require.NoError(t, ApplyMigrations(ctx, db, testMigrationsDir))
	assertGuards(t, db, true)

	// Idempotent: a second pass finds nothing pending.
	require.NoError(t, ApplyMigrations(ctx, db, testMigrationsDir))

	pairs := migrationPairs(t)
	versions := make([]string, 0, len(pairs))
	for version := range pairs {
		versions = append(versions, version)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(versions)))
	for _, version := range versions {
		_, err := db.ExecContext(ctx, pairs[version][1])
		require.NoError(t, err, "down %s", version)
	}
	assertGuards(t, db, false)

	_, err = db.ExecContext(ctx, `DELETE FROM schema_migrations`)
	require.NoError(t, err)
	require.NoError(t, ApplyMigrations(ctx, db, testMigrationsDir))
	assertGuards(t, db, true)
}

func assertGuards(t *testing.T, db *sql.DB, want bool) {
	t.Helper()
	ctx := context.Background()

	var activeIndex bool
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_indexes WHERE indexname = 'themes_single_active')`,
	).Scan(&activeIndex))
	assert.Equal(t, want, activeIndex, "themes_single_active")

	var likesKey bool
	require.NoError(t, db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM information_schema.table_constraints
			WHERE table_name = 'likes' AND constraint_type = 'PRIMARY KEY'
		)`,
	).Scan(&likesKey))
	assert.Equal(t, want, likesKey, "likes primary key")
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}
