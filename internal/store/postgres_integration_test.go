package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPostgresStore(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("BUILDEA_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("BUILDEA_TEST_DATABASE_URL is not set")
	}

	runStoreSuite(t, func(t *testing.T) backend {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		db, err := Open(ctx, dsn)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		if err := resetPublicSchema(ctx, db); err != nil {
			t.Fatalf("reset schema: %v", err)
		}
		if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
			t.Fatalf("ApplyMigrations() error = %v", err)
		}
		return NewPostgresStore(db)
	})
}
