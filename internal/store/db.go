package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// OpenPostgres connects and, when migrationsDir is set, brings the schema up to date.
func OpenPostgres(ctx context.Context, databaseURL, migrationsDir string) (*PostgresStore, error) {
	db, err := Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if migrationsDir != "" {
		if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	return NewPostgresStore(db), nil
}
