package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_initial.up.sql
var initialMigrationSQL string

//go:embed migrations/002_session_watermarks.up.sql
var sessionWatermarksSQL string

var requiredTables = []string{
	"directions",
	"managements",
	"coordinations",
	"users",
	"refresh_token_revocations",
	"password_resets",
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	exists, err := db.hasAllRequiredTables(ctx)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if !exists {
		slog.Info("database schema missing tables; applying initial migration")
		if _, err := db.Pool.Exec(ctx, initialMigrationSQL); err != nil {
			return fmt.Errorf("apply initial migration: %w", err)
		}

		exists, err = db.hasAllRequiredTables(ctx)
		if err != nil {
			return fmt.Errorf("re-check tables after migration: %w", err)
		}

		if !exists {
			return fmt.Errorf("schema initialization incomplete: required tables are still missing")
		}
	}

	// 002: per-user session watermarks.
	if err := db.applySessionWatermarks(ctx); err != nil {
		return fmt.Errorf("apply session watermarks migration: %w", err)
	}

	slog.Info("database schema ensured")
	return nil
}

// applySessionWatermarks runs migration 002 idempotently.
func (db *DB) applySessionWatermarks(ctx context.Context) error {
	var hasTable bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public'
			  AND table_name = 'session_watermarks'
		)
	`).Scan(&hasTable)
	if err != nil {
		return fmt.Errorf("check session_watermarks table: %w", err)
	}

	if !hasTable {
		slog.Info("applying session watermarks migration (002)")
		if _, err := db.Pool.Exec(ctx, sessionWatermarksSQL); err != nil {
			return fmt.Errorf("exec session watermarks SQL: %w", err)
		}
	}

	return nil
}

func (db *DB) hasAllRequiredTables(ctx context.Context) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, requiredTables).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(requiredTables), nil
}
