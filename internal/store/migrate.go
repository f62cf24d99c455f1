package store

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locks (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		is_public  BOOLEAN NOT NULL DEFAULT TRUE,
		scan_count BIGINT NOT NULL DEFAULT 0 CHECK (scan_count >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_locks_user_id ON locks(user_id)`,
	`CREATE TABLE IF NOT EXISTS media (
		id            BIGSERIAL PRIMARY KEY,
		lock_id       BIGINT NOT NULL REFERENCES locks(id) ON DELETE CASCADE,
		url           TEXT NOT NULL,
		media_type    TEXT NOT NULL CHECK (media_type IN ('image', 'video', 'audio')),
		caption       TEXT NOT NULL DEFAULT '',
		display_order INTEGER NOT NULL CHECK (display_order >= 0),
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_media_lock_order ON media(lock_id, display_order)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin      BOOLEAN NOT NULL DEFAULT 0,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locks (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		is_public  BOOLEAN NOT NULL DEFAULT 1,
		scan_count INTEGER NOT NULL DEFAULT 0 CHECK (scan_count >= 0),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_locks_user_id ON locks(user_id)`,
	`CREATE TABLE IF NOT EXISTS media (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		lock_id       INTEGER NOT NULL REFERENCES locks(id) ON DELETE CASCADE,
		url           TEXT NOT NULL,
		media_type    TEXT NOT NULL CHECK (media_type IN ('image', 'video', 'audio')),
		caption       TEXT NOT NULL DEFAULT '',
		display_order INTEGER NOT NULL CHECK (display_order >= 0),
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_media_lock_order ON media(lock_id, display_order)`,
}

// Migrate creates tables and indexes. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == DriverPostgres {
		stmts = postgresSchema
	}
	for i, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	s.logger.Info("schema up to date", "driver", s.driver, "statements", len(stmts))
	return nil
}
