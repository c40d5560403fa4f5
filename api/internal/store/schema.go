package store

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the cache tables if they do not exist. Run once at
// startup; safe to run repeatedly.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`create table if not exists extracted_pages (
			id bigserial primary key,
			created_at timestamptz not null default now(),
			image_hash text not null,
			engine text not null,
			model text not null,
			result_json jsonb not null,
			unique (image_hash, engine, model)
		)`,
		`create table if not exists answered_questions (
			id bigserial primary key,
			created_at timestamptz not null default now(),
			combined_hash text not null,
			engine text not null,
			model text not null,
			answer text not null,
			note text,
			unique (combined_hash, engine, model)
		)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}
