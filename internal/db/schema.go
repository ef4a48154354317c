package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            SERIAL PRIMARY KEY,
		email         VARCHAR(120) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		name          VARCHAR(100) NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS assessments (
		id          SERIAL PRIMARY KEY,
		user_id     INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		name        VARCHAR(100) NOT NULL DEFAULT '',
		age         INTEGER NOT NULL,
		gender      VARCHAR(10) NOT NULL,
		height      DOUBLE PRECISION NOT NULL,
		weight      DOUBLE PRECISION NOT NULL,
		frequency   INTEGER NOT NULL,
		duration    DOUBLE PRECISION NOT NULL,
		exercises   JSONB NOT NULL DEFAULT '[]'::jsonb,
		predictions JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS assessments_user_id_uniq ON assessments (user_id);`,
}

// Migrate creates the tables if they are missing. Safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	log.Debugf("db schema migrated, %d statements applied", len(schemaStatements))
	return nil
}
