package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
)

func Connect(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	return db, nil
}

// Schema - таблицы, которые читает и пишет ядро. Идемпотентна.
const Schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS players (
	id            TEXT PRIMARY KEY,
	skill_rating  DOUBLE PRECISION NOT NULL DEFAULT 1000,
	active_region TEXT NOT NULL DEFAULT 'global',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS matches (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	tournament_id    UUID,
	player1_id       TEXT NOT NULL,
	player2_id       TEXT NOT NULL,
	player1_score    INTEGER CHECK (player1_score >= 0),
	player2_score    INTEGER CHECK (player2_score >= 0),
	winner_id        TEXT,
	status           TEXT NOT NULL DEFAULT 'scheduled'
	                 CONSTRAINT matches_status_check CHECK (status IN ('scheduled', 'in_progress', 'completed', 'disputed')),
	game_mode        TEXT,
	scheduled_time   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	started_at       TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ,
	disputed_by      TEXT,
	dispute_reason   TEXT,
	matchmaking_data JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT matches_distinct_players CHECK (player1_id <> player2_id)
);

CREATE INDEX IF NOT EXISTS idx_matches_created_at ON matches (created_at);
CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches (player1_id, completed_at DESC);
CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches (player2_id, completed_at DESC);

CREATE TABLE IF NOT EXISTS match_disputes (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	match_id         UUID NOT NULL CONSTRAINT match_disputes_match_id_fkey REFERENCES matches (id) ON DELETE CASCADE,
	reporter_id      TEXT NOT NULL,
	reason           TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'upheld', 'rejected')),
	resolution_notes TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	resolved_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_match_disputes_status ON match_disputes (status, created_at);
`

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
