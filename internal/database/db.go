package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectDB opens a pgx pool and pings it.
func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id           BIGSERIAL PRIMARY KEY,
	code         TEXT        NOT NULL,
	host_id      UUID        NOT NULL,
	capacity     INT         NOT NULL,
	opened_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	closed_at    TIMESTAMPTZ,
	close_reason TEXT
);
CREATE INDEX IF NOT EXISTS rooms_open_code ON rooms (code) WHERE closed_at IS NULL;

CREATE TABLE IF NOT EXISTS game_sessions (
	id         UUID PRIMARY KEY,
	room_code  TEXT        NOT NULL,
	status     TEXT        NOT NULL,
	rounds     INT         NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	ended_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS session_results (
	session_id UUID    NOT NULL REFERENCES game_sessions (id),
	player_id  UUID    NOT NULL,
	points     INT     NOT NULL,
	did_win    BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (session_id, player_id)
);
`

// Migrate creates the room record tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
