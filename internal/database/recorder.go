// internal/database/recorder.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/trickroom/internal/dispatch"
	"github.com/jason-s-yu/trickroom/internal/game"
)

// RoomRecorder is an outbox sink that keeps room and session records in
// Postgres. Hands, plays and private snapshots are not stored.
type RoomRecorder struct {
	pool *pgxpool.Pool
}

func NewRoomRecorder(pool *pgxpool.Pool) *RoomRecorder {
	return &RoomRecorder{pool: pool}
}

func (r *RoomRecorder) Name() string { return "postgres-rooms" }

func (r *RoomRecorder) Deliver(ctx context.Context, ev dispatch.Event) error {
	switch e := ev.(type) {
	case dispatch.RoomCreated:
		return r.roomOpened(ctx, e)
	case dispatch.RoomClosed:
		return r.roomClosed(ctx, e)
	case dispatch.StateUpdated:
		return r.sessionProgress(ctx, e)
	default:
		return nil
	}
}

func (r *RoomRecorder) roomOpened(ctx context.Context, e dispatch.RoomCreated) error {
	q := `
		INSERT INTO rooms (code, host_id, capacity, opened_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.pool.Exec(ctx, q, e.Code, e.Host, e.Info.Capacity, e.Info.CreatedAt); err != nil {
		return fmt.Errorf("insert room %s: %w", e.Code, err)
	}
	return nil
}

func (r *RoomRecorder) roomClosed(ctx context.Context, e dispatch.RoomClosed) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		closeRoom := `
			UPDATE rooms
			SET closed_at = NOW(), close_reason = $2
			WHERE code = $1 AND closed_at IS NULL
		`
		if _, err := tx.Exec(ctx, closeRoom, e.Code, e.Reason); err != nil {
			return err
		}
		abandon := `
			UPDATE game_sessions
			SET status = 'abandoned', ended_at = NOW()
			WHERE room_code = $1 AND status = 'in_progress'
		`
		_, err := tx.Exec(ctx, abandon, e.Code)
		return err
	})
}

// sessionProgress opens a session row when a match starts and stores the
// tally at the end of every round.
func (r *RoomRecorder) sessionProgress(ctx context.Context, e dispatch.StateUpdated) error {
	d := e.Delta
	started := false
	for _, st := range d.Steps {
		if st.Phase == game.PhaseDealerSelection {
			started = true
		}
	}
	if !started && d.RoundResult == nil {
		return nil
	}

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if started {
			q := `
				INSERT INTO game_sessions (id, room_code, status)
				VALUES ($1, $2, 'in_progress')
				ON CONFLICT (id) DO NOTHING
			`
			if _, err := tx.Exec(ctx, q, d.SessionID, e.Code); err != nil {
				return err
			}
		}
		if d.RoundResult != nil {
			return recordRound(ctx, tx, d.SessionID, d.RoundResult)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record session %s: %w", d.SessionID, err)
	}
	return nil
}

func recordRound(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, res *game.RoundResult) error {
	winners := make(map[uuid.UUID]bool, len(res.Winners))
	for _, w := range res.Winners {
		winners[w] = true
	}
	for playerID, points := range res.Points {
		q := `
			INSERT INTO session_results (session_id, player_id, points, did_win)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (session_id, player_id)
			DO UPDATE SET points = $3, did_win = $4
		`
		if _, err := tx.Exec(ctx, q, sessionID, playerID, points, winners[playerID]); err != nil {
			return err
		}
	}

	status := "in_progress"
	if res.MatchOver {
		status = "completed"
	}
	q := `
		UPDATE game_sessions
		SET rounds = $2, status = $3, ended_at = CASE WHEN $3 = 'completed' THEN NOW() ELSE ended_at END
		WHERE id = $1
	`
	_, err := tx.Exec(ctx, q, sessionID, res.Round, status)
	return err
}
