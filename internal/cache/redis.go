// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/dispatch"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for room action logs.
const DefaultQueueName = "trickroom_actions"

// ActionRecord is one entry of a room's public action log. ActionIndex is
// the game sequence number that produced the entry and is shared by the
// trick, phase and round records that follow a play. LogPosition orders a
// room's entries and is unique within the room.
type ActionRecord struct {
	SessionID     uuid.UUID              `json:"session_id"`
	RoomCode      string                 `json:"room_code"`
	LogPosition   int64                  `json:"log_position"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Connect opens a Redis client and checks it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Historian is an outbox sink that appends every public state change to a
// Redis list for offline consumers. Private snapshots are never written.
type Historian struct {
	rdb   *redis.Client
	queue string
	now   func() time.Time
}

// NewHistorian pushes to queue, or DefaultQueueName when queue is empty.
func NewHistorian(rdb *redis.Client, queue string) *Historian {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Historian{rdb: rdb, queue: queue, now: time.Now}
}

func (h *Historian) Name() string { return "redis-historian" }

func (h *Historian) positionKey(room string) string {
	return h.queue + ":position:" + room
}

// Deliver reserves log positions for the event's records with one INCRBY on
// the room's counter, then RPushes them in one call.
func (h *Historian) Deliver(ctx context.Context, ev dispatch.Event) error {
	records := Records(ev, h.now())
	if len(records) == 0 {
		return nil
	}
	last, err := h.rdb.IncrBy(ctx, h.positionKey(ev.Room()), int64(len(records))).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve log positions for room %s: %w", ev.Room(), err)
	}
	assignPositions(records, last)
	values := make([]interface{}, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal ActionRecord: %w", err)
		}
		values = append(values, data)
	}
	if err := h.rdb.RPush(ctx, h.queue, values...).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", h.queue, err)
	}
	return nil
}

// assignPositions numbers records so the final one gets last.
func assignPositions(records []ActionRecord, last int64) {
	first := last - int64(len(records)) + 1
	for i := range records {
		records[i].LogPosition = first + int64(i)
	}
}

// Records flattens an event into log entries. Rejections are not logged.
func Records(ev dispatch.Event, at time.Time) []ActionRecord {
	ts := at.UnixMilli()
	base := func(actor uuid.UUID, kind string, payload map[string]interface{}) ActionRecord {
		return ActionRecord{RoomCode: ev.Room(), ActorUserID: actor, ActionType: kind, ActionPayload: payload, Timestamp: ts}
	}

	switch e := ev.(type) {
	case dispatch.RoomCreated:
		return []ActionRecord{base(e.Host, "room_created", map[string]interface{}{"capacity": e.Info.Capacity})}
	case dispatch.PlayerJoined:
		return []ActionRecord{base(e.Player.ID, "player_joined", map[string]interface{}{"reconnected": e.Reconnected})}
	case dispatch.PlayerLeft:
		return []ActionRecord{base(e.PlayerID, "player_left", map[string]interface{}{"disconnected": e.Disconnected})}
	case dispatch.RoomClosed:
		return []ActionRecord{base(uuid.Nil, "room_closed", map[string]interface{}{"reason": e.Reason})}
	case dispatch.StateUpdated:
		return stateRecords(e, base)
	default:
		return nil
	}
}

func stateRecords(e dispatch.StateUpdated, base func(uuid.UUID, string, map[string]interface{}) ActionRecord) []ActionRecord {
	d := e.Delta
	var out []ActionRecord
	add := func(rec ActionRecord, idx int) {
		rec.SessionID = d.SessionID
		rec.ActionIndex = idx
		out = append(out, rec)
	}

	if d.ReadyPlayerID != uuid.Nil {
		add(base(d.ReadyPlayerID, "action_ready", nil), d.Seq)
	}
	first := d.Seq - len(d.Plays)
	for i, p := range d.Plays {
		kind := "action_play"
		if p.Passed {
			kind = "action_pass"
		}
		add(base(p.PlayerID, kind, map[string]interface{}{
			"cards": p.Cards,
			"count": p.Count,
			"auto":  p.Auto,
		}), first+i)
	}
	if d.Trick != nil {
		add(base(d.Trick.WinnerID, "trick_won", nil), d.Seq)
	}
	for _, st := range d.Steps {
		add(base(st.CurrentPlayerID, "phase_"+string(st.Phase), map[string]interface{}{
			"dealer": st.DealerID.String(),
			"round":  d.Round,
		}), d.Seq)
	}
	if r := d.RoundResult; r != nil {
		points := make(map[string]interface{}, len(r.Points))
		for id, pts := range r.Points {
			points[id.String()] = pts
		}
		add(base(uuid.Nil, "round_end", map[string]interface{}{
			"round":      r.Round,
			"points":     points,
			"match_over": r.MatchOver,
		}), d.Seq)
	}
	return out
}
