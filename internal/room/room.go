// internal/room/room.go
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/jason-s-yu/trickroom/internal/models"
)

// Member is a player's seat in a room before and during a match.
type Member struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	IsReady  bool      `json:"isReady"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Room groups up to Capacity members under a shareable code and owns at most
// one game session at a time.
type Room struct {
	Code      string          `json:"code"`
	Members   []*Member       `json:"members"`
	Rules     game.HouseRules `json:"rules"`
	CreatedAt time.Time       `json:"createdAt"`
	Capacity  int             `json:"capacity"`

	// Game is nil until the host starts a match. A finished session stays in
	// place for result queries until the next start replaces it.
	Game *game.Session `json:"-"`

	// Mu is the room's lane: every read or write of Members or Game happens under it.
	Mu sync.Mutex `json:"-"`

	closed bool
}

func newRoom(code string, capacity int, rules game.HouseRules, host models.Identity, now time.Time) *Room {
	return &Room{
		Code:      code,
		Capacity:  capacity,
		Rules:     rules,
		CreatedAt: now,
		Members: []*Member{{
			ID:       host.ID,
			Name:     host.DisplayName(),
			IsHost:   true,
			JoinedAt: now,
		}},
	}
}

// Member returns the member with the given id. Caller holds Mu.
func (r *Room) Member(id uuid.UUID) (*Member, bool) {
	for _, m := range r.Members {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// Host returns the current host. Caller holds Mu.
func (r *Room) Host() *Member {
	for _, m := range r.Members {
		if m.IsHost {
			return m
		}
	}
	return nil
}

// Full reports whether another member would exceed capacity. Caller holds Mu.
func (r *Room) Full() bool {
	return len(r.Members) >= r.Capacity
}

// InGame reports whether a match is running. Caller holds Mu.
func (r *Room) InGame() bool {
	return r.Game != nil && !r.Game.Over()
}

// Closed reports whether the room has been removed from its registry. Caller holds Mu.
func (r *Room) Closed() bool {
	return r.closed
}

// SetReady changes a member's ready flag. Caller holds Mu.
func (r *Room) SetReady(id uuid.UUID, ready bool) bool {
	m, ok := r.Member(id)
	if !ok {
		return false
	}
	m.IsReady = ready
	return true
}

// AllReady reports whether every member other than the host is ready. Caller holds Mu.
func (r *Room) AllReady() bool {
	for _, m := range r.Members {
		if !m.IsHost && !m.IsReady {
			return false
		}
	}
	return true
}

// Identities lists members in seat order. Caller holds Mu.
func (r *Room) Identities() []models.Identity {
	out := make([]models.Identity, len(r.Members))
	for i, m := range r.Members {
		out[i] = models.Identity{ID: m.ID, Name: m.Name}
	}
	return out
}

// Snapshot copies the room's public fields for listing and serialisation. Caller holds Mu.
func (r *Room) Snapshot() Info {
	info := Info{
		Code:      r.Code,
		Capacity:  r.Capacity,
		CreatedAt: r.CreatedAt,
		Rules:     r.Rules,
		InGame:    r.InGame(),
		Members:   make([]Member, len(r.Members)),
	}
	for i, m := range r.Members {
		info.Members[i] = *m
	}
	return info
}

// Info is a lock-free copy of a room.
type Info struct {
	Code      string          `json:"code"`
	Capacity  int             `json:"capacity"`
	CreatedAt time.Time       `json:"createdAt"`
	Rules     game.HouseRules `json:"rules"`
	InGame    bool            `json:"inGame"`
	Members   []Member        `json:"members"`
}

// removeMember drops a member and hands the host role to the next seat. Caller holds Mu.
func (r *Room) removeMember(id uuid.UUID) bool {
	idx := -1
	for i, m := range r.Members {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	wasHost := r.Members[idx].IsHost
	r.Members = append(r.Members[:idx], r.Members[idx+1:]...)
	if wasHost && len(r.Members) > 0 {
		r.Members[0].IsHost = true
		r.Members[0].IsReady = false
	}
	return true
}
