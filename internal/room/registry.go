// internal/room/registry.go
package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/jason-s-yu/trickroom/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrGameInProgress     = errors.New("game already in progress")
	ErrCodeSpaceExhausted = errors.New("could not allocate a free room code")
)

const (
	// codeAlphabet has 32 symbols and leaves out 0, O, 1 and I.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	DefaultCodeLength = 6
	DefaultCapacity   = game.MaxPlayers
	MinCapacity       = 2

	maxCodeAttempts = 32
)

// Registry tracks live rooms by code. It is safe for concurrent use; each
// room's own state is guarded by the room's lane.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	capacity   int
	codeLength int
	codeSource io.Reader
	rules      game.HouseRules
	now        func() time.Time
	log        *logrus.Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity sets the member limit for new rooms, clamped to 2..8.
func WithCapacity(n int) Option {
	return func(r *Registry) { r.capacity = clampCapacity(n) }
}

// WithCodeSource replaces crypto/rand as the source of code entropy.
func WithCodeSource(src io.Reader) Option {
	return func(r *Registry) { r.codeSource = src }
}

// WithCodeLength sets the number of symbols in generated codes.
func WithCodeLength(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.codeLength = n
		}
	}
}

// WithDefaultRules sets the house rules new rooms start with.
func WithDefaultRules(rules game.HouseRules) Option {
	return func(r *Registry) { r.rules = rules }
}

// WithLogger sets the registry's log entry.
func WithLogger(l *logrus.Entry) Option {
	return func(r *Registry) { r.log = l }
}

func clampCapacity(n int) int {
	if n < MinCapacity {
		return MinCapacity
	}
	if n > game.MaxPlayers {
		return game.MaxPlayers
	}
	return n
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:      make(map[string]*Room),
		capacity:   DefaultCapacity,
		codeLength: DefaultCodeLength,
		codeSource: rand.Reader,
		rules:      game.DefaultHouseRules(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return r
}

// GenerateCode draws a fresh code. It does not check for collisions.
func (r *Registry) GenerateCode() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generateCodeLocked()
}

func (r *Registry) generateCodeLocked() (string, error) {
	buf := make([]byte, r.codeLength)
	if _, err := io.ReadFull(r.codeSource, buf); err != nil {
		return "", fmt.Errorf("reading code entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// CreateRoom allocates a unique code and registers a room with host as its only member.
func (r *Registry) CreateRoom(host models.Identity) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.generateCodeLocked()
		if err != nil {
			return nil, err
		}
		if _, taken := r.rooms[code]; taken {
			r.log.Debugf("Room code %s collided, drawing again", code)
			continue
		}
		rm := newRoom(code, r.capacity, r.rules, host, r.now())
		r.rooms[code] = rm
		r.log.WithField("room", code).Infof("Room created by %s", host.ID)
		return rm, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// GetRoom looks up a live room.
func (r *Registry) GetRoom(code string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[code]
	return rm, ok
}

// JoinRoom adds player to the room. The capacity check and the append happen
// together under the room lane. Joining a room you are already in succeeds
// without change.
func (r *Registry) JoinRoom(code string, player models.Identity) (*Room, error) {
	rm, ok := r.GetRoom(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()

	if rm.closed {
		return nil, ErrRoomNotFound
	}
	if _, already := rm.Member(player.ID); already {
		return rm, nil
	}
	if rm.InGame() {
		return nil, ErrGameInProgress
	}
	if rm.Full() {
		return nil, ErrRoomFull
	}
	rm.Members = append(rm.Members, &Member{
		ID:       player.ID,
		Name:     player.DisplayName(),
		JoinedAt: r.now(),
	})
	r.log.WithField("room", code).Infof("Player %s joined (%d/%d)", player.ID, len(rm.Members), rm.Capacity)
	return rm, nil
}

// LeaveRoom removes a member. The next seat becomes host when the host leaves,
// and the room is destroyed once empty. It reports whether the room was destroyed.
func (r *Registry) LeaveRoom(code string, playerID uuid.UUID) (*Room, bool, error) {
	rm, ok := r.GetRoom(code)
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()

	if rm.closed {
		return nil, false, ErrRoomNotFound
	}
	if !rm.removeMember(playerID) {
		return rm, false, nil
	}
	r.log.WithField("room", code).Infof("Player %s left", playerID)
	if len(rm.Members) > 0 {
		return rm, false, nil
	}
	rm.closed = true
	r.remove(code)
	return rm, true, nil
}

// CloseRoom removes a room regardless of its members.
func (r *Registry) CloseRoom(code string) (*Room, error) {
	rm, ok := r.GetRoom(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()
	if rm.closed {
		return nil, ErrRoomNotFound
	}
	rm.closed = true
	r.remove(code)
	return rm, nil
}

func (r *Registry) remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
	r.log.WithField("room", code).Info("Room destroyed")
}

// Rooms returns a copy of the code to room map.
func (r *Registry) Rooms() map[string]*Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*Room, len(r.rooms))
	for k, v := range r.rooms {
		out[k] = v
	}
	return out
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
