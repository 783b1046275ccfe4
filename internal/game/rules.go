// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/trickroom/internal/deck"
)

// TimeoutPolicy decides what happens when the current player lets the turn timer expire.
type TimeoutPolicy string

const (
	TimeoutAutoPass TimeoutPolicy = "auto_pass"
	TimeoutAutoPlay TimeoutPolicy = "auto_play"
)

// FlushVisibility controls whether a held flush is shown to opponents.
type FlushVisibility string

const (
	FlushClosed FlushVisibility = "closed"
	FlushOpen   FlushVisibility = "open"
)

// MaxPlayers is the largest table a session supports.
const MaxPlayers = 8

// HouseRules defines the per-room configuration of a match.
type HouseRules struct {
	HandSize        int             `json:"handSize"`        // cards dealt to each player; 0 splits the deck evenly
	MaxPlayCards    int             `json:"maxPlayCards"`    // largest same-rank set a leader may play (1..4)
	TargetScore     int             `json:"targetScore"`     // match ends once a player reaches this many points; 0 disables
	MaxRounds       int             `json:"maxRounds"`       // match ends after this many rounds; 0 disables
	TurnTimeoutSec  int             `json:"turnTimeoutSec"`  // seconds before the timeout policy acts; 0 waits forever
	TimeoutPolicy   TimeoutPolicy   `json:"timeoutPolicy"`   // auto_pass or auto_play
	FlushVisibility FlushVisibility `json:"flushVisibility"` // closed or open
	FlushMinLength  int             `json:"flushMinLength"`  // cards of one suit that count as a flush
	AutoNextRound   bool            `json:"autoNextRound"`   // deal the next round immediately instead of waiting for ready-ups
	RequireAllReady bool            `json:"requireAllReady"` // host can only start once every other member is ready
}

// DefaultHouseRules returns the rules a room starts with.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		HandSize:        0,
		MaxPlayCards:    1,
		TargetScore:     12,
		MaxRounds:       0,
		TurnTimeoutSec:  30,
		TimeoutPolicy:   TimeoutAutoPass,
		FlushVisibility: FlushClosed,
		FlushMinLength:  5,
		AutoNextRound:   true,
		RequireAllReady: false,
	}
}

// Update will update the house rules with the new rules provided.
// Keys that are absent keep their old value.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal, maxVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64: // JSON numbers
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal || n > maxVal {
			return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
		}
		*field = n
		return nil
	}

	assignString := func(key string, allowed ...string) (string, bool, error) {
		val, exists := newRules[key]
		if !exists || val == nil {
			return "", false, nil
		}
		s, ok := val.(string)
		if !ok {
			return "", false, fmt.Errorf("invalid type for %s", key)
		}
		for _, a := range allowed {
			if s == a {
				return s, true, nil
			}
		}
		return "", false, fmt.Errorf("invalid value %q for %s", s, key)
	}

	if err := assignInt(&rules.HandSize, "handSize", 0, deck.Size/2); err != nil {
		return err
	}
	if err := assignInt(&rules.MaxPlayCards, "maxPlayCards", 1, len(deck.Suits)); err != nil {
		return err
	}
	if err := assignInt(&rules.TargetScore, "targetScore", 0, 1000); err != nil {
		return err
	}
	if err := assignInt(&rules.MaxRounds, "maxRounds", 0, 1000); err != nil {
		return err
	}
	if err := assignInt(&rules.TurnTimeoutSec, "turnTimeoutSec", 0, 600); err != nil {
		return err
	}
	if err := assignInt(&rules.FlushMinLength, "flushMinLength", 0, deck.Size/len(deck.Suits)); err != nil {
		return err
	}
	if err := assignBool(&rules.AutoNextRound, "autoNextRound"); err != nil {
		return err
	}
	if err := assignBool(&rules.RequireAllReady, "requireAllReady"); err != nil {
		return err
	}
	if s, ok, err := assignString("timeoutPolicy", string(TimeoutAutoPass), string(TimeoutAutoPlay)); err != nil {
		return err
	} else if ok {
		rules.TimeoutPolicy = TimeoutPolicy(s)
	}
	if s, ok, err := assignString("flushVisibility", string(FlushClosed), string(FlushOpen)); err != nil {
		return err
	} else if ok {
		rules.FlushVisibility = FlushVisibility(s)
	}
	return nil
}

// ParseRules applies a map of overrides to a copy of current.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}

// handSizeFor resolves the number of cards dealt to each of n players.
func (rules HouseRules) handSizeFor(n int) int {
	if n <= 0 {
		return 0
	}
	even := deck.Size / n
	if rules.HandSize <= 0 || rules.HandSize > even {
		return even
	}
	return rules.HandSize
}

// Validate checks the rules against a table of n players.
func (rules HouseRules) Validate(n int) error {
	if n < 2 || n > MaxPlayers {
		return fmt.Errorf("%w: need between 2 and %d players, have %d", ErrSeats, MaxPlayers, n)
	}
	if rules.MaxPlayCards < 1 || rules.MaxPlayCards > len(deck.Suits) {
		return fmt.Errorf("maxPlayCards must be between 1 and %d", len(deck.Suits))
	}
	if rules.HandSize < 0 {
		return fmt.Errorf("handSize must be non-negative")
	}
	if rules.TargetScore <= 0 && rules.MaxRounds <= 0 {
		return fmt.Errorf("either targetScore or maxRounds must be set")
	}
	switch rules.TimeoutPolicy {
	case TimeoutAutoPass, TimeoutAutoPlay:
	default:
		return fmt.Errorf("unknown timeoutPolicy %q", rules.TimeoutPolicy)
	}
	switch rules.FlushVisibility {
	case FlushClosed, FlushOpen:
	default:
		return fmt.Errorf("unknown flushVisibility %q", rules.FlushVisibility)
	}
	return nil
}
