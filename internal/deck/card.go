// internal/deck/card.go
package deck

import (
	"fmt"
	"strings"
)

// Rank is a card rank. This variant has no face cards.
type Rank string

// Suit is a single-letter card suit.
type Suit string

const (
	Rank3  Rank = "3"
	Rank4  Rank = "4"
	Rank5  Rank = "5"
	Rank6  Rank = "6"
	Rank7  Rank = "7"
	Rank8  Rank = "8"
	Rank9  Rank = "9"
	Rank10 Rank = "10"
	RankA  Rank = "A"
)

const (
	Spades   Suit = "S"
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
)

// TopSuit is the suit whose 3 carries the highest attack value.
const TopSuit = Spades

// Ranks lists the ranks in ascending play order.
var Ranks = []Rank{Rank3, Rank4, Rank5, Rank6, Rank7, Rank8, Rank9, Rank10, RankA}

// Suits lists the suits in deck-building order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Size is the number of cards in a full deck.
const Size = 36

// Card is an immutable playing card. PlayOrder and AttackValue are derived from
// Rank and Suit when the card is built and never change.
type Card struct {
	Rank        Rank `json:"rank"`
	Suit        Suit `json:"suit"`
	PlayOrder   int  `json:"playOrder"`
	AttackValue int  `json:"attackValue"`
}

// newCard is the only constructor; every Card in the system comes through here.
func newCard(r Rank, s Suit) Card {
	return Card{
		Rank:        r,
		Suit:        s,
		PlayOrder:   PlayOrder(r),
		AttackValue: AttackValue(r, s),
	}
}

// PlayOrder returns the index of the rank in the ascending sequence 3..10, A.
// Unknown ranks return -1.
func PlayOrder(r Rank) int {
	for i, rank := range Ranks {
		if rank == r {
			return i
		}
	}
	return -1
}

// AttackValue is the situational strength used to decide tricks.
func AttackValue(r Rank, s Suit) int {
	switch r {
	case Rank3:
		if s == TopSuit {
			return 12
		}
		return 6
	case Rank4:
		return 4
	case RankA:
		return 2
	default:
		return 1
	}
}

// Code renders the card in wire form, e.g. "3S", "10H", "AD".
func (c Card) Code() string {
	return string(c.Rank) + string(c.Suit)
}

func (c Card) String() string {
	return c.Code()
}

// ParseCard turns a wire code back into a Card. It only accepts codes of cards
// that exist in the deck.
func ParseCard(code string) (Card, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 2 {
		return Card{}, fmt.Errorf("invalid card code %q", code)
	}
	r := Rank(code[:len(code)-1])
	s := Suit(code[len(code)-1:])
	if PlayOrder(r) < 0 {
		return Card{}, fmt.Errorf("invalid rank in card code %q", code)
	}
	if !validSuit(s) {
		return Card{}, fmt.Errorf("invalid suit in card code %q", code)
	}
	return newCard(r, s), nil
}

// ParseCards parses a list of wire codes, failing on the first invalid one.
func ParseCards(codes []string) ([]Card, error) {
	cards := make([]Card, 0, len(codes))
	for _, code := range codes {
		c, err := ParseCard(code)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Codes renders cards in wire form.
func Codes(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Code()
	}
	return out
}

func validSuit(s Suit) bool {
	for _, suit := range Suits {
		if suit == s {
			return true
		}
	}
	return false
}

func suitIndex(s Suit) int {
	for i, suit := range Suits {
		if suit == s {
			return i
		}
	}
	return len(Suits)
}
