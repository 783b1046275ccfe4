// internal/deck/deck.go
package deck

import (
	"math/rand/v2"
	"sort"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// BuildDeck returns the 36-card deck, suit-major, ranks ascending.
func BuildDeck() []Card {
	cards := make([]Card, 0, Size)
	for _, s := range Suits {
		for _, r := range Ranks {
			cards = append(cards, newCard(r, s))
		}
	}
	return cards
}

// Shuffle returns a uniformly shuffled copy of cards using the process-wide source.
func Shuffle(cards []Card) []Card {
	return fisherYates(cards, rand.IntN)
}

// ShuffleSeeded returns a shuffled copy whose order depends only on seed.
func ShuffleSeeded(cards []Card, seed int64) []Card {
	return ShuffleWith(NewRand(seed), cards)
}

// ShuffleWith returns a shuffled copy drawing from r.
func ShuffleWith(r *rand.Rand, cards []Card) []Card {
	return fisherYates(cards, r.IntN)
}

// NewRand derives a deterministic generator from an int64 seed.
func NewRand(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

func fisherYates(cards []Card, intn func(int) int) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// SortHand orders cards by play order, then suit.
func SortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].PlayOrder != cards[j].PlayOrder {
			return cards[i].PlayOrder < cards[j].PlayOrder
		}
		return suitIndex(cards[i].Suit) < suitIndex(cards[j].Suit)
	})
}

// Contains reports whether every card in want is present in hand.
func Contains(hand, want []Card) bool {
	counts := make(map[Card]int, len(hand))
	for _, c := range hand {
		counts[c]++
	}
	for _, c := range want {
		if counts[c] == 0 {
			return false
		}
		counts[c]--
	}
	return true
}

// Remove returns a new hand without the given cards.
func Remove(hand, toRemove []Card) []Card {
	if len(toRemove) == 0 {
		out := make([]Card, len(hand))
		copy(out, hand)
		return out
	}
	removeCounts := make(map[Card]int, len(toRemove))
	for _, c := range toRemove {
		removeCounts[c]++
	}
	out := make([]Card, 0, len(hand))
	for _, c := range hand {
		if n := removeCounts[c]; n > 0 {
			removeCounts[c] = n - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

// Lowest returns the n weakest cards of hand (by strength, then play order).
func Lowest(hand []Card, n int) []Card {
	sorted := make([]Card, len(hand))
	copy(sorted, hand)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AttackValue != sorted[j].AttackValue {
			return sorted[i].AttackValue < sorted[j].AttackValue
		}
		return sorted[i].PlayOrder < sorted[j].PlayOrder
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
