// internal/deck/rules.go
package deck

// Strength is the comparable power of a play. Attack dominates, play order
// breaks ties between different ranks with equal attack.
type Strength struct {
	Attack int
	Order  int
}

// Less reports whether s is strictly weaker than o.
func (s Strength) Less(o Strength) bool {
	if s.Attack != o.Attack {
		return s.Attack < o.Attack
	}
	return s.Order < o.Order
}

// SameRank reports whether all cards share one rank. Empty sets are not a rank set.
func SameRank(cards []Card) bool {
	if len(cards) == 0 {
		return false
	}
	for _, c := range cards[1:] {
		if c.Rank != cards[0].Rank {
			return false
		}
	}
	return true
}

// StrengthOf returns the strength of a same-rank set: its highest attack value
// and the shared play order.
func StrengthOf(cards []Card) Strength {
	var st Strength
	for i, c := range cards {
		if i == 0 || c.AttackValue > st.Attack {
			st.Attack = c.AttackValue
		}
		if c.PlayOrder > st.Order {
			st.Order = c.PlayOrder
		}
	}
	return st
}

// Beats reports whether challenger takes the trick from holder. The challenger
// must be a same-rank set of the same size and strictly stronger; ties stay
// with the earlier play.
func Beats(challenger, holder []Card) bool {
	if len(challenger) != len(holder) || !SameRank(challenger) {
		return false
	}
	return StrengthOf(holder).Less(StrengthOf(challenger))
}

// LowestSet finds the weakest same-rank set of exactly n cards in hand.
func LowestSet(hand []Card, n int) ([]Card, bool) {
	if n <= 0 {
		return nil, false
	}
	byRank := make(map[Rank][]Card)
	for _, c := range Lowest(hand, len(hand)) {
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}
	var best []Card
	for _, r := range Ranks {
		set := byRank[r]
		if len(set) < n {
			continue
		}
		cand := set[:n]
		if best == nil || StrengthOf(cand).Less(StrengthOf(best)) {
			best = cand
		}
	}
	if best == nil {
		return nil, false
	}
	out := make([]Card, n)
	copy(out, best)
	return out, true
}

// Flush is a run of cards of one suit held in a hand.
type Flush struct {
	Suit  Suit `json:"suit"`
	Count int  `json:"count"`
}

// DetectFlush reports the longest single-suit group in hand if it has at least
// minLen cards. Equal lengths resolve in suit order.
func DetectFlush(hand []Card, minLen int) (Flush, bool) {
	if minLen <= 0 {
		return Flush{}, false
	}
	counts := make(map[Suit]int, len(Suits))
	for _, c := range hand {
		counts[c.Suit]++
	}
	var best Flush
	for _, s := range Suits {
		if counts[s] > best.Count {
			best = Flush{Suit: s, Count: counts[s]}
		}
	}
	if best.Count < minLen {
		return Flush{}, false
	}
	return best, true
}
