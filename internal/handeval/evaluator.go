// Package handeval scores the best five-card hand out of a player's hole
// cards and the shared community cards, wrapping github.com/chehsunliu/poker
// for the actual rank arithmetic.
package handeval

import (
	"fmt"
	"sort"

	chehsunliu "github.com/chehsunliu/poker"

	"github.com/holdempoker/tableserver/internal/cards"
)

// Rank classifies a hand's category, ordered worst to best.
type Rank int

const (
	HighCard Rank = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (r Rank) String() string {
	switch r {
	case HighCard:
		return "high card"
	case Pair:
		return "pair"
	case TwoPair:
		return "two pair"
	case ThreeOfAKind:
		return "three of a kind"
	case Straight:
		return "straight"
	case Flush:
		return "flush"
	case FullHouse:
		return "full house"
	case FourOfAKind:
		return "four of a kind"
	case StraightFlush:
		return "straight flush"
	default:
		return "unknown"
	}
}

// Value is a complete evaluation of a hand: its category, a comparable
// strength value, the five cards that make it up, and a human-readable
// description.
type Value struct {
	Rank        Rank
	Strength    int32
	Best        []cards.Card
	Description string
}

func toChehsunliu(c cards.Card) (chehsunliu.Card, error) {
	var rankChar byte
	switch c.Rank {
	case 2:
		rankChar = '2'
	case 3:
		rankChar = '3'
	case 4:
		rankChar = '4'
	case 5:
		rankChar = '5'
	case 6:
		rankChar = '6'
	case 7:
		rankChar = '7'
	case 8:
		rankChar = '8'
	case 9:
		rankChar = '9'
	case 10:
		rankChar = 'T'
	case 11:
		rankChar = 'J'
	case 12:
		rankChar = 'Q'
	case 13:
		rankChar = 'K'
	case 14:
		rankChar = 'A'
	default:
		var zero chehsunliu.Card
		return zero, fmt.Errorf("handeval: invalid rank %v", c.Rank)
	}

	var suitChar byte
	switch c.Suit {
	case cards.Spades:
		suitChar = 's'
	case cards.Hearts:
		suitChar = 'h'
	case cards.Diamonds:
		suitChar = 'd'
	case cards.Clubs:
		suitChar = 'c'
	default:
		var zero chehsunliu.Card
		return zero, fmt.Errorf("handeval: invalid suit %v", c.Suit)
	}

	return chehsunliu.NewCard(string([]byte{rankChar, suitChar})), nil
}

func rankFromClass(class int32) Rank {
	switch class {
	case 1:
		return StraightFlush
	case 2:
		return FourOfAKind
	case 3:
		return FullHouse
	case 4:
		return Flush
	case 5:
		return Straight
	case 6:
		return ThreeOfAKind
	case 7:
		return TwoPair
	case 8:
		return Pair
	default:
		return HighCard
	}
}

// Evaluate scores the best five-card hand out of hole and community cards
// (2+5, 2+4 and 2+3 are legal — fewer than five total cards, such as 2+0
// pre-flop, returns an error since a hand can't be scored yet).
func Evaluate(hole, community []cards.Card) (Value, error) {
	all := make([]cards.Card, 0, len(hole)+len(community))
	all = append(all, hole...)
	all = append(all, community...)

	if len(all) < 5 {
		return Value{}, fmt.Errorf("handeval: need at least 5 cards, got %d", len(all))
	}

	converted := make([]chehsunliu.Card, 0, len(all))
	for _, c := range all {
		cc, err := toChehsunliu(c)
		if err != nil {
			return Value{}, err
		}
		converted = append(converted, cc)
	}

	rank := chehsunliu.Evaluate(converted)
	class := chehsunliu.RankClass(rank)
	desc := chehsunliu.RankString(rank)

	best, err := bestFive(all, converted, rank)
	if err != nil {
		return Value{}, err
	}

	return Value{
		Rank:        rankFromClass(class),
		Strength:    int32(rank),
		Best:        best,
		Description: desc,
	}, nil
}

// bestFive finds which five of the given cards produce the target rank.
// allChehsunliu is the pre-converted parallel slice of all; target is the
// rank chehsunliu.Evaluate(allChehsunliu) already produced.
func bestFive(all []cards.Card, allChehsunliu []chehsunliu.Card, target int32) ([]cards.Card, error) {
	if len(all) <= 5 {
		return all, nil
	}

	idxCombos := combinations(len(all), 5)
	for _, idx := range idxCombos {
		combo := make([]chehsunliu.Card, 5)
		for i, j := range idx {
			combo[i] = allChehsunliu[j]
		}
		if chehsunliu.Evaluate(combo) == target {
			out := make([]cards.Card, 5)
			for i, j := range idx {
				out[i] = all[j]
			}
			return out, nil
		}
	}

	// Unreachable given target was computed from the same card set, but
	// fall back to the five highest cards rather than panic.
	sorted := append([]cards.Card(nil), all...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })
	return sorted[:5], nil
}

// combinations returns all k-index combinations out of [0, n).
func combinations(n, k int) [][]int {
	var out [][]int
	if k > n || k <= 0 {
		return out
	}
	var current []int
	var generate func(start int)
	generate = func(start int) {
		if len(current) == k {
			combo := make([]int, k)
			copy(combo, current)
			out = append(out, combo)
			return
		}
		for i := start; i <= n-(k-len(current)); i++ {
			current = append(current, i)
			generate(i + 1)
			current = current[:len(current)-1]
		}
	}
	generate(0)
	return out
}

// Compare returns -1 if a is worse than b, 1 if a is better, 0 on a tie.
// chehsunliu's internal rank values are lower-is-better; Compare flips the
// sense so callers can treat it like a normal ordering.
func Compare(a, b Value) int {
	switch {
	case a.Strength > b.Strength:
		return -1
	case a.Strength < b.Strength:
		return 1
	default:
		return 0
	}
}
