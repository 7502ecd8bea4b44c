package bot

import (
	"context"

	"github.com/holdempoker/tableserver/internal/cards"
	"github.com/holdempoker/tableserver/internal/handeval"
)

// TabularEngine is the "easy" difficulty bot: a lookup table of preflop
// hand classes (premium/strong/speculative) and postflop hand-category
// thresholds, ported from registry.py's TableDrivenEasyEngine. It needs no
// outside service and is also the fallback every RemoteEngine reaches for
// on failure.
type TabularEngine struct{}

func NewTabularEngine() *TabularEngine { return &TabularEngine{} }

var premiumHands = map[string]bool{
	"AA": true, "KK": true, "QQ": true, "JJ": true, "TT": true,
	"AKs": true, "AKo": true, "AQs": true, "AQo": true, "KQs": true,
}

var strongHands = map[string]bool{
	"99": true, "88": true, "77": true,
	"AJs": true, "ATs": true, "KJs": true, "QJs": true, "JTs": true, "KQo": true, "AJo": true,
	"KTs": true, "QTs": true, "T9s": true, "98s": true,
}

var speculativeHands = map[string]bool{
	"66": true, "55": true, "44": true, "33": true, "22": true,
	"A9s": true, "A8s": true, "A7s": true, "A6s": true, "A5s": true, "A4s": true, "A3s": true, "A2s": true,
	"87s": true, "76s": true, "65s": true, "54s": true,
}

func rankChar(r cards.Rank) byte {
	switch r {
	case 14:
		return 'A'
	case 13:
		return 'K'
	case 12:
		return 'Q'
	case 11:
		return 'J'
	case 10:
		return 'T'
	default:
		return byte('0' + int(r))
	}
}

// handKey renders two hole cards as "AKs"/"99"/"T9o"-style shorthand.
func handKey(hand []cards.Card) string {
	if len(hand) < 2 {
		return ""
	}
	a, b := hand[0], hand[1]
	suited := a.Suit == b.Suit
	if a.Rank == b.Rank {
		return string([]byte{rankChar(a.Rank), rankChar(b.Rank)})
	}
	hi, lo := a.Rank, b.Rank
	if lo > hi {
		hi, lo = lo, hi
	}
	suffix := byte('o')
	if suited {
		suffix = 's'
	}
	return string([]byte{rankChar(hi), rankChar(lo), suffix})
}

func (e *TabularEngine) Decide(ctx context.Context, dc DecisionContext) (int64, error) {
	if dc.Street == StreetPreflop {
		return e.preflop(dc), nil
	}
	return e.postflop(dc), nil
}

func (e *TabularEngine) preflop(dc DecisionContext) int64 {
	key := handKey(dc.Hand)
	if key == "" {
		return checkOrFold(dc)
	}
	switch {
	case premiumHands[key]:
		return e.raise(dc, 0.9)
	case strongHands[key]:
		if dc.MinBet == 0 {
			return e.bet(dc, 0.6)
		}
		return e.callOrFold(dc, 0.5)
	case speculativeHands[key]:
		return e.callOrFold(dc, 0.25)
	default:
		return checkOrFold(dc)
	}
}

func (e *TabularEngine) postflop(dc DecisionContext) int64 {
	if len(dc.Hand) == 0 {
		return checkOrFold(dc)
	}
	value, err := handeval.Evaluate(dc.Hand, dc.Board)
	if err != nil {
		return checkOrFold(dc)
	}
	switch {
	case value.Rank >= handeval.TwoPair:
		if dc.MinBet == 0 {
			return e.bet(dc, 0.6)
		}
		return e.raise(dc, 0.8)
	case value.Rank == handeval.Pair:
		return e.callOrFold(dc, 0.4)
	default:
		return checkOrFold(dc)
	}
}

func checkOrFold(dc DecisionContext) int64 {
	if dc.MinBet == 0 {
		return 0
	}
	return -1
}

func (e *TabularEngine) callOrFold(dc DecisionContext, maxRatio float64) int64 {
	if dc.MinBet == 0 {
		return 0
	}
	pot := dc.PotTotal
	if pot < 1 {
		pot = 1
	}
	if float64(dc.MinBet) <= float64(pot)*maxRatio {
		return dc.MinBet
	}
	return -1
}

func (e *TabularEngine) bet(dc DecisionContext, fraction float64) int64 {
	pot := dc.PotTotal
	if pot < 1 {
		pot = 1
	}
	size := int64(float64(pot) * fraction)
	if size < 1 {
		size = 1
	}
	return clampBet(dc, size)
}

func (e *TabularEngine) raise(dc DecisionContext, fraction float64) int64 {
	pot := dc.PotTotal
	if pot < 1 {
		pot = 1
	}
	size := int64(float64(pot) * fraction)
	if dc.MinBet > 0 && dc.MinBet*2 > size {
		size = dc.MinBet * 2
	}
	if size < 1 {
		size = 1
	}
	return clampBet(dc, size)
}

func clampBet(dc DecisionContext, size int64) int64 {
	if size < dc.MinBet {
		size = dc.MinBet
	}
	if size > dc.MaxBet {
		size = dc.MaxBet
	}
	return size
}
