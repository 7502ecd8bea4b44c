// Package bet implements pot bookkeeping (side-pot construction and
// distribution) and the turn-driven betting round (BetRounder/BetHandler).
package bet

import (
	"sort"

	"github.com/holdempoker/tableserver/internal/handeval"
)

// Pot is one pot of chips with the set of players eligible to win it.
type Pot struct {
	Amount   int64
	Eligible map[string]bool
}

func newPot() *Pot {
	return &Pot{Eligible: make(map[string]bool)}
}

// Manager tracks the current hand's pot(s) and every player's
// current-round / total-hand contributions.
type Manager struct {
	Pots        []*Pot
	CurrentBets map[string]int64
	TotalBets   map[string]int64
}

// NewManager starts a hand with a single empty main pot.
func NewManager() *Manager {
	return &Manager{
		Pots:        []*Pot{newPot()},
		CurrentBets: make(map[string]int64),
		TotalBets:   make(map[string]int64),
	}
}

// AddBet records playerID contributing amount, provisionally into the main
// pot (CreateSidePots repartitions it once the hand needs side pots).
func (m *Manager) AddBet(playerID string, amount int64) {
	m.CurrentBets[playerID] += amount
	m.TotalBets[playerID] += amount
	m.Pots[0].Amount += amount
	m.Pots[0].Eligible[playerID] = true
}

// ResetCurrentBets clears per-round contributions at the start of a new
// betting round; TotalBets (used by CreateSidePots) is untouched.
func (m *Manager) ResetCurrentBets() {
	m.CurrentBets = make(map[string]int64)
}

// Total sums every pot.
func (m *Manager) Total() int64 {
	var total int64
	for _, p := range m.Pots {
		total += p.Amount
	}
	return total
}

// CreateSidePots partitions TotalBets by ascending all-in levels into one
// pot per level, each eligible to every non-folded player who contributed
// at least that level, plus a final pot for contributions above the
// highest level if any player put in more.
func (m *Manager) CreateSidePots(folded map[string]bool) {
	levelSet := make(map[int64]bool)
	for _, bet := range m.TotalBets {
		if bet > 0 {
			levelSet[bet] = true
		}
	}
	levels := make([]int64, 0, len(levelSet))
	for lvl := range levelSet {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	if len(levels) <= 1 {
		return
	}

	var pots []*Pot
	var prev int64

	for i, level := range levels {
		pot := newPot()
		for playerID, total := range m.TotalBets {
			if total >= level && !folded[playerID] {
				pot.Eligible[playerID] = true
			}
			if total > prev {
				contribution := total
				if total > level {
					contribution = level
				}
				pot.Amount += contribution - prev
			}
		}
		pots = append(pots, pot)
		prev = level

		if i == len(levels)-1 {
			var hasHigher bool
			for _, total := range m.TotalBets {
				if total > level {
					hasHigher = true
					break
				}
			}
			if hasHigher {
				final := newPot()
				for playerID, total := range m.TotalBets {
					if total > level && !folded[playerID] {
						final.Eligible[playerID] = true
						final.Amount += total - level
					}
				}
				pots = append(pots, final)
			}
		}
	}

	m.Pots = pots
}

// ReturnUncalledBet refunds the uncalled portion of the current round's
// highest bet to the player who made it. Returns the refunded player ID
// and amount (empty ID if nothing was uncalled).
func (m *Manager) ReturnUncalledBet() (playerID string, amount int64) {
	var highest, secondHighest int64
	var highestPlayer string

	for id, bet := range m.CurrentBets {
		if bet > highest {
			secondHighest = highest
			highest = bet
			highestPlayer = id
		} else if bet > secondHighest {
			secondHighest = bet
		}
	}

	if highest <= secondHighest || highestPlayer == "" {
		return "", 0
	}

	uncalled := highest - secondHighest
	m.Pots[0].Amount -= uncalled
	m.CurrentBets[highestPlayer] -= uncalled
	m.TotalBets[highestPlayer] -= uncalled
	return highestPlayer, uncalled
}

// PotAward is one player's share of one pot, for persistence and
// broadcast.
type PotAward struct {
	PlayerID string
	Amount   int64
}

// Distribute splits every pot among its eligible non-folded players with
// the best hand; ties split evenly with the remainder going to the player
// seated earliest after the dealer (seatOrder lists player IDs starting
// from the seat immediately after the dealer). hands need only contain
// entries for non-folded players.
func (m *Manager) Distribute(hands map[string]handeval.Value, folded map[string]bool, seatOrder []string) []PotAward {
	seatRank := make(map[string]int, len(seatOrder))
	for i, id := range seatOrder {
		seatRank[id] = i
	}

	var awards []PotAward
	for _, pot := range m.Pots {
		if pot.Amount == 0 {
			continue
		}
		var winners []string
		var best *handeval.Value

		for playerID := range pot.Eligible {
			if folded[playerID] {
				continue
			}
			hv, ok := hands[playerID]
			if !ok {
				continue
			}
			switch {
			case best == nil || handeval.Compare(hv, *best) > 0:
				b := hv
				best = &b
				winners = []string{playerID}
			case handeval.Compare(hv, *best) == 0:
				winners = append(winners, playerID)
			}
		}

		if len(winners) == 0 {
			continue
		}

		sort.Slice(winners, func(i, j int) bool { return seatRank[winners[i]] < seatRank[winners[j]] })

		share := pot.Amount / int64(len(winners))
		remainder := pot.Amount % int64(len(winners))
		for i, w := range winners {
			amount := share
			if i == 0 {
				amount += remainder
			}
			awards = append(awards, PotAward{PlayerID: w, Amount: amount})
		}
	}
	return awards
}
