package holdem

import "github.com/holdempoker/tableserver/internal/bet"

// Stats accumulates the per-hand counters spec.md §4.1/§4.7 folds into
// player_lifetime_stats at hand end: voluntarily-put-money-in-pot,
// pre-flop raise, three-bet, aggression counts, and showdown participation.
type Stats struct {
	VPIP           bool
	PFR            bool
	ThreeBet       bool
	AggBets        int
	AggCalls       int
	WentToShowdown bool
	WonShowdown    bool

	raisesThisStreet int
}

// Record folds one resolved action into the running counters. street is
// tracked only to gate VPIP/PFR/ThreeBet to the pre-flop street, matching
// poker_game_holdem.py's action-logging convention. An all-in that only
// covers (or falls short of) the call buckets as a call; an all-in that
// exceeds it is a raise (spec.md §4.7: AGG_BETS counts raises, AGG_CALLS
// counts calls, and an all-in is whichever of the two it actually was).
func (s *Stats) Record(result bet.Result, street Phase) {
	switch result {
	case bet.ResultCall, bet.ResultAllIn:
		s.AggCalls++
		if street == PhasePreflopBet {
			s.VPIP = true
		}
	case bet.ResultRaise, bet.ResultAllInRaise:
		s.AggBets++
		if street == PhasePreflopBet {
			s.VPIP = true
			s.PFR = true
			s.raisesThisStreet++
			if s.raisesThisStreet >= 2 {
				s.ThreeBet = true
			}
		}
	}
}
