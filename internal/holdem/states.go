package holdem

import (
	"github.com/holdempoker/tableserver/internal/bet"
	"github.com/holdempoker/tableserver/internal/bot"
	"github.com/holdempoker/tableserver/internal/handeval"
	"github.com/holdempoker/tableserver/internal/statemachine"
)

func stateInit(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseInit
	h.deck.Shuffle()
	h.community = nil
	if cb != nil {
		cb(string(PhaseInit), statemachine.Entered)
	}
	return stateBlinds
}

// stateBlinds posts small and big blinds. Heads-up: dealer posts small,
// the other seat posts big.
func stateBlinds(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseBlinds
	live := h.liveSeats()
	if len(live) < 2 {
		return stateEarlyEnd
	}

	dealerLiveIdx := h.dealerLiveIndex(live)

	var sbSeat, bbSeat *Seat
	if len(live) == 2 {
		sbSeat, bbSeat = seatAt(live, dealerLiveIdx, 0), seatAt(live, dealerLiveIdx, 1)
	} else {
		sbSeat, bbSeat = seatAt(live, dealerLiveIdx, 1), seatAt(live, dealerLiveIdx, 2)
	}

	h.postBlind(sbSeat, h.cfg.SmallBlind, "small_blind")
	h.postBlind(bbSeat, h.cfg.BigBlind, "big_blind")

	if cb != nil {
		cb(string(PhaseBlinds), statemachine.Entered)
	}
	return stateDealHole
}

// dealerLiveIndex finds the dealer seat's index within the live slice,
// falling back to 0 if the dealer itself isn't live (e.g. busted out).
func (h *Hand) dealerLiveIndex(live []*Seat) int {
	dealerServer := h.seats[h.dealerIdx].Server
	for i, s := range live {
		if s.Server == dealerServer {
			return i
		}
	}
	return 0
}

// seatAt returns the seat `offset` positions clockwise from dealerLiveIdx
// within the live slice.
func seatAt(live []*Seat, dealerLiveIdx, offset int) *Seat {
	return live[(dealerLiveIdx+offset)%len(live)]
}

func (h *Hand) postBlind(seat *Seat, amount int64, actionType string) {
	if seat == nil || seat.Server == nil {
		return
	}
	id := seat.Server.ID
	stack := h.stacks[id]
	owed := amount
	if owed > stack {
		owed = stack
		h.allIn[id] = true
	}
	h.stacks[id] -= owed
	h.pot.AddBet(id, owed)
	h.actionNum++
	if h.cfg.OnAction != nil {
		h.cfg.OnAction(id, bet.ResultCall, owed, h.pot.Total()-owed, h.actionNum, PhaseBlinds, actionType)
	}
}

func stateDealHole(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseDealHole
	for _, s := range h.seats {
		if s.Server == nil {
			continue
		}
		hole, ok := h.deck.PopCards(2)
		if !ok {
			return stateEarlyEnd
		}
		s.Server.Hole = hole
		if h.cfg.OnHoleCardsDealt != nil {
			h.cfg.OnHoleCardsDealt(s.Server.ID, hole)
		}
	}
	if cb != nil {
		cb(string(PhaseDealHole), statemachine.Entered)
	}
	return statePreflopBet
}

func statePreflopBet(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhasePreflopBet
	if cb != nil {
		cb(string(PhasePreflopBet), statemachine.Entered)
	}
	if h.nonFoldedCount() <= 1 {
		return stateEarlyEnd
	}
	h.runBettingRound(h.preflopStartOffset())
	if h.nonFoldedCount() <= 1 {
		return stateEarlyEnd
	}
	return stateFlopDeal
}

func stateFlopDeal(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseFlopDeal
	cardsOut, ok := h.deck.PopCards(3)
	if !ok {
		return stateEarlyEnd
	}
	h.community = append(h.community, cardsOut...)
	h.pot.ResetCurrentBets()
	if h.cfg.OnCommunityDealt != nil {
		h.cfg.OnCommunityDealt(PhaseFlopDeal, h.community)
	}
	h.pause()
	if cb != nil {
		cb(string(PhaseFlopDeal), statemachine.Entered)
	}
	return stateFlopBet
}

func stateFlopBet(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseFlopBet
	if cb != nil {
		cb(string(PhaseFlopBet), statemachine.Entered)
	}
	if h.nonFoldedCount() <= 1 {
		return stateEarlyEnd
	}
	if !h.allPlayersAllIn() {
		h.runBettingRound(1)
	}
	if h.nonFoldedCount() <= 1 {
		return stateEarlyEnd
	}
	return stateTurnDeal
}

func stateTurnDeal(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseTurnDeal
	cardsOut, ok := h.deck.PopCards(1)
	if !ok {
		return stateEarlyEnd
	}
	h.community = append(h.community, cardsOut...)
	h.pot.ResetCurrentBets()
	if h.cfg.OnCommunityDealt != nil {
		h.cfg.OnCommunityDealt(PhaseTurnDeal, h.community)
	}
	h.pause()
	if cb != nil {
		cb(string(PhaseTurnDeal), statemachine.Entered)
	}
	return stateTurnBet
}

func stateTurnBet(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseTurnBet
	if cb != nil {
		cb(string(PhaseTurnBet), statemachine.Entered)
	}
	if h.nonFoldedCount() <= 1 {
		return stateEarlyEnd
	}
	if !h.allPlayersAllIn() {
		h.runBettingRound(1)
	}
	if h.nonFoldedCount() <= 1 {
		return stateEarlyEnd
	}
	return stateRiverDeal
}

func stateRiverDeal(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseRiverDeal
	cardsOut, ok := h.deck.PopCards(1)
	if !ok {
		return stateEarlyEnd
	}
	h.community = append(h.community, cardsOut...)
	h.pot.ResetCurrentBets()
	if h.cfg.OnCommunityDealt != nil {
		h.cfg.OnCommunityDealt(PhaseRiverDeal, h.community)
	}
	h.pause()
	if cb != nil {
		cb(string(PhaseRiverDeal), statemachine.Entered)
	}
	return stateRiverBet
}

func stateRiverBet(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseRiverBet
	if cb != nil {
		cb(string(PhaseRiverBet), statemachine.Entered)
	}
	if h.nonFoldedCount() <= 1 {
		return stateEarlyEnd
	}
	if !h.allPlayersAllIn() {
		h.runBettingRound(1)
	}
	if h.nonFoldedCount() <= 1 {
		return stateEarlyEnd
	}
	return stateShowdown
}

func stateShowdown(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseShowdown
	if cb != nil {
		cb(string(PhaseShowdown), statemachine.Entered)
	}

	h.pot.CreateSidePots(h.folded)
	hands := make(map[string]handeval.Value, len(h.seats))
	for _, s := range h.seats {
		if s.Server == nil || h.folded[s.Server.ID] {
			continue
		}
		v, err := handeval.Evaluate(s.Server.Hole, h.community)
		if err != nil {
			continue
		}
		hands[s.Server.ID] = v
		h.stats[s.Server.ID].WentToShowdown = true
	}

	awards := h.pot.Distribute(hands, h.folded, h.seatOrder())
	for _, a := range awards {
		if hv, ok := hands[a.PlayerID]; ok {
			_ = hv
			h.stats[a.PlayerID].WonShowdown = true
		}
	}

	h.settle(awards)
	return stateSettle
}

func stateEarlyEnd(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseEarlyEnd
	if cb != nil {
		cb(string(PhaseEarlyEnd), statemachine.Entered)
	}

	h.pot.CreateSidePots(h.folded)
	var winner *Seat
	for _, s := range h.seats {
		if s.Server != nil && !h.folded[s.Server.ID] {
			winner = s
			break
		}
	}
	var awards []bet.PotAward
	if winner != nil {
		var total int64
		for _, p := range h.pot.Pots {
			total += p.Amount
		}
		if total > 0 {
			awards = append(awards, bet.PotAward{PlayerID: winner.Server.ID, Amount: total})
		}
	}
	h.settle(awards)
	return stateSettle
}

func stateSettle(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseSettle
	if cb != nil {
		cb(string(PhaseSettle), statemachine.Entered)
	}
	return stateDone
}

func stateDone(h *Hand, cb func(string, statemachine.Event)) Fn {
	h.phase = PhaseDone
	if cb != nil {
		cb(string(PhaseDone), statemachine.Entered)
	}
	return nil
}

func (h *Hand) settle(awards []bet.PotAward) {
	for _, a := range awards {
		h.stacks[a.PlayerID] += a.Amount
	}
	for _, s := range h.seats {
		if s.Server == nil {
			continue
		}
		s.Server.Money = h.stacks[s.Server.ID]
	}
	h.result = &Result{
		Board:  h.community,
		Awards: awards,
		Stats:  h.stats,
	}
}

// seatOrder lists player IDs starting from the seat after the dealer, for
// Distribute's earliest-seat-from-dealer tie-break.
func (h *Hand) seatOrder() []string {
	n := len(h.seats)
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		s := h.seats[(h.dealerIdx+i)%n]
		if s.Server != nil {
			out = append(out, s.Server.ID)
		}
	}
	return out
}

// preflopStartOffset returns the dealer-relative offset of the first
// player to act pre-flop: the dealer itself (0) heads-up, since the dealer
// posts the small blind and acts first; otherwise the seat after the big
// blind (3: dealer, SB, BB, UTG).
func (h *Hand) preflopStartOffset() int {
	occupied := 0
	for _, s := range h.seats {
		if s.Server != nil {
			occupied++
		}
	}
	if occupied == 2 {
		return 0
	}
	return 3
}

func (h *Hand) allPlayersAllIn() bool {
	live := 0
	notAllIn := 0
	for _, s := range h.seats {
		if s.Server == nil || h.folded[s.Server.ID] {
			continue
		}
		live++
		if !h.allIn[s.Server.ID] {
			notAllIn++
		}
	}
	return live > 0 && notAllIn == 0
}

// runBettingRound runs one betting round starting `startOffset` seats after
// the dealer (3 == after the big blind, pre-flop; 1 == after the dealer,
// post-flop), folding/all-in tracking mirrored back onto h.folded/h.allIn.
func (h *Hand) runBettingRound(startOffset int) {
	n := len(h.seats)
	if n == 0 {
		return
	}

	var order []*bet.Seat
	byID := make(map[string]*Seat, n)
	for i := 0; i < n; i++ {
		s := h.seats[(h.dealerIdx+startOffset+i)%n]
		if s.Server == nil {
			continue
		}
		byID[s.Server.ID] = s
		order = append(order, &bet.Seat{
			PlayerID: s.Server.ID,
			Stack:    h.stacks[s.Server.ID],
			Folded:   h.folded[s.Server.ID],
			AllIn:    h.allIn[s.Server.ID],
		})
	}

	rounder := bet.NewRounder(h.cfg.Clock, h.cfg.BetTimeout, h.cfg.TimeoutTolerance, h.cfg.BigBlind,
		h.requestAction(byID),
		func(playerID string, result bet.Result, amount, potBefore int64, actionNum int) {
			h.actionNum = actionNum
			h.stats[playerID].Record(result, h.phase)
			h.history = append(h.history, bot.ActionRecord{
				PlayerID:   playerID,
				ActionType: result.String(),
				Amount:     amount,
				Street:     streetFor(h.phase),
			})
			if h.cfg.OnAction != nil {
				h.cfg.OnAction(playerID, result, amount, potBefore, actionNum, h.phase, "")
			}
		})

	next, _ := rounder.Run(h.ctx, order, h.pot, h.actionNum)
	h.actionNum = next

	for _, bs := range order {
		h.stacks[bs.PlayerID] = bs.Stack
		if bs.Folded {
			h.folded[bs.PlayerID] = true
		}
		if bs.AllIn {
			h.allIn[bs.PlayerID] = true
		}
	}
}

func (h *Hand) pause() {
	if h.cfg.WaitAfterStreet <= 0 {
		return
	}
	select {
	case <-h.ctx.Done():
	case <-h.cfg.Clock.After(h.cfg.WaitAfterStreet):
	}
}
