// Package room implements GameRoom: seat management, join/leave and
// reconnect semantics, the ping/grace liveness loop, "final 10 hands" mode,
// bot seating, and the hand loop that drives internal/holdem once per
// rotation of the dealer button.
package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/decred/slog"

	"github.com/holdempoker/tableserver/internal/cards"
	"github.com/holdempoker/tableserver/internal/holdem"
	"github.com/holdempoker/tableserver/internal/player"
)

var (
	ErrRoomFull         = errors.New("room: no free seat")
	ErrUnknownPlayer    = errors.New("room: player not in room")
	ErrSeatOccupied     = errors.New("room: seat already occupied")
	ErrSeatEmpty        = errors.New("room: seat is empty")
	ErrNotOwner         = errors.New("room: only the owner may do that")
	ErrNotBotSeat       = errors.New("room: seat is not a bot")
)

// Event is a buffered broadcast/targeted message, replayed to a
// reconnecting player filtered by Target (spec.md §4.4).
type Event struct {
	Type    string
	Payload any
	Target  string // empty means "broadcast to everyone"
}

// Hooks lets the owner of a Room (internal/gameserver) observe and persist
// what happens without this package importing store/broker directly.
type Hooks struct {
	Broadcast        func(Event)
	PersistOnLeave    func(p *player.Server)
	// OnJoin fires once a newly-seated player is in the room, never on a
	// reconnect of an already-seated one (spec.md §4.8's daily-chip-reset
	// check is only meaningful the first time a player enters a hand).
	OnJoin            func(p *player.Server)
	PlayHand          func(ctx context.Context, seats []*holdem.Seat, dealerIdx int) (*holdem.Result, error)
	OnHandFinished    func(result *holdem.Result)
	Log               slog.Logger
}

// Room is one table: up to RoomSize seats, a join queue, and the hand loop.
type Room struct {
	ID      string
	Private bool
	Size    int

	mu         sync.Mutex
	seats      []string // player ID per seat, "" for empty
	players    map[string]*player.Server
	isBot      map[string]bool
	joinOrder  []string
	owner      string
	active     bool
	handInFlight bool
	dealerIdx  int

	finalCountdownActive bool
	finalHandsTotal       int
	currentHandCount      int

	events []Event

	clock quartz.Clock
	hooks Hooks
}

// New creates an empty room with `size` seats.
func New(id string, private bool, size int, clock quartz.Clock, hooks Hooks) *Room {
	return &Room{
		ID:        id,
		Private:   private,
		Size:      size,
		seats:     make([]string, size),
		players:   make(map[string]*player.Server),
		isBot:     make(map[string]bool),
		dealerIdx: -1,
		clock:     clock,
		hooks:     hooks,
	}
}

// Join seats an unknown player in the first free seat, or treats a known
// player ID as a reconnect: swap the channel, keep the in-memory stack, and
// replay this hand's buffered events filtered to that player.
func (r *Room) Join(p *player.Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.players[p.ID]; ok {
		existing.UpdateChannel(p.Channel())
		r.broadcastLocked(Event{Type: "player-rejoined", Payload: r.snapshotLocked(existing.ID)})
		r.replayLocked(existing)
		return nil
	}

	freeSeat := -1
	for i, id := range r.seats {
		if id == "" {
			freeSeat = i
			break
		}
	}
	if freeSeat == -1 {
		return ErrRoomFull
	}

	r.seats[freeSeat] = p.ID
	r.players[p.ID] = p
	r.joinOrder = append(r.joinOrder, p.ID)
	if r.owner == "" {
		r.owner = p.ID
	}

	if r.hooks.OnJoin != nil {
		r.hooks.OnJoin(p)
	}

	r.broadcastLocked(Event{Type: "player-added", Payload: r.snapshotLocked(p.ID)})
	return nil
}

// Leave persists the player's wallet, closes the channel, vacates the
// seat, and promotes the earliest remaining joiner if the owner left.
func (r *Room) Leave(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(playerID)
}

func (r *Room) leaveLocked(playerID string) error {
	p, ok := r.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}

	if r.hooks.PersistOnLeave != nil {
		r.hooks.PersistOnLeave(p)
	}
	p.Disconnect()

	for i, id := range r.seats {
		if id == playerID {
			r.seats[i] = ""
			break
		}
	}
	delete(r.players, playerID)
	delete(r.isBot, playerID)
	for i, id := range r.joinOrder {
		if id == playerID {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}

	if r.owner == playerID {
		if len(r.joinOrder) > 0 {
			r.owner = r.joinOrder[0]
		} else {
			r.owner = ""
		}
	}

	r.broadcastLocked(Event{Type: "player-removed", Payload: r.snapshotLocked(playerID)})
	return nil
}

// AddBot seats a bot at seatIndex (owner-only).
func (r *Room) AddBot(requesterID string, seatIndex int, bot *player.Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if requesterID != r.owner {
		return ErrNotOwner
	}
	if seatIndex < 0 || seatIndex >= len(r.seats) {
		return fmt.Errorf("room: seat %d out of range", seatIndex)
	}
	if r.seats[seatIndex] != "" {
		return ErrSeatOccupied
	}
	r.seats[seatIndex] = bot.ID
	r.players[bot.ID] = bot
	r.isBot[bot.ID] = true
	r.joinOrder = append(r.joinOrder, bot.ID)
	r.broadcastLocked(Event{Type: "player-added", Payload: r.snapshotLocked(bot.ID)})
	return nil
}

// RemoveBot removes the bot at seatIndex (owner-only).
func (r *Room) RemoveBot(requesterID string, seatIndex int) error {
	r.mu.Lock()
	if requesterID != r.owner {
		r.mu.Unlock()
		return ErrNotOwner
	}
	if seatIndex < 0 || seatIndex >= len(r.seats) {
		r.mu.Unlock()
		return fmt.Errorf("room: seat %d out of range", seatIndex)
	}
	id := r.seats[seatIndex]
	if id == "" || !r.isBot[id] {
		r.mu.Unlock()
		return ErrNotBotSeat
	}
	r.mu.Unlock()
	return r.Leave(id)
}

// RemoveBotByID removes a bot addressed by ID rather than seat (owner-only),
// the bot_id half of remove-bot's dual-addressing contract (spec.md
// §4.4/§6).
func (r *Room) RemoveBotByID(requesterID, botID string) error {
	r.mu.Lock()
	if requesterID != r.owner {
		r.mu.Unlock()
		return ErrNotOwner
	}
	if !r.isBot[botID] {
		r.mu.Unlock()
		return ErrNotBotSeat
	}
	r.mu.Unlock()
	return r.Leave(botID)
}

// snapshotLocked builds the room-update payload's player roster. Must hold
// r.mu.
func (r *Room) snapshotLocked(playerID string) map[string]any {
	ids := make([]string, len(r.seats))
	copy(ids, r.seats)
	return map[string]any{
		"room_id":    r.ID,
		"player_id":  playerID,
		"owner_id":   r.owner,
		"player_ids": ids,
	}
}

func (r *Room) broadcastLocked(ev Event) {
	if ev.Type != "game-over" {
		r.events = append(r.events, ev)
	} else {
		r.events = nil
	}
	if r.hooks.Broadcast != nil {
		r.hooks.Broadcast(ev)
	}
}

// replayLocked resends this hand's buffered events to a reconnecting
// player, filtered to events targeted at them or broadcast to everyone.
func (r *Room) replayLocked(p *player.Server) {
	for _, ev := range r.events {
		if ev.Target == "" || ev.Target == p.ID {
			p.Send(context.Background(), ev.Payload)
		}
	}
}

// Player looks up a seated player by ID (internal/gameserver uses this to
// deliver a room-control error back to the requester).
func (r *Room) Player(id string) (*player.Server, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	return p, ok
}

// Players returns a snapshot of every currently seated player.Server, used
// by the room's owner (internal/gameserver) to fan broadcast events out to
// each connected channel.
func (r *Room) Players() []*player.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*player.Server, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// AllReady reports whether every seated player has flagged ready.
func (r *Room) AllReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.seats {
		if id == "" {
			continue
		}
		if !r.players[id].Ready {
			return false
		}
	}
	return true
}

// PlayerCount reports how many seats are occupied.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.seats {
		if id != "" {
			n++
		}
	}
	return n
}

// PingFunc pings one player's channel, returning false on failure.
type PingFunc func(ctx context.Context, p *player.Server) bool

// PingAll pings every seated player with a grace period for reconnection
// (spec.md §4.4: 2s ping deadline, 3s reconnect grace, re-ping, then
// leave). Players that fail twice are removed from the room.
func (r *Room) PingAll(ctx context.Context, ping PingFunc, deadline, grace time.Duration) {
	r.mu.Lock()
	targets := make([]*player.Server, 0, len(r.players))
	for _, p := range r.players {
		targets = append(targets, p)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range targets {
		wg.Add(1)
		go func(p *player.Server) {
			defer wg.Done()
			r.pingOne(ctx, ping, p, deadline, grace)
		}(p)
	}
	wg.Wait()
}

func (r *Room) pingOne(ctx context.Context, ping PingFunc, p *player.Server, deadline, grace time.Duration) {
	pingCtx, cancel := context.WithTimeout(ctx, deadline)
	ok := ping(pingCtx, p)
	cancel()
	if ok {
		return
	}

	select {
	case <-r.clock.After(grace):
	case <-ctx.Done():
		return
	}

	r.mu.Lock()
	current, stillHere := r.players[p.ID]
	r.mu.Unlock()
	if !stillHere || current != p {
		return // reconnected under a new Server during the grace period
	}

	pingCtx2, cancel2 := context.WithTimeout(ctx, deadline)
	ok = ping(pingCtx2, p)
	cancel2()
	if !ok {
		_ = r.Leave(p.ID)
	}
}

// StartFinalHands begins the "final 10 hands" countdown; only the owner
// may start it.
func (r *Room) StartFinalHands(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if requesterID != r.owner {
		return ErrNotOwner
	}
	if r.finalCountdownActive {
		return nil
	}
	r.finalCountdownActive = true
	r.finalHandsTotal = 10
	r.currentHandCount = 0
	r.broadcastLocked(Event{Type: "final-hands-started", Payload: map[string]any{"countdown": r.finalHandsTotal}})
	return nil
}

// RunOnce runs at most one hand if the room is ready: rotates the dealer,
// builds the seat list, and calls Hooks.PlayHand. Returns false if the
// room isn't ready to play (not enough players, or not everyone ready).
func (r *Room) RunOnce(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if r.PlayerCountLocked() < 2 {
		r.mu.Unlock()
		return false, nil
	}
	if !r.allReadyLocked() {
		r.mu.Unlock()
		return false, nil
	}

	if r.finalCountdownActive {
		r.currentHandCount++
		if r.currentHandCount > r.finalHandsTotal {
			r.broadcastLocked(Event{Type: "final-hands-finished"})
			r.finalCountdownActive = false
			r.currentHandCount = 0
			r.mu.Unlock()
			return false, nil
		}
		r.broadcastLocked(Event{Type: "final-hands-update", Payload: map[string]any{
			"current_hand": r.currentHandCount,
			"total_hands":  r.finalHandsTotal,
		}})
	}

	occupiedSeats := 0
	for _, id := range r.seats {
		if id != "" {
			occupiedSeats++
		}
	}
	if occupiedSeats == 0 {
		r.mu.Unlock()
		return false, nil
	}
	r.dealerIdx = (r.dealerIdx + 1) % len(r.seats)
	for r.seats[r.dealerIdx] == "" {
		r.dealerIdx = (r.dealerIdx + 1) % len(r.seats)
	}

	seats := make([]*holdem.Seat, len(r.seats))
	for i, id := range r.seats {
		if id == "" {
			seats[i] = &holdem.Seat{}
			continue
		}
		seats[i] = &holdem.Seat{Server: r.players[id]}
	}
	dealerIdx := r.dealerIdx
	r.handInFlight = true
	r.mu.Unlock()

	var result *holdem.Result
	var err error
	if r.hooks.PlayHand != nil {
		result, err = r.hooks.PlayHand(ctx, seats, dealerIdx)
	}

	r.mu.Lock()
	r.handInFlight = false
	for _, id := range r.seats {
		if id != "" {
			r.players[id].Ready = false
		}
	}
	r.broadcastLocked(Event{Type: "game-over"})
	r.mu.Unlock()

	if err != nil {
		return true, err
	}
	if r.hooks.OnHandFinished != nil && result != nil {
		r.hooks.OnHandFinished(result)
	}
	return true, nil
}

func (r *Room) PlayerCountLocked() int {
	n := 0
	for _, id := range r.seats {
		if id != "" {
			n++
		}
	}
	return n
}

func (r *Room) allReadyLocked() bool {
	for _, id := range r.seats {
		if id == "" {
			continue
		}
		if !r.players[id].Ready {
			return false
		}
	}
	return true
}

// Active reports whether RunLoop is currently driving this room.
func (r *Room) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// RunLoop drives the room's hand loop until the context is canceled or
// fewer than two players remain, per spec.md §4.4.
func (r *Room) RunLoop(ctx context.Context, ping PingFunc, pingDeadline, pingGrace time.Duration) {
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		r.PingAll(ctx, ping, pingDeadline, pingGrace)

		if r.PlayerCount() < 2 {
			return
		}
		if !r.AllReady() {
			select {
			case <-r.clock.After(2 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		played, err := r.RunOnce(ctx)
		if err != nil && r.hooks.Log != nil {
			r.hooks.Log.Errorf("room %s: hand error: %v", r.ID, err)
		}
		if !played {
			select {
			case <-r.clock.After(2 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// NewBotDeck is a convenience for callers building a fresh per-hand deck
// with a non-deterministic seed.
func NewBotDeck() *cards.Deck {
	return cards.New(rand.New(rand.NewSource(time.Now().UnixNano())))
}
