package gameserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/decred/slog"

	"github.com/holdempoker/tableserver/internal/player"
	"github.com/holdempoker/tableserver/internal/room"
	"github.com/holdempoker/tableserver/internal/store"
)

// TableSpec is one configured table's shape (room_size, blinds, visibility),
// the pieces EnsureRoom needs to build a fresh Room on first reference.
type TableSpec struct {
	RoomSize   int
	SmallBlind int64
	BigBlind   int64
	Private    bool
}

// RoomRegistry implements gameserver.Rooms: it lazily builds a *room.Room
// per table ID, wires its Hooks (broadcast fan-out to every seated
// player's channel, wallet persistence on leave, and a Dealer-driven
// PlayHand), and starts its hand loop in a background goroutine the first
// time the room is referenced.
type RoomRegistry struct {
	mu     sync.Mutex
	rooms  map[string]*room.Room
	ctx    context.Context
	clock  quartz.Clock
	store  store.Store
	log    slog.Logger
	tables map[string]TableSpec
	defaults TableSpec
	initMoney int64

	pingDeadline time.Duration
	pingGrace    time.Duration
}

// NewRoomRegistry builds a registry whose rooms run for the lifetime of
// ctx (cancel it to stop every room's hand loop). initMoney is spec.md
// §4.3/§4.8's INIT_MONEY, the auto-topup/daily-reset target every Dealer
// and join-time reset uses.
func NewRoomRegistry(ctx context.Context, clock quartz.Clock, st store.Store, tables map[string]TableSpec, defaults TableSpec, initMoney int64, pingDeadline, pingGrace time.Duration, log slog.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms:        make(map[string]*room.Room),
		ctx:          ctx,
		clock:        clock,
		store:        st,
		log:          log,
		tables:       tables,
		defaults:     defaults,
		initMoney:    initMoney,
		pingDeadline: pingDeadline,
		pingGrace:    pingGrace,
	}
}

// EnsureRoom returns the room for roomID, creating and starting it on
// first reference.
func (rr *RoomRegistry) EnsureRoom(ctx context.Context, roomID string) (*room.Room, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rm, ok := rr.rooms[roomID]; ok {
		return rm, nil
	}

	spec, ok := rr.tables[roomID]
	if !ok {
		spec = rr.defaults
	}
	if spec.RoomSize == 0 {
		return nil, fmt.Errorf("gameserver: table %q has no configured room size", roomID)
	}

	dealer := &Dealer{
		Store:            rr.store,
		Clock:            rr.clock,
		SmallBlind:       spec.SmallBlind,
		BigBlind:         spec.BigBlind,
		BetTimeout:       15 * time.Second,
		TimeoutTolerance: 2 * time.Second,
		WaitAfterStreet:  2 * time.Second,
		InitMoney:        rr.initMoney,
		Log:              rr.log,
	}

	var rm *room.Room
	broadcast := func(ev room.Event) {
		rr.fanOut(rm, ev)
	}
	hooks := room.Hooks{
		Broadcast:      broadcast,
		PersistOnLeave: rr.persistOnLeave,
		OnJoin:         rr.onJoin,
		PlayHand:       dealer.PlayHand(roomID, broadcast),
		Log:            rr.log,
	}
	rm = room.New(roomID, spec.Private, spec.RoomSize, rr.clock, hooks)
	rr.rooms[roomID] = rm

	go rm.RunLoop(rr.ctx, DefaultPing, rr.pingDeadline, rr.pingGrace)

	return rm, nil
}

// fanOut delivers one broadcast event to every seated player, honoring
// Event.Target when set (spec.md §4.4's targeted-replay semantics apply to
// live broadcasts too, not just reconnect replay).
func (rr *RoomRegistry) fanOut(rm *room.Room, ev room.Event) {
	for _, p := range rm.Players() {
		if ev.Target != "" && ev.Target != p.ID {
			continue
		}
		p.Send(rr.ctx, ev.Payload)
	}
}

// onJoin runs check_and_reset_daily_chips for a player taking a seat for
// the first time (spec.md §4.8: invoked "at login and at every hand
// join"), syncing the in-memory stack to any reset balance. Room.Join only
// calls this on first seating, never on reconnect, so it can't stomp the
// in-memory stack player.Server.UpdateChannel is careful to preserve.
func (rr *RoomRegistry) onJoin(p *player.Server) {
	if rr.store == nil {
		return
	}
	balance, err := rr.store.CheckAndResetDailyChips(rr.ctx, p.ID, rr.initMoney, rr.clock.Now())
	if err != nil {
		if rr.log != nil {
			rr.log.Errorf("gameserver: daily reset for %s on join: %v", p.ID, err)
		}
		return
	}
	p.Money = balance
}

// persistOnLeave writes a departing player's final stack back to their
// wallet (spec.md §6: the in-memory stack is authoritative between hands,
// the wallet row is the at-rest copy).
func (rr *RoomRegistry) persistOnLeave(p *player.Server) {
	if rr.store == nil {
		return
	}
	if err := rr.store.UpdatePlayerWallet(rr.ctx, p.ID, p.Money); err != nil {
		if rr.log != nil {
			rr.log.Errorf("gameserver: persist wallet for %s on leave: %v", p.ID, err)
		}
	}
}

var (
	_ Rooms      = (*RoomRegistry)(nil)
	_ BotFactory = (*Bots)(nil)
)
