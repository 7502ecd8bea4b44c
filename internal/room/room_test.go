package room

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdempoker/tableserver/internal/broker"
	"github.com/holdempoker/tableserver/internal/holdem"
	"github.com/holdempoker/tableserver/internal/player"
)

func newRoomPlayer(t *testing.T, id string, money int64) *player.Server {
	t.Helper()
	p, err := player.New(id, id, money, nil)
	require.NoError(t, err)
	return player.NewServer(p, broker.NewBotChannel(), nil)
}

func TestJoinSeatsFirstFreeSeatAndOwner(t *testing.T) {
	var events []Event
	r := New("r1", false, 3, quartz.NewMock(t), Hooks{Broadcast: func(e Event) { events = append(events, e) }})

	a := newRoomPlayer(t, "a", 1000)
	require.NoError(t, r.Join(a))
	assert.Equal(t, "a", r.owner)
	assert.Equal(t, 1, r.PlayerCount())
	require.Len(t, events, 1)
	assert.Equal(t, "player-added", events[0].Type)
}

func TestJoinRejectsWhenFull(t *testing.T) {
	r := New("r1", false, 1, quartz.NewMock(t), Hooks{})
	require.NoError(t, r.Join(newRoomPlayer(t, "a", 1000)))
	err := r.Join(newRoomPlayer(t, "b", 1000))
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestReconnectPreservesMoneyAndReplaysEvents(t *testing.T) {
	r := New("r1", false, 2, quartz.NewMock(t), Hooks{})
	require.NoError(t, r.Join(newRoomPlayer(t, "a", 2340)))

	r.mu.Lock()
	r.broadcastLocked(Event{Type: "game-update", Payload: "flop dealt", Target: "a"})
	r.mu.Unlock()

	reconnecting := newRoomPlayer(t, "a", 3000) // stale DB snapshot
	require.NoError(t, r.Join(reconnecting))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, int64(2340), r.players["a"].Money, "reconnect must not overwrite in-memory stack with the stale snapshot")
}

func TestLeavePromotesEarliestRemainingOwner(t *testing.T) {
	r := New("r1", false, 3, quartz.NewMock(t), Hooks{})
	require.NoError(t, r.Join(newRoomPlayer(t, "a", 1000)))
	require.NoError(t, r.Join(newRoomPlayer(t, "b", 1000)))

	require.NoError(t, r.Leave("a"))
	assert.Equal(t, "b", r.owner)
	assert.Equal(t, 1, r.PlayerCount())
}

func TestJoinFiresOnJoinHookOnlyOnFirstSeating(t *testing.T) {
	var joined []string
	hooks := Hooks{OnJoin: func(p *player.Server) { joined = append(joined, p.ID) }}
	r := New("r1", false, 2, quartz.NewMock(t), hooks)

	require.NoError(t, r.Join(newRoomPlayer(t, "a", 1000)))
	assert.Equal(t, []string{"a"}, joined)

	// Reconnect must not re-fire the join hook (it would re-run the daily
	// reset check against a player already seated this session).
	require.NoError(t, r.Join(newRoomPlayer(t, "a", 1000)))
	assert.Equal(t, []string{"a"}, joined)
}

func TestRemoveBotByIDRequiresOwnerAndBotSeat(t *testing.T) {
	r := New("r1", false, 3, quartz.NewMock(t), Hooks{})
	require.NoError(t, r.Join(newRoomPlayer(t, "a", 1000)))
	bot := newRoomPlayer(t, "bot1", 1000)
	require.NoError(t, r.AddBot("a", 1, bot))

	assert.ErrorIs(t, r.RemoveBotByID("not-owner", "bot1"), ErrNotOwner)
	assert.ErrorIs(t, r.RemoveBotByID("a", "a"), ErrNotBotSeat, "a human seat can't be removed as a bot")

	require.NoError(t, r.RemoveBotByID("a", "bot1"))
	assert.Equal(t, 1, r.PlayerCount())
}

func TestAddBotRequiresOwner(t *testing.T) {
	r := New("r1", false, 3, quartz.NewMock(t), Hooks{})
	require.NoError(t, r.Join(newRoomPlayer(t, "a", 1000)))

	bot := newRoomPlayer(t, "bot1", 1000)
	err := r.AddBot("not-owner", 1, bot)
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, r.AddBot("a", 1, bot))
	assert.Equal(t, 2, r.PlayerCount())
}

func TestRunOnceSkipsWhenNotAllReady(t *testing.T) {
	r := New("r1", false, 2, quartz.NewMock(t), Hooks{})
	require.NoError(t, r.Join(newRoomPlayer(t, "a", 1000)))
	require.NoError(t, r.Join(newRoomPlayer(t, "b", 1000)))

	played, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, played)
}

func TestRunOncePlaysHandWhenReady(t *testing.T) {
	var calledWith []*holdem.Seat
	hooks := Hooks{
		PlayHand: func(ctx context.Context, seats []*holdem.Seat, dealerIdx int) (*holdem.Result, error) {
			calledWith = seats
			return &holdem.Result{}, nil
		},
	}
	r := New("r1", false, 2, quartz.NewMock(t), hooks)
	a := newRoomPlayer(t, "a", 1000)
	b := newRoomPlayer(t, "b", 1000)
	a.Ready = true
	b.Ready = true
	require.NoError(t, r.Join(a))
	require.NoError(t, r.Join(b))

	played, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, played)
	require.Len(t, calledWith, 2)

	// Ready flags must reset after the hand.
	assert.False(t, a.Ready)
	assert.False(t, b.Ready)
}

func TestFinalHandsCountdown(t *testing.T) {
	var events []Event
	r := New("r1", false, 2, quartz.NewMock(t), Hooks{Broadcast: func(e Event) { events = append(events, e) }})
	a := newRoomPlayer(t, "a", 1000)
	require.NoError(t, r.Join(a))

	require.NoError(t, r.StartFinalHands("a"))
	found := false
	for _, e := range events {
		if e.Type == "final-hands-started" {
			found = true
		}
	}
	assert.True(t, found)

	err := r.StartFinalHands("someone-else")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestPingAllRemovesPlayerAfterGraceFailure(t *testing.T) {
	clock := quartz.NewMock(t)
	r := New("r1", false, 2, clock, Hooks{})
	require.NoError(t, r.Join(newRoomPlayer(t, "a", 1000)))

	ping := func(ctx context.Context, p *player.Server) bool { return false }

	done := make(chan struct{})
	go func() {
		r.PingAll(context.Background(), ping, 10*time.Millisecond, 10*time.Millisecond)
		close(done)
	}()

	// Let both ping attempts and the grace sleep elapse; advancing the mock
	// clock unblocks the grace-period wait deterministically.
	time.Sleep(5 * time.Millisecond)
	clock.Advance(10 * time.Millisecond).MustWait(context.Background())
	<-done

	assert.Equal(t, 0, r.PlayerCount())
}
