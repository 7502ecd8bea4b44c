package holdem

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdempoker/tableserver/internal/bet"
	"github.com/holdempoker/tableserver/internal/cards"
	"github.com/holdempoker/tableserver/internal/player"
)

func newTestPlayer(t *testing.T, id string, money int64) *player.Server {
	t.Helper()
	p, err := player.New(id, id, money, nil)
	require.NoError(t, err)
	return player.NewServer(p, nil, nil)
}

func newTestDeck() *cards.Deck {
	return cards.New(rand.New(rand.NewSource(1)))
}

func baseConfig(t *testing.T, request bet.ActionRequest) Config {
	t.Helper()
	return Config{
		SmallBlind:       5,
		BigBlind:         10,
		Clock:            quartz.NewMock(t),
		BetTimeout:       20 * time.Second,
		TimeoutTolerance: 2 * time.Second,
		WaitAfterStreet:  0,
		RequestAction:    request,
	}
}

// Scenario 1 (spec): heads-up walk, A folds pre-flop. A(3000,SB=5) vs
// B(3000,BB=10); expect A=2995, B=3005.
func TestHeadsUpWalkAFolds(t *testing.T) {
	a := newTestPlayer(t, "A", 3000)
	b := newTestPlayer(t, "B", 3000)

	request := func(ctx context.Context, playerID string, toCall, minRaise int64, deadline time.Time) (int64, error) {
		if playerID == "A" {
			return -1, nil // explicit fold
		}
		return toCall, nil
	}

	cfg := baseConfig(t, request)
	hand := New(cfg, []*Seat{{Server: a}, {Server: b}}, 0, newTestDeck())

	result, err := hand.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(2995), a.Money)
	assert.Equal(t, int64(3005), b.Money)
}

// Scenario 2 (spec): all-in showdown. A(100) vs B(1000), blinds 5/10,
// dealer=A. A shoves 100 pre-flop, B calls. Expect the higher hand to win
// the 200 main pot — here we only assert the chip-conservation invariant
// plus that one full stack move happened, since hole cards are random.
func TestAllInShowdownChipConservation(t *testing.T) {
	a := newTestPlayer(t, "A", 100)
	b := newTestPlayer(t, "B", 1000)

	request := func(ctx context.Context, playerID string, toCall, minRaise int64, deadline time.Time) (int64, error) {
		// Both players shove/call their full stack.
		if playerID == "A" {
			return 100, nil
		}
		return toCall, nil
	}

	cfg := baseConfig(t, request)
	hand := New(cfg, []*Seat{{Server: a}, {Server: b}}, 0, newTestDeck())

	result, err := hand.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(1100), a.Money+b.Money, "chip conservation: no rake")
	assert.Len(t, result.Awards, 1, "single main pot, no side pot possible with equal all-in amounts")
}

func TestEarlyEndAwardsEntirePotToLastPlayer(t *testing.T) {
	a := newTestPlayer(t, "A", 500)
	b := newTestPlayer(t, "B", 500)
	c := newTestPlayer(t, "C", 500)

	request := func(ctx context.Context, playerID string, toCall, minRaise int64, deadline time.Time) (int64, error) {
		if playerID == "B" || playerID == "C" {
			return -1, nil // explicit fold, regardless of toCall
		}
		return toCall, nil
	}

	cfg := baseConfig(t, request)
	hand := New(cfg, []*Seat{{Server: a}, {Server: b}, {Server: c}}, 0, newTestDeck())

	result, err := hand.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1500), a.Money+b.Money+c.Money)
	require.Len(t, result.Awards, 1)
	assert.Equal(t, "A", result.Awards[0].PlayerID)
}

func TestAssignPositionsHeadsUp(t *testing.T) {
	a := &Seat{Server: newTestPlayer(t, "A", 1000)}
	b := &Seat{Server: newTestPlayer(t, "B", 1000)}
	assignPositions([]*Seat{a, b}, 0)
	assert.Equal(t, "SB", a.Position)
	assert.Equal(t, "BB", b.Position)
}

func TestAssignPositionsThreeHanded(t *testing.T) {
	a := &Seat{Server: newTestPlayer(t, "A", 1000)}
	b := &Seat{Server: newTestPlayer(t, "B", 1000)}
	c := &Seat{Server: newTestPlayer(t, "C", 1000)}
	assignPositions([]*Seat{a, b, c}, 1) // dealer is seat b
	assert.Equal(t, "BTN", b.Position)
	assert.Equal(t, "SB", c.Position)
	assert.Equal(t, "BB", a.Position)
}
