package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdempoker/tableserver/internal/cards"
)

func c(rank cards.Rank, suit cards.Suit) cards.Card { return cards.Card{Rank: rank, Suit: suit} }

func TestTabularPreflopPremiumRaises(t *testing.T) {
	e := NewTabularEngine()
	dc := DecisionContext{
		Street:   StreetPreflop,
		Hand:     []cards.Card{c(14, cards.Spades), c(14, cards.Hearts)}, // AA
		PotTotal: 30,
		MinBet:   20,
		MaxBet:   1000,
		ToCall:   0,
	}
	amount, err := e.Decide(context.Background(), dc)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, amount, dc.MinBet)
}

func TestTabularPreflopJunkFoldsToABet(t *testing.T) {
	e := NewTabularEngine()
	dc := DecisionContext{
		Street:   StreetPreflop,
		Hand:     []cards.Card{c(7, cards.Spades), c(2, cards.Hearts)}, // 72o
		PotTotal: 30,
		MinBet:   20,
		MaxBet:   1000,
		ToCall:   20,
	}
	amount, err := e.Decide(context.Background(), dc)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), amount)
}

func TestTabularPreflopJunkChecksWhenFree(t *testing.T) {
	e := NewTabularEngine()
	dc := DecisionContext{
		Street: StreetPreflop,
		Hand:   []cards.Card{c(7, cards.Spades), c(2, cards.Hearts)},
		MinBet: 0,
		ToCall: 0,
	}
	amount, err := e.Decide(context.Background(), dc)
	require.NoError(t, err)
	assert.Equal(t, int64(0), amount)
}

func TestTabularPostflopTwoPairRaises(t *testing.T) {
	e := NewTabularEngine()
	dc := DecisionContext{
		Street: StreetFlop,
		Hand:   []cards.Card{c(9, cards.Spades), c(9, cards.Hearts)},
		Board:  []cards.Card{c(13, cards.Clubs), c(4, cards.Diamonds), c(4, cards.Spades)}, // two pair, nines and fours
		PotTotal: 100,
		MinBet:   20,
		MaxBet:   1000,
		ToCall:   20,
	}
	amount, err := e.Decide(context.Background(), dc)
	require.NoError(t, err)
	assert.Greater(t, amount, dc.MinBet)
}

func TestClampBetRespectsMaxBet(t *testing.T) {
	dc := DecisionContext{MinBet: 10, MaxBet: 50}
	assert.Equal(t, int64(50), clampBet(dc, 1000))
	assert.Equal(t, int64(10), clampBet(dc, 1))
}

func TestHandKeyFormatsSuitedAndOffsuit(t *testing.T) {
	assert.Equal(t, "AKs", handKey([]cards.Card{c(14, cards.Spades), c(13, cards.Spades)}))
	assert.Equal(t, "AKo", handKey([]cards.Card{c(14, cards.Spades), c(13, cards.Hearts)}))
	assert.Equal(t, "QQ", handKey([]cards.Card{c(12, cards.Spades), c(12, cards.Hearts)}))
}
