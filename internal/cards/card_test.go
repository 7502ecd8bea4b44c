package cards

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeck(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := New(rng)
	assert.Equal(t, 52, d.Size())

	seen := make(map[Card]bool)
	suitCount := make(map[Suit]int)
	rankCount := make(map[Rank]int)
	for _, card := range d.cards {
		assert.False(t, seen[card], "duplicate card %v", card)
		seen[card] = true
		suitCount[card.Suit]++
		rankCount[card.Rank]++
	}
	for s := Spades; s <= Clubs; s++ {
		assert.Equal(t, 13, suitCount[s])
	}
	for r := MinRank; r <= MaxRank; r++ {
		assert.Equal(t, 4, rankCount[r])
	}
}

func TestDeckShuffleDeterministic(t *testing.T) {
	d1 := New(rand.New(rand.NewSource(42)))
	d2 := New(rand.New(rand.NewSource(42)))
	assert.Equal(t, d1.cards, d2.cards)

	d3 := New(rand.New(rand.NewSource(43)))
	assert.NotEqual(t, d1.cards, d3.cards)
}

func TestDeckPopCards(t *testing.T) {
	d := New(rand.New(rand.NewSource(42)))

	for i := 0; i < 52; i++ {
		drawn, ok := d.PopCards(1)
		require.True(t, ok, "draw %d", i)
		assert.Len(t, drawn, 1)
		assert.Equal(t, 51-i, d.Size())
	}

	_, ok := d.PopCards(1)
	assert.False(t, ok)
}

func TestCardJSONRoundTrip(t *testing.T) {
	tests := []Card{
		{Rank: MaxRank, Suit: Spades},
		{Rank: 13, Suit: Hearts},
		{Rank: 10, Suit: Diamonds},
		{Rank: MinRank, Suit: Clubs},
	}

	for _, want := range tests {
		data, err := json.Marshal(want)
		require.NoError(t, err)

		var got Card
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, want, got)
	}
}

func TestCardUnmarshalRejectsOutOfRange(t *testing.T) {
	var c Card
	assert.Error(t, json.Unmarshal([]byte(`{"rank":99,"suit":0}`), &c))
	assert.Error(t, json.Unmarshal([]byte(`{"rank":10,"suit":9}`), &c))
}

func TestDeckSnapshotRoundTrip(t *testing.T) {
	d := New(rand.New(rand.NewSource(42)))
	_, _ = d.PopCards(3)
	remaining := d.Remaining()

	data, err := json.Marshal(remaining)
	require.NoError(t, err)

	var restored []Card
	require.NoError(t, json.Unmarshal(data, &restored))

	rebuilt := FromCards(restored, rand.New(rand.NewSource(1)))
	assert.Equal(t, d.Size(), rebuilt.Size())
}
