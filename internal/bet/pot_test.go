package bet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdempoker/tableserver/internal/handeval"
)

func TestManagerAddBetTracksTotals(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 10)
	m.AddBet("b", 10)
	m.AddBet("c", 10)

	assert.Equal(t, int64(30), m.Total())
	assert.Equal(t, int64(10), m.CurrentBets["a"])

	m.ResetCurrentBets()
	assert.Equal(t, int64(0), m.CurrentBets["a"])
	assert.Equal(t, int64(10), m.TotalBets["a"])

	m.AddBet("a", 20)
	m.AddBet("b", 20)
	m.AddBet("c", 20)
	assert.Equal(t, int64(90), m.Total())
}

func TestCreateSidePotsNoAllIn(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 20)
	m.AddBet("b", 20)
	m.AddBet("c", 20)

	m.CreateSidePots(map[string]bool{})
	require.Len(t, m.Pots, 1)
	assert.Equal(t, int64(60), m.Pots[0].Amount)
}

func TestCreateSidePotsSingleAllIn(t *testing.T) {
	// A all-in for 50, B and C call to 100.
	m := NewManager()
	m.AddBet("a", 50)
	m.AddBet("b", 100)
	m.AddBet("c", 100)

	m.CreateSidePots(map[string]bool{})
	require.Len(t, m.Pots, 2)

	assert.Equal(t, int64(150), m.Pots[0].Amount)
	assert.True(t, m.Pots[0].Eligible["a"])
	assert.True(t, m.Pots[0].Eligible["b"])
	assert.True(t, m.Pots[0].Eligible["c"])

	assert.Equal(t, int64(100), m.Pots[1].Amount)
	assert.False(t, m.Pots[1].Eligible["a"])
	assert.True(t, m.Pots[1].Eligible["b"])
	assert.True(t, m.Pots[1].Eligible["c"])
}

func TestCreateSidePotsFoldedPlayerExcluded(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 10)
	m.AddBet("b", 50)
	m.AddBet("c", 100)

	m.CreateSidePots(map[string]bool{"a": true})
	require.Len(t, m.Pots, 3)

	for _, pot := range m.Pots {
		assert.False(t, pot.Eligible["a"], "folded player must not be eligible for any pot")
	}
}

func TestCreateSidePotsAllDifferentLevels(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 10)
	m.AddBet("b", 20)
	m.AddBet("c", 30)
	m.AddBet("d", 40)

	m.CreateSidePots(map[string]bool{})
	require.Len(t, m.Pots, 4)

	expected := []int64{40, 30, 20, 10}
	for i, want := range expected {
		assert.Equal(t, want, m.Pots[i].Amount)
	}
}

func TestReturnUncalledBet(t *testing.T) {
	m := NewManager()
	m.AddBet("sb", 10)
	m.AddBet("bb", 20)
	m.AddBet("raiser", 60)

	id, amount := m.ReturnUncalledBet()
	assert.Equal(t, "raiser", id)
	assert.Equal(t, int64(40), amount)
	assert.Equal(t, int64(20), m.TotalBets["raiser"])
	assert.Equal(t, int64(50), m.Total())
}

func TestReturnUncalledBetNoneWhenMatched(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 20)
	m.AddBet("b", 20)

	id, amount := m.ReturnUncalledBet()
	assert.Equal(t, "", id)
	assert.Equal(t, int64(0), amount)
}

func handVal(rank handeval.Rank, strength int32) handeval.Value {
	return handeval.Value{Rank: rank, Strength: strength}
}

func TestDistributeSingleWinner(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 20)
	m.AddBet("b", 20)
	m.AddBet("c", 20)

	hands := map[string]handeval.Value{
		"a": handVal(handeval.Pair, 0),
		"b": handVal(handeval.HighCard, 1),
		"c": handVal(handeval.HighCard, 1),
	}
	awards := m.Distribute(hands, map[string]bool{}, []string{"a", "b", "c"})
	require.Len(t, awards, 1)
	assert.Equal(t, "a", awards[0].PlayerID)
	assert.Equal(t, int64(60), awards[0].Amount)
}

func TestDistributeSidePotMainAndSide(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 100)
	m.AddBet("b", 50)
	m.AddBet("c", 100)
	m.CreateSidePots(map[string]bool{})

	hands := map[string]handeval.Value{
		"a": handVal(handeval.HighCard, 2),
		"b": handVal(handeval.HighCard, 1), // best
		"c": handVal(handeval.HighCard, 2),
	}
	awards := m.Distribute(hands, map[string]bool{}, []string{"a", "b", "c"})

	totals := map[string]int64{}
	for _, a := range awards {
		totals[a.PlayerID] += a.Amount
	}
	assert.Equal(t, int64(150), totals["b"]) // wins main pot
	assert.Equal(t, int64(50), totals["a"])  // splits side pot
	assert.Equal(t, int64(50), totals["c"])
}

func TestDistributeTieSplitsWithRemainderToEarliestSeat(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 50)
	m.AddBet("b", 50)
	m.AddBet("c", 51)

	hands := map[string]handeval.Value{
		"a": handVal(handeval.Pair, 10),
		"b": handVal(handeval.Pair, 10),
		"c": handVal(handeval.Pair, 10),
	}
	// Seat order starting after the dealer: b, c, a — so b is "earliest".
	awards := m.Distribute(hands, map[string]bool{}, []string{"b", "c", "a"})

	total := int64(0)
	var gotExtra string
	for _, a := range awards {
		total += a.Amount
		if a.Amount == 51 {
			gotExtra = a.PlayerID
		}
	}
	assert.Equal(t, int64(151), total)
	assert.Equal(t, "b", gotExtra)
}

func TestDistributeSkipsFoldedPlayers(t *testing.T) {
	m := NewManager()
	m.AddBet("a", 50)
	m.AddBet("b", 50)

	hands := map[string]handeval.Value{
		"a": handVal(handeval.Pair, 0),
		"b": handVal(handeval.Pair, 0),
	}
	awards := m.Distribute(hands, map[string]bool{"a": true}, []string{"a", "b"})
	require.Len(t, awards, 1)
	assert.Equal(t, "b", awards[0].PlayerID)
	assert.Equal(t, int64(100), awards[0].Amount)
}
