// Package cards implements the 52-card deck: immutable cards with a
// textual DTO, and a deck that deals without replacement and reshuffles
// once per hand.
package cards

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Suit is one of the four card suits, ordered 0..3 as spec.md's data model
// requires.
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

func (s Suit) letter() byte {
	switch s {
	case Spades:
		return 's'
	case Hearts:
		return 'h'
	case Diamonds:
		return 'd'
	case Clubs:
		return 'c'
	default:
		return '?'
	}
}

// Rank is a card rank in 2..14 inclusive (11=J, 12=Q, 13=K, 14=A), matching
// spec.md's `rank ∈ 2..14` data model. Hold'em's minimum rank cutoff is 2,
// i.e. the full 13-rank deck; a future variant with a higher cutoff would
// trim New's rank range.
type Rank int

const (
	MinRank Rank = 2
	MaxRank Rank = 14
)

func (r Rank) rune() byte {
	switch r {
	case 14:
		return 'A'
	case 13:
		return 'K'
	case 12:
		return 'Q'
	case 11:
		return 'J'
	case 10:
		return 'T'
	default:
		return byte('0' + int(r))
	}
}

func (r Rank) String() string {
	switch r {
	case 14:
		return "A"
	case 13:
		return "K"
	case 12:
		return "Q"
	case 11:
		return "J"
	case 10:
		return "10"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

// Card is an immutable playing card.
type Card struct {
	Rank Rank
	Suit Suit
}

// String renders a card as e.g. "A♠" or "10♦".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Code renders the card in the two-character <rank><suit-letter> form the
// gameserver persists for hole and board cards. The bot subsystem's remote
// engine does not use it: it encodes cards suit first, <suit-letter><rank-char>,
// with its own helper (see internal/bot/remote.go).
func (c Card) Code() string {
	return string([]byte{c.Rank.rune(), c.Suit.letter()})
}

type cardDTO struct {
	Rank int `json:"rank"`
	Suit int `json:"suit"`
}

// MarshalJSON implements json.Marshaler so a Card serializes as the textual
// DTO spec.md §3 requires.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardDTO{Rank: int(c.Rank), Suit: int(c.Suit)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Card) UnmarshalJSON(data []byte) error {
	var dto cardDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	if dto.Rank < int(MinRank) || dto.Rank > int(MaxRank) {
		return fmt.Errorf("cards: rank %d out of range", dto.Rank)
	}
	if dto.Suit < int(Spades) || dto.Suit > int(Clubs) {
		return fmt.Errorf("cards: suit %d out of range", dto.Suit)
	}
	c.Rank = Rank(dto.Rank)
	c.Suit = Suit(dto.Suit)
	return nil
}

// Deck is an ordered sequence of cards with a minimum rank cutoff, dealt
// from the front and shuffled once per hand.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New builds a full 52-card deck (minimum rank 2, the only cutoff Hold'em
// uses) and shuffles it using rng.
func New(rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]Card, 0, 52), rng: rng}
	for s := Spades; s <= Clubs; s++ {
		for r := MinRank; r <= MaxRank; r++ {
			d.cards = append(d.cards, Card{Rank: r, Suit: s})
		}
	}
	d.Shuffle()
	return d
}

// FromCards rebuilds a deck from an explicit remaining-card list, used to
// restore a deck snapshot from persistence.
func FromCards(remaining []Card, rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]Card, len(remaining)), rng: rng}
	copy(d.cards, remaining)
	return d
}

// Shuffle performs a Fisher-Yates shuffle via rng.Shuffle; it is a
// permutation of the current cards (length and multiset preserved).
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// PopCards removes and returns the first n cards. ok is false (and the
// returned slice is nil) if fewer than n cards remain.
func (d *Deck) PopCards(n int) (drawn []Card, ok bool) {
	if n < 0 || n > len(d.cards) {
		return nil, false
	}
	drawn = append([]Card(nil), d.cards[:n]...)
	d.cards = d.cards[n:]
	return drawn, true
}

// Size returns the number of cards remaining.
func (d *Deck) Size() int { return len(d.cards) }

// Remaining returns the cards left in the deck, for persistence.
func (d *Deck) Remaining() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
