package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/holdempoker/tableserver/internal/cards"
)

// RemoteConfig configures the HTTP decision service every non-"easy"
// engine calls, grounded on remote_engine.py's BOT_DECISION_URL/
// BOT_DECISION_TOKEN/BOT_DECISION_TIMEOUT env vars.
type RemoteConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// defaultRemoteTimeout is BOT_DECISION_TIMEOUT's default (1.2s).
const defaultRemoteTimeout = 1200 * time.Millisecond

// RemoteEngine defers a decision to an external HTTP service, falling back
// to another engine (normally the tabular "easy" engine) on any failure:
// an unreachable service, a non-2xx response, or a malformed body. This
// mirrors remote_engine.py's RemoteDecisionEngine.decide, whose own
// try/except wraps the entire request and response parse.
type RemoteEngine struct {
	difficulty string
	cfg        RemoteConfig
	fallback   Engine
}

// NewRemoteEngine builds a RemoteEngine for the given difficulty label (sent
// verbatim in the request body), falling back to fallback on any error.
func NewRemoteEngine(difficulty string, cfg RemoteConfig, fallback Engine) *RemoteEngine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRemoteTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return &RemoteEngine{difficulty: difficulty, cfg: cfg, fallback: fallback}
}

type remoteRequest struct {
	Difficulty string         `json:"difficulty"`
	Context    remoteContext  `json:"context"`
}

// remoteContext is DecisionContext reshaped for the wire: cards as
// "<suit-letter><rank-char>" strings (spec.md §4.6), the reverse pairing
// of cards.Card.Code()'s own <rank><suit> form.
type remoteContext struct {
	RoomID     string           `json:"room_id"`
	HandID     uint64           `json:"game_id"`
	Street     int              `json:"street"`
	PlayerID   string           `json:"player_id"`
	PlayerName string           `json:"player_name"`
	Seat       int              `json:"seat"`
	Hand       []string         `json:"hand"`
	Board      []string         `json:"board"`
	Players    []PlayerView     `json:"players"`
	PotTotal   int64            `json:"pot_total"`
	MinBet     int64            `json:"min_bet"`
	MaxBet     int64            `json:"max_bet"`
	ToCall     int64            `json:"to_call"`
	History    []ActionRecord   `json:"action_history"`
}

type remoteResponse struct {
	Bet *float64 `json:"bet"`
}

func remoteCardCode(c cards.Card) string {
	var suit byte
	switch c.Suit {
	case cards.Spades:
		suit = 'S'
	case cards.Hearts:
		suit = 'H'
	case cards.Diamonds:
		suit = 'D'
	case cards.Clubs:
		suit = 'C'
	default:
		suit = '?'
	}
	var rank byte
	switch c.Rank {
	case 14:
		rank = 'A'
	case 13:
		rank = 'K'
	case 12:
		rank = 'Q'
	case 11:
		rank = 'J'
	case 10:
		rank = 'T'
	default:
		rank = byte('0' + int(c.Rank))
	}
	return string([]byte{suit, rank})
}

func encodeCards(cs []cards.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = remoteCardCode(c)
	}
	return out
}

func (e *RemoteEngine) Decide(ctx context.Context, dc DecisionContext) (int64, error) {
	if e.cfg.BaseURL == "" {
		return e.fallback.Decide(ctx, dc)
	}

	body := remoteRequest{
		Difficulty: e.difficulty,
		Context: remoteContext{
			RoomID:     dc.RoomID,
			HandID:     dc.HandID,
			Street:     int(dc.Street),
			PlayerID:   dc.PlayerID,
			PlayerName: dc.PlayerName,
			Seat:       dc.Seat,
			Hand:       encodeCards(dc.Hand),
			Board:      encodeCards(dc.Board),
			Players:    dc.Players,
			PotTotal:   dc.PotTotal,
			MinBet:     dc.MinBet,
			MaxBet:     dc.MaxBet,
			ToCall:     dc.ToCall,
			History:    dc.History,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return e.fallback.Decide(ctx, dc)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.BaseURL+"/act", bytes.NewReader(payload))
	if err != nil {
		return e.fallback.Decide(ctx, dc)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.cfg.Token))
	}

	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		return e.fallback.Decide(ctx, dc)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return e.fallback.Decide(ctx, dc)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Bet == nil {
		return e.fallback.Decide(ctx, dc)
	}

	return int64(*out.Bet + sign(*out.Bet)*0.5), nil
}

// sign returns -1 for a negative f and 1 otherwise; Decide uses it to round
// the service's bet half away from zero.
func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
