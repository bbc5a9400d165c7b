package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/guess80-backend/internal/engine"
)

var ErrUnknownType = errors.New("unknown type")
var ErrBadPayload = errors.New("bad payload")

// Client → server action types.
const (
	TypeCreateLobby  = "createLobby"
	TypeJoinLobby    = "joinLobby"
	TypeSetReady     = "setReady"
	TypeSubmitNumber = "submitNumber"
	TypeSendChat     = "sendChat"
	TypeSetName      = "setName"
)

// Server → client notification types.
const (
	TypeLobbyUpdate      = "lobbyUpdate"
	TypeRoundStart       = "roundStart"
	TypeSubmissionUpdate = "submissionUpdate"
	TypeRoundResult      = "roundResult"
	TypeGameOver         = "gameOver"
	TypeChatUpdate       = "chatUpdate"
	TypeErrorMsg         = "errorMsg"
)

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type CreateLobby struct {
	Name string `json:"name"`
}

type JoinLobby struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type SetReady struct {
	Ready bool `json:"ready"`
}

type SubmitNumber struct {
	Number json.RawMessage `json:"number"`
}

type SendChat struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SetName struct {
	Name string `json:"name"`
}

type CreateLobbyReply struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

type JoinLobbyReply struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PlayerView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Score      int      `json:"score"`
	Eliminated bool     `json:"eliminated"`
	Ready      bool     `json:"ready"`
	LastGuess  *float64 `json:"lastGuess,omitempty"`
}

type LobbyUpdate struct {
	Code                string       `json:"code"`
	Phase               string       `json:"phase"`
	Players             []PlayerView `json:"players"`
	RoundsPlayed        int          `json:"roundsPlayed"`
	EliminationInterval int          `json:"eliminationInterval"`
}

type SubmissionUpdate struct {
	Submitted int `json:"submitted"`
	Total     int `json:"total"`
}

type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type EliminatedView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type ResultView struct {
	Avg           float64     `json:"avg"`
	Target        float64     `json:"target"`
	ExactGuessers []PlayerRef `json:"exactGuessers"`
	ClosestID     string      `json:"closestId,omitempty"`
	ClosestName   string      `json:"closestName,omitempty"`
	ClosestDiff   *float64    `json:"closestDiff,omitempty"`
}

type RoundResult struct {
	Result       ResultView       `json:"result"`
	Players      []PlayerView     `json:"players"`
	RoundsPlayed int              `json:"roundsPlayed"`
	Eliminated   []EliminatedView `json:"eliminated"`
}

type Winner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type GameOver struct {
	Winner Winner `json:"winner"`
}

type ChatEntry struct {
	Name    string    `json:"name"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type ErrorMsg struct {
	Msg string `json:"msg"`
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", ErrBadPayload)
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrBadPayload)
	}
	return e, nil
}

// DecodePayload unmarshals the envelope data into T. A missing payload
// decodes to the zero value.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrBadPayload, env.Type, err)
	}
	return out, nil
}

// ParseNumber accepts a JSON number or a numeric string, the way a browser
// form value arrives. Anything else is NaN so range validation rejects it.
func ParseNumber(raw json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func PlayersFrom(standings []engine.Standing) []PlayerView {
	out := make([]PlayerView, 0, len(standings))
	for _, s := range standings {
		out = append(out, PlayerView{
			ID:         s.ID,
			Name:       s.Name,
			Score:      s.Score,
			Eliminated: s.Eliminated,
			Ready:      s.Ready,
			LastGuess:  s.LastGuess,
		})
	}
	return out
}

func RoundResultFrom(ev engine.Event) RoundResult {
	res := ev.Result
	view := ResultView{
		Avg:           res.Average,
		Target:        res.Target,
		ExactGuessers: make([]PlayerRef, 0, len(res.ExactGuessers)),
	}
	for _, e := range res.ExactGuessers {
		view.ExactGuessers = append(view.ExactGuessers, PlayerRef{ID: e.ID, Name: e.Name})
	}
	if res.Closest != nil {
		diff := res.ClosestDiff
		view.ClosestID = res.Closest.ID
		view.ClosestName = res.Closest.Name
		view.ClosestDiff = &diff
	}

	eliminated := make([]EliminatedView, 0, len(res.Eliminated))
	for _, e := range res.Eliminated {
		eliminated = append(eliminated, EliminatedView{ID: e.ID, Name: e.Name, Score: e.Score})
	}
	return RoundResult{
		Result:       view,
		Players:      PlayersFrom(ev.Standings),
		RoundsPlayed: ev.RoundsPlayed,
		Eliminated:   eliminated,
	}
}
