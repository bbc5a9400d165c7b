package engine

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var ErrInvalidInput = errors.New("invalid input")
var ErrOutOfRange = fmt.Errorf("%w: number must be between 1 and 100", ErrInvalidInput)
var ErrEliminated = fmt.Errorf("%w: eliminated players cannot submit", ErrInvalidInput)
var ErrInvalidName = fmt.Errorf("%w: name", ErrInvalidInput)
var ErrNoRoundInProgress = errors.New("no round in progress")

const (
	MinGuess = 1
	MaxGuess = 100

	ExactPoints   = 100
	ClosestPoints = 50

	// MinEliminationInterval is the floor of the dynamic elimination cadence.
	MinEliminationInterval = 3
)

type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseRound   Phase = "round"
)

type Player struct {
	ID         string
	Name       string
	Score      int
	Eliminated bool
	Ready      bool
	LastGuess  *float64
	Seq        int // join sequence, used for every tie-break
}

// Standing is a point-in-time copy of a player as broadcast to the lobby.
type Standing struct {
	ID         string
	Name       string
	Score      int
	Eliminated bool
	Ready      bool
	LastGuess  *float64 // this round's guess, nil until submitted
}

type EventType string

const (
	EvtLobbyUpdated       EventType = "LobbyUpdated"
	EvtRoundStarted       EventType = "RoundStarted"
	EvtSubmissionProgress EventType = "SubmissionProgress"
	EvtRoundResolved      EventType = "RoundResolved"
	EvtGameOver           EventType = "GameOver"
)

type Event struct {
	Type         EventType
	Phase        Phase
	Standings    []Standing
	RoundsPlayed int
	Interval     int
	Submitted    int
	Total        int
	Result       *RoundResult
	Winner       *Standing
}

// Game is the round state machine of a single lobby. It is not safe for
// concurrent use; the owning lobby goroutine serializes every call.
type Game struct {
	Phase               Phase
	RoundsPlayed        int
	EliminationInterval int

	players     map[string]*Player
	submissions map[string]float64
	nextSeq     int
}

func NewGame() *Game {
	return &Game{
		Phase:               PhaseWaiting,
		EliminationInterval: MinEliminationInterval,
		players:             map[string]*Player{},
		submissions:         map[string]float64{},
	}
}

func (g *Game) Join(id, name string) ([]Event, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if p, ok := g.players[id]; ok {
		if name != "" {
			p.Name = name
		}
		return []Event{g.lobbyEvent()}, nil
	}
	if name == "" {
		name = DefaultName(id)
	}

	g.nextSeq++
	g.players[id] = &Player{ID: id, Name: name, Seq: g.nextSeq}
	g.EliminationInterval = EliminationInterval(len(g.players))

	events := []Event{g.lobbyEvent()}
	// a mid-round joiner is active at once and must submit before the round resolves
	if g.Phase == PhaseRound {
		events = append(events, g.progressEvent())
	}
	return events, nil
}

func (g *Game) Rename(id, name string) ([]Event, error) {
	p, ok := g.players[id]
	if !ok {
		return nil, nil
	}
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrInvalidName
	}
	p.Name = name
	return []Event{g.lobbyEvent()}, nil
}

// Leave removes the player and re-checks the current phase against the
// remaining active players, so a departure can start or resolve a round.
func (g *Game) Leave(id string) []Event {
	if _, ok := g.players[id]; !ok {
		return nil
	}
	delete(g.players, id)
	delete(g.submissions, id)
	g.EliminationInterval = EliminationInterval(len(g.players))

	// only eliminated players remain: nobody could ever ready up again
	if len(g.players) > 0 && g.activeCount() == 0 {
		g.reset()
		return []Event{g.lobbyEvent()}
	}

	events := []Event{g.lobbyEvent()}
	switch g.Phase {
	case PhaseWaiting:
		if g.allActiveReady() {
			events = append(events, g.startRound()...)
		}
	case PhaseRound:
		if len(g.submissions) > 0 && g.allActiveSubmitted() {
			events = append(events, g.resolve()...)
		}
	}
	return events
}

func (g *Game) SetReady(id string, ready bool) []Event {
	p, ok := g.players[id]
	if !ok || p.Eliminated {
		return nil
	}
	p.Ready = ready

	events := []Event{g.lobbyEvent()}
	if g.Phase == PhaseWaiting && g.allActiveReady() {
		events = append(events, g.startRound()...)
	}
	return events
}

func (g *Game) Submit(id string, number float64) ([]Event, error) {
	p, ok := g.players[id]
	if !ok {
		return nil, nil
	}
	if p.Eliminated {
		return nil, ErrEliminated
	}
	if math.IsNaN(number) || math.IsInf(number, 0) || number < MinGuess || number > MaxGuess {
		return nil, ErrOutOfRange
	}
	if g.Phase != PhaseRound {
		return nil, ErrNoRoundInProgress
	}

	g.submissions[id] = number
	guess := number
	p.LastGuess = &guess

	if !g.allActiveSubmitted() {
		return []Event{g.progressEvent()}, nil
	}
	return g.resolve(), nil
}

// Players returns the lobby's players in join order.
func (g *Game) Players() []*Player {
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Player) int { return a.Seq - b.Seq })
	return out
}

func (g *Game) Player(id string) (*Player, bool) {
	p, ok := g.players[id]
	return p, ok
}

func (g *Game) NumPlayers() int { return len(g.players) }

func (g *Game) Submitted() int { return len(g.submissions) }

func (g *Game) Standings() []Standing {
	players := g.Players()
	out := make([]Standing, 0, len(players))
	for _, p := range players {
		out = append(out, standingOf(p))
	}
	return out
}

func (g *Game) startRound() []Event {
	g.Phase = PhaseRound
	clear(g.submissions)
	for _, p := range g.players {
		p.LastGuess = nil
	}
	return []Event{{Type: EvtRoundStarted, Phase: PhaseRound}}
}

func (g *Game) resolve() []Event {
	players := g.Players()
	result := Score(players, g.submissions)
	if result == nil {
		return nil
	}

	for _, p := range players {
		p.Ready = false
	}
	g.Phase = PhaseWaiting
	g.RoundsPlayed++
	if g.RoundsPlayed%g.EliminationInterval == 0 {
		for _, p := range SelectEliminations(players) {
			result.Eliminated = append(result.Eliminated, standingOf(p))
		}
	}
	clear(g.submissions)

	events := []Event{{
		Type:         EvtRoundResolved,
		Standings:    g.Standings(),
		RoundsPlayed: g.RoundsPlayed,
		Result:       result,
	}}

	active := g.active()
	if len(active) != 1 {
		return events
	}
	winner := standingOf(active[0])
	events = append(events, Event{Type: EvtGameOver, Winner: &winner, RoundsPlayed: g.RoundsPlayed})
	g.reset()
	return append(events, g.lobbyEvent())
}

// reset clears scores, eliminations and the round counter for a new game.
// Names and membership survive.
func (g *Game) reset() {
	for _, p := range g.players {
		p.Score = 0
		p.Eliminated = false
		p.Ready = false
		p.LastGuess = nil
	}
	g.RoundsPlayed = 0
	g.Phase = PhaseWaiting
	clear(g.submissions)
}

func (g *Game) progressEvent() Event {
	return Event{
		Type:      EvtSubmissionProgress,
		Phase:     g.Phase,
		Submitted: len(g.submissions),
		Total:     g.activeCount(),
	}
}

func (g *Game) lobbyEvent() Event {
	return Event{
		Type:         EvtLobbyUpdated,
		Phase:        g.Phase,
		Standings:    g.Standings(),
		RoundsPlayed: g.RoundsPlayed,
		Interval:     g.EliminationInterval,
	}
}

func (g *Game) active() []*Player {
	var out []*Player
	for _, p := range g.Players() {
		if !p.Eliminated {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) activeCount() int {
	n := 0
	for _, p := range g.players {
		if !p.Eliminated {
			n++
		}
	}
	return n
}

func (g *Game) allActiveReady() bool {
	n := 0
	for _, p := range g.players {
		if p.Eliminated {
			continue
		}
		if !p.Ready {
			return false
		}
		n++
	}
	return n > 0
}

func (g *Game) allActiveSubmitted() bool {
	for id, p := range g.players {
		if p.Eliminated {
			continue
		}
		if _, ok := g.submissions[id]; !ok {
			return false
		}
	}
	return true
}

func standingOf(p *Player) Standing {
	s := Standing{ID: p.ID, Name: p.Name, Score: p.Score, Eliminated: p.Eliminated, Ready: p.Ready}
	if p.LastGuess != nil {
		guess := *p.LastGuess
		s.LastGuess = &guess
	}
	return s
}
