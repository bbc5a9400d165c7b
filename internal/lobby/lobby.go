package lobby

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DoyleJ11/guess80-backend/internal/archive"
	"github.com/DoyleJ11/guess80-backend/internal/engine"
	"github.com/DoyleJ11/guess80-backend/internal/notify"
	"github.com/DoyleJ11/guess80-backend/internal/types"
)

const (
	DefaultChatLimit = 100
	MaxChatLength    = 500
)

type Msg interface{ isLobbyMsg() }

// Join adds a participant. The name has already been validated by the hub.
// Ack, when set, is delivered to the joiner ahead of any broadcast.
type Join struct {
	ParticipantID string
	Name          string
	Outbox        *notify.Outbox
	Ack           *notify.Message
}

func (Join) isLobbyMsg() {}

type Leave struct{ ParticipantID string }

func (Leave) isLobbyMsg() {}

type SetReady struct {
	ParticipantID string
	Ready         bool
}

func (SetReady) isLobbyMsg() {}

type Submit struct {
	ParticipantID string
	Number        float64
}

func (Submit) isLobbyMsg() {}

type Chat struct {
	ParticipantID string
	Message       string
}

func (Chat) isLobbyMsg() {}

type Rename struct {
	ParticipantID string
	Name          string
}

func (Rename) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Code         string
	Version      int
	NumClients   int
	Phase        engine.Phase
	RoundsPlayed int
	Interval     int
	Submitted    int
	Players      []engine.Standing
	Chat         []types.ChatEntry
}

type Config struct {
	ChatLimit int
	Archive   archive.Recorder
	Logger    *zap.Logger
	Now       func() time.Time
}

type Lobby struct {
	code    string
	inbox   chan Msg
	game    *engine.Game
	version int
	port    notify.Port
	chat    []types.ChatEntry

	chatLimit int
	archive   archive.Recorder
	log       *zap.Logger
	now       func() time.Time
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLobby(parent context.Context, code string, cfg Config) *Lobby {
	if cfg.ChatLimit <= 0 {
		cfg.ChatLimit = DefaultChatLimit
	}
	if cfg.Archive == nil {
		cfg.Archive = archive.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger.With(zap.String("lobby", code))

	ctx, cancel := context.WithCancel(parent)
	l := &Lobby{
		code:      code,
		inbox:     make(chan Msg, 64),
		game:      engine.NewGame(),
		port:      notify.NewFanout(log),
		chatLimit: cfg.ChatLimit,
		archive:   cfg.Archive,
		log:       log,
		now:       cfg.Now,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Inbox is where the hub and the websocket sessions send actions.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Send delivers msg unless the lobby has already stopped.
func (l *Lobby) Send(msg Msg) bool {
	select {
	case l.inbox <- msg:
		return true
	case <-l.done:
		return false
	}
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.port.Attach(msg.ParticipantID, msg.Outbox)
				if msg.Ack != nil {
					l.port.Send(msg.ParticipantID, *msg.Ack)
				}
				events, err := l.game.Join(msg.ParticipantID, msg.Name)
				if err != nil {
					l.sendError(msg.ParticipantID, err)
					break
				}
				l.log.Info("player joined", zap.String("participant", msg.ParticipantID), zap.Int("players", l.game.NumPlayers()))
				// a late joiner must learn the round is open before it can submit
				if l.game.Phase == engine.PhaseRound {
					l.port.Send(msg.ParticipantID, notify.Message{Type: types.TypeRoundStart, Data: struct{}{}})
				}
				l.apply(events)
				if len(l.chat) > 0 {
					l.port.Send(msg.ParticipantID, notify.Message{Type: types.TypeChatUpdate, Data: l.chatHistory()})
				}

			case Leave:
				l.port.Detach(msg.ParticipantID)
				if _, ok := l.game.Player(msg.ParticipantID); !ok {
					break
				}
				l.log.Info("player left", zap.String("participant", msg.ParticipantID), zap.Int("players", l.game.NumPlayers()-1))
				l.apply(l.game.Leave(msg.ParticipantID))

			case SetReady:
				l.apply(l.game.SetReady(msg.ParticipantID, msg.Ready))

			case Submit:
				events, err := l.game.Submit(msg.ParticipantID, msg.Number)
				if err != nil {
					l.sendError(msg.ParticipantID, err)
					break
				}
				l.apply(events)

			case Rename:
				events, err := l.game.Rename(msg.ParticipantID, msg.Name)
				if err != nil {
					l.sendError(msg.ParticipantID, err)
					break
				}
				l.apply(events)

			case Chat:
				l.handleChat(msg)

			case GetState:
				// reflect internal state without data races
				msg.Reply <- l.view()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	l.port.CloseAll()
	l.cancel()
}

// apply turns engine events into notifications, in order.
func (l *Lobby) apply(events []engine.Event) {
	if len(events) == 0 {
		return
	}
	l.version++
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtLobbyUpdated:
			l.port.Broadcast(notify.Message{Type: types.TypeLobbyUpdate, Data: types.LobbyUpdate{
				Code:                l.code,
				Phase:               string(ev.Phase),
				Players:             types.PlayersFrom(ev.Standings),
				RoundsPlayed:        ev.RoundsPlayed,
				EliminationInterval: ev.Interval,
			}})

		case engine.EvtRoundStarted:
			if l.game.RoundsPlayed == 0 {
				l.startedAt = l.now()
			}
			l.log.Debug("round started", zap.Int("round", l.game.RoundsPlayed+1))
			l.port.Broadcast(notify.Message{Type: types.TypeRoundStart, Data: struct{}{}})

		case engine.EvtSubmissionProgress:
			l.port.Broadcast(notify.Message{Type: types.TypeSubmissionUpdate, Data: types.SubmissionUpdate{
				Submitted: ev.Submitted,
				Total:     ev.Total,
			}})

		case engine.EvtRoundResolved:
			l.log.Info("round resolved",
				zap.Int("round", ev.RoundsPlayed),
				zap.Float64("target", ev.Result.Target),
				zap.Int("eliminated", len(ev.Result.Eliminated)))
			l.port.Broadcast(notify.Message{Type: types.TypeRoundResult, Data: types.RoundResultFrom(ev)})

		case engine.EvtGameOver:
			w := ev.Winner
			l.log.Info("game over", zap.String("winner", w.Name), zap.Int("score", w.Score))
			l.port.Broadcast(notify.Message{Type: types.TypeGameOver, Data: types.GameOver{
				Winner: types.Winner{ID: w.ID, Name: w.Name, Score: w.Score},
			}})
			l.archive.Record(archive.GameRecord{
				LobbyCode:   l.code,
				WinnerID:    w.ID,
				WinnerName:  w.Name,
				WinnerScore: w.Score,
				Rounds:      ev.RoundsPlayed,
				Players:     l.game.NumPlayers(),
				StartedAt:   l.startedAt,
				EndedAt:     l.now(),
			})
		}
	}
}

func (l *Lobby) handleChat(msg Chat) {
	p, ok := l.game.Player(msg.ParticipantID)
	if !ok {
		return
	}
	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		l.port.Send(msg.ParticipantID, notify.Message{Type: types.TypeErrorMsg, Data: types.ErrorMsg{Msg: "Message too long."}})
		return
	}

	l.chat = append(l.chat, types.ChatEntry{Name: p.Name, Message: text, Time: l.now()})
	if over := len(l.chat) - l.chatLimit; over > 0 {
		l.chat = append(l.chat[:0], l.chat[over:]...)
	}
	l.version++
	l.port.Broadcast(notify.Message{Type: types.TypeChatUpdate, Data: l.chatHistory()})
}

func (l *Lobby) chatHistory() []types.ChatEntry {
	out := make([]types.ChatEntry, len(l.chat))
	copy(out, l.chat)
	return out
}

func (l *Lobby) sendError(id string, err error) {
	l.log.Debug("rejected action", zap.String("participant", id), zap.Error(err))
	l.port.Send(id, notify.Message{Type: types.TypeErrorMsg, Data: types.ErrorMsg{Msg: ErrorText(err)}})
}

func (l *Lobby) view() View {
	return View{
		Code:         l.code,
		Version:      l.version,
		NumClients:   l.port.Len(),
		Phase:        l.game.Phase,
		RoundsPlayed: l.game.RoundsPlayed,
		Interval:     l.game.EliminationInterval,
		Submitted:    l.game.Submitted(),
		Players:      l.game.Standings(),
		Chat:         l.chatHistory(),
	}
}

// ErrorText is the player-facing message for a rejected action.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, engine.ErrOutOfRange):
		return "Invalid number. Must be between 1 and 100."
	case errors.Is(err, engine.ErrEliminated):
		return "You have been eliminated and cannot submit."
	case errors.Is(err, engine.ErrNoRoundInProgress):
		return "No round in progress."
	case errors.Is(err, engine.ErrInvalidName):
		return "Invalid name."
	default:
		return "Invalid action."
	}
}
