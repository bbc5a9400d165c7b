package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/DoyleJ11/guess80-backend/internal/engine"
	"github.com/DoyleJ11/guess80-backend/internal/lobby"
	"github.com/DoyleJ11/guess80-backend/internal/notify"
	"github.com/DoyleJ11/guess80-backend/internal/types"
)

var ErrLobbyNotFound = errors.New("lobby not found")
var ErrCodeSpaceExhausted = errors.New("could not allocate a lobby code")

const (
	CodeLength      = 6
	maxCodeAttempts = 100
)

type HubMsg interface{ isHubMsg() }

type Result struct {
	Code  string
	Lobby *lobby.Lobby
	Err   error
}

type CreateLobby struct {
	ParticipantID string
	Name          string
	Outbox        *notify.Outbox
	Reply         chan Result
}

type JoinLobby struct {
	Code          string
	ParticipantID string
	Name          string
	Outbox        *notify.Outbox
	Reply         chan Result
}

type LookupParticipant struct {
	ParticipantID string
	Reply         chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveParticipant is sent on disconnect. The lobby is shut down once its
// last member is gone.
type RemoveParticipant struct {
	ParticipantID string
}

type Stats struct {
	Lobbies      int
	Participants int
}

type GetStats struct {
	Reply chan Stats
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()       {}
func (JoinLobby) isHubMsg()         {}
func (LookupParticipant) isHubMsg() {}
func (GetLobby) isHubMsg()          {}
func (RemoveParticipant) isHubMsg() {}
func (GetStats) isHubMsg()          {}
func (ShutdownHub) isHubMsg()       {}

type Config struct {
	Lobby  lobby.Config
	Logger *zap.Logger
}

type entry struct {
	lobby   *lobby.Lobby
	members map[string]struct{}
}

// Hub is the lobby registry. It owns the code → lobby map and a secondary
// participant → code index; Player records live in the lobbies.
type Hub struct {
	inbox        chan HubMsg
	lobbies      map[string]*entry
	participants map[string]string
	cfg          lobby.Config
	newCode      func() (string, error)
	log          *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	return newHub(parent, cfg, GenerateCode)
}

func newHub(parent context.Context, cfg Config, newCode func() (string, error)) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Lobby.Logger == nil {
		cfg.Lobby.Logger = cfg.Logger
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:        make(chan HubMsg, 64),
		lobbies:      make(map[string]*entry),
		participants: make(map[string]string),
		cfg:          cfg.Lobby,
		newCode:      newCode,
		log:          cfg.Logger,
		ctx:          ctx,
		cancel:       cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Send delivers msg unless ctx or the hub is done first.
func (h *Hub) Send(ctx context.Context, msg HubMsg) bool {
	select {
	case h.inbox <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg)

			case JoinLobby:
				msg.Reply <- h.join(msg)

			case LookupParticipant:
				var lb *lobby.Lobby
				if e := h.lobbies[h.participants[msg.ParticipantID]]; e != nil {
					lb = e.lobby
				}
				msg.Reply <- lb // May be nil

			case GetLobby:
				var lb *lobby.Lobby
				if e := h.lobbies[msg.Code]; e != nil {
					lb = e.lobby
				}
				msg.Reply <- lb // May be nil

			case RemoveParticipant:
				h.remove(msg.ParticipantID)

			case GetStats:
				msg.Reply <- Stats{Lobbies: len(h.lobbies), Participants: len(h.participants)}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateLobby) Result {
	name, err := engine.NormalizeName(msg.Name)
	if err != nil {
		return Result{Err: err}
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			return Result{Err: ErrCodeSpaceExhausted}
		}
		c, err := h.newCode()
		if err != nil {
			return Result{Err: fmt.Errorf("generate code: %w", err)}
		}
		if _, taken := h.lobbies[c]; !taken {
			code = c
			break
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", c))
	}

	h.remove(msg.ParticipantID)
	lb := lobby.NewLobby(h.ctx, code, h.cfg)
	h.lobbies[code] = &entry{lobby: lb, members: map[string]struct{}{}}
	h.log.Info("lobby created", zap.String("lobby", code), zap.Int("lobbies", len(h.lobbies)))

	h.admit(code, msg.ParticipantID, name, msg.Outbox, &notify.Message{
		Type:  types.TypeCreateLobby,
		Data:  types.CreateLobbyReply{Code: code},
		Reply: true,
	})
	return Result{Code: code, Lobby: lb}
}

func (h *Hub) join(msg JoinLobby) Result {
	e, ok := h.lobbies[msg.Code]
	if !ok {
		return Result{Err: fmt.Errorf("%w: %s", ErrLobbyNotFound, msg.Code)}
	}
	name, err := engine.NormalizeName(msg.Name)
	if err != nil {
		return Result{Err: err}
	}

	if current, in := h.participants[msg.ParticipantID]; in && current != msg.Code {
		h.remove(msg.ParticipantID)
	}
	h.admit(msg.Code, msg.ParticipantID, name, msg.Outbox, &notify.Message{
		Type:  types.TypeJoinLobby,
		Data:  types.JoinLobbyReply{Success: true, Code: msg.Code},
		Reply: true,
	})
	return Result{Code: msg.Code, Lobby: e.lobby}
}

// admit records the membership and forwards the join. The ack rides along
// with the Join so the reply frame precedes the first lobbyUpdate.
func (h *Hub) admit(code, id, name string, out *notify.Outbox, ack *notify.Message) {
	e := h.lobbies[code]
	e.members[id] = struct{}{}
	h.participants[id] = code
	e.lobby.Send(lobby.Join{ParticipantID: id, Name: name, Outbox: out, Ack: ack})
}

func (h *Hub) remove(id string) {
	code, ok := h.participants[id]
	if !ok {
		return
	}
	delete(h.participants, id)

	e := h.lobbies[code]
	if e == nil {
		return
	}
	delete(e.members, id)
	e.lobby.Send(lobby.Leave{ParticipantID: id})

	if len(e.members) == 0 {
		delete(h.lobbies, code)
		e.lobby.Send(lobby.Shutdown{})
		h.log.Info("lobby removed", zap.String("lobby", code), zap.Int("lobbies", len(h.lobbies)))
	}
}

func (h *Hub) shutdown() {
	for _, e := range h.lobbies {
		e.lobby.Send(lobby.Shutdown{})
	}
	clear(h.lobbies)
	clear(h.participants)
	h.cancel()
}

// GenerateCode returns a random numeric lobby code.
func GenerateCode() (string, error) {
	const charset = "0123456789"

	code := make([]byte, CodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
