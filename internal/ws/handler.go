package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/guess80-backend/internal/engine"
	"github.com/DoyleJ11/guess80-backend/internal/hub"
	"github.com/DoyleJ11/guess80-backend/internal/lobby"
	"github.com/DoyleJ11/guess80-backend/internal/notify"
	"github.com/DoyleJ11/guess80-backend/internal/types"
)

const readLimit = 4 << 10

var (
	errOutboxClosed = errors.New("outbox closed")
	errHubClosed    = errors.New("hub closed")
)

type Config struct {
	OutboxSize     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OriginPatterns []string
}

func Handler(h *hub.Hub, cfg Config, log *zap.Logger) http.HandlerFunc {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 32
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		conn.SetReadLimit(readLimit)

		id := uuid.NewString()
		s := &session{
			id:   id,
			conn: conn,
			hub:  h,
			cfg:  cfg,
			out:  notify.NewOutbox(cfg.OutboxSize),
			log:  log.With(zap.String("participant", id)),
		}
		s.log.Debug("connected", zap.String("remote", r.RemoteAddr))

		err = s.run(r.Context())
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
			websocket.CloseStatus(err) == websocket.StatusGoingAway:
		case errors.Is(err, errOutboxClosed):
			s.log.Info("dropped slow or stale connection")
		default:
			s.log.Debug("connection ended", zap.Error(err))
		}
		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// session is one websocket connection. Only the reader goroutine touches
// lobby and code.
type session struct {
	id   string
	conn *websocket.Conn
	hub  *hub.Hub
	cfg  Config
	out  *notify.Outbox
	log  *zap.Logger

	lobby *lobby.Lobby
	code  string
	name  string
}

func (s *session) run(ctx context.Context) error {
	defer s.out.Close()
	defer s.hub.Send(context.Background(), hub.RemoveParticipant{ParticipantID: s.id})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.writeLoop(ctx) })
	g.Go(func() error { return s.pingLoop(ctx) })
	g.Go(func() error { return s.readLoop(ctx) })
	return g.Wait()
}

func (s *session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.out.Done():
			return errOutboxClosed
		case msg := <-s.out.C():
			payload, err := json.Marshal(msg)
			if err != nil {
				s.log.Error("marshal notification", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err = s.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (s *session) pingLoop(ctx context.Context) error {
	if s.cfg.PingInterval <= 0 {
		return nil
	}
	t := time.NewTicker(s.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, s.cfg.PingInterval)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, data); err != nil {
			return err
		}
	}
}

// dispatch handles one client frame. Only a dead hub or context is fatal;
// bad input is answered with an error frame.
func (s *session) dispatch(ctx context.Context, data []byte) error {
	env, err := types.DecodeEnvelope(data)
	if err != nil {
		s.sendError("Malformed message.")
		return nil
	}

	switch env.Type {
	case types.TypeCreateLobby:
		p, err := types.DecodePayload[types.CreateLobby](env)
		if err != nil {
			s.reply(env.Type, types.CreateLobbyReply{Error: "Malformed message."})
			return nil
		}
		res, err := s.request(ctx, func(reply chan hub.Result) hub.HubMsg {
			return hub.CreateLobby{ParticipantID: s.id, Name: s.nameOr(p.Name), Outbox: s.out, Reply: reply}
		})
		if err != nil {
			return err
		}
		if res.Err != nil {
			s.reply(env.Type, types.CreateLobbyReply{Error: replyError(res.Err)})
			return nil
		}
		s.enter(res)

	case types.TypeJoinLobby:
		p, err := types.DecodePayload[types.JoinLobby](env)
		if err != nil || p.Code == "" {
			s.reply(env.Type, types.JoinLobbyReply{Error: "Malformed message."})
			return nil
		}
		res, err := s.request(ctx, func(reply chan hub.Result) hub.HubMsg {
			return hub.JoinLobby{Code: p.Code, ParticipantID: s.id, Name: s.nameOr(p.Name), Outbox: s.out, Reply: reply}
		})
		if err != nil {
			return err
		}
		if res.Err != nil {
			s.reply(env.Type, types.JoinLobbyReply{Error: replyError(res.Err)})
			return nil
		}
		s.enter(res)

	case types.TypeSetReady:
		p, err := types.DecodePayload[types.SetReady](env)
		if err != nil {
			s.sendError("Malformed message.")
			return nil
		}
		s.toLobby(lobby.SetReady{ParticipantID: s.id, Ready: p.Ready})

	case types.TypeSubmitNumber:
		p, err := types.DecodePayload[types.SubmitNumber](env)
		if err != nil {
			s.sendError("Malformed message.")
			return nil
		}
		s.toLobby(lobby.Submit{ParticipantID: s.id, Number: types.ParseNumber(p.Number)})

	case types.TypeSendChat:
		p, err := types.DecodePayload[types.SendChat](env)
		if err != nil {
			s.sendError("Malformed message.")
			return nil
		}
		// chat addressed to a lobby we already left
		if p.Code != "" && p.Code != s.code {
			return nil
		}
		s.toLobby(lobby.Chat{ParticipantID: s.id, Message: p.Message})

	case types.TypeSetName:
		p, err := types.DecodePayload[types.SetName](env)
		if err != nil {
			s.sendError("Malformed message.")
			return nil
		}
		name, err := engine.NormalizeName(p.Name)
		if err != nil || name == "" {
			s.sendError(lobby.ErrorText(engine.ErrInvalidName))
			return nil
		}
		s.name = name
		if s.lobby != nil {
			s.lobby.Send(lobby.Rename{ParticipantID: s.id, Name: name})
		}

	default:
		s.log.Debug("unknown message type", zap.String("type", env.Type))
		s.sendError("Unknown message type.")
	}
	return nil
}

func (s *session) request(ctx context.Context, build func(chan hub.Result) hub.HubMsg) (hub.Result, error) {
	reply := make(chan hub.Result, 1)
	if !s.hub.Send(ctx, build(reply)) {
		return hub.Result{}, errHubClosed
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return hub.Result{}, ctx.Err()
	}
}

func (s *session) enter(res hub.Result) {
	s.lobby, s.code = res.Lobby, res.Code
	s.log.Debug("entered lobby", zap.String("lobby", res.Code))
}

func (s *session) toLobby(msg lobby.Msg) {
	if s.lobby == nil || !s.lobby.Send(msg) {
		s.sendError("Join a lobby first.")
	}
}

// nameOr prefers the name sent with the request over one set earlier.
func (s *session) nameOr(name string) string {
	if name == "" {
		return s.name
	}
	return name
}

func (s *session) reply(typ string, data any) {
	s.out.Offer(notify.Message{Type: typ, Data: data, Reply: true})
}

func (s *session) sendError(text string) {
	s.out.Offer(notify.Message{Type: types.TypeErrorMsg, Data: types.ErrorMsg{Msg: text}})
}

func replyError(err error) string {
	switch {
	case errors.Is(err, hub.ErrLobbyNotFound):
		return "Lobby not found."
	case errors.Is(err, hub.ErrCodeSpaceExhausted):
		return "No lobby codes available."
	case errors.Is(err, engine.ErrInvalidInput):
		return lobby.ErrorText(err)
	default:
		return "Could not complete request."
	}
}
