package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/guess80-backend/internal/archive"
	"github.com/DoyleJ11/guess80-backend/internal/hub"
	"github.com/DoyleJ11/guess80-backend/internal/lobby"
	"github.com/DoyleJ11/guess80-backend/internal/types"
)

type LobbySummary struct {
	Code                string             `json:"code"`
	Phase               string             `json:"phase"`
	RoundsPlayed        int                `json:"roundsPlayed"`
	EliminationInterval int                `json:"eliminationInterval"`
	Players             []types.PlayerView `json:"players"`
}

type Stats struct {
	Lobbies      int `json:"lobbies"`
	Participants int `json:"participants"`
}

func GetLobby(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan *lobby.Lobby, 1)
		if !h.Send(r.Context(), hub.GetLobby{Code: code, Reply: reply}) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		var lb *lobby.Lobby
		select {
		case lb = <-reply:
		case <-r.Context().Done():
			return
		}
		if lb == nil {
			writeError(w, http.StatusNotFound, "lobby not found")
			return
		}

		views := make(chan lobby.View, 1)
		if !lb.Send(lobby.GetState{Reply: views}) {
			// stopped between the lookup and now
			writeError(w, http.StatusNotFound, "lobby not found")
			return
		}
		var v lobby.View
		select {
		case v = <-views:
		case <-r.Context().Done():
			return
		}

		writeJSON(w, http.StatusOK, LobbySummary{
			Code:                v.Code,
			Phase:               string(v.Phase),
			RoundsPlayed:        v.RoundsPlayed,
			EliminationInterval: v.Interval,
			Players:             types.PlayersFrom(v.Players),
		}, log)
	}
}

func GetStats(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan hub.Stats, 1)
		if !h.Send(r.Context(), hub.GetStats{Reply: reply}) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		select {
		case s := <-reply:
			writeJSON(w, http.StatusOK, Stats{Lobbies: s.Lobbies, Participants: s.Participants}, log)
		case <-r.Context().Done():
		}
	}
}

// History lists archived games. It is nil when no database is configured.
type History interface {
	Recent(ctx context.Context, limit int) ([]archive.GameRecord, error)
}

const (
	defaultGamesLimit = 20
	maxGamesLimit     = 100
)

func RecentGames(history History, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultGamesLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(n, maxGamesLimit)
		}

		games, err := history.Recent(r.Context(), limit)
		if err != nil {
			log.Error("list recent games", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not list games")
			return
		}
		if games == nil {
			games = []archive.GameRecord{}
		}
		writeJSON(w, http.StatusOK, games, log)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
}
