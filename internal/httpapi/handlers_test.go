package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/guess80-backend/internal/archive"
	"github.com/DoyleJ11/guess80-backend/internal/hub"
	"github.com/DoyleJ11/guess80-backend/internal/notify"
	"github.com/DoyleJ11/guess80-backend/internal/ws"
)

func newTestRouter(t *testing.T) (http.Handler, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, hub.Config{Logger: zap.NewNop()})
	return SetupRoutes(h, nil, ws.Config{}, zap.NewNop()), h
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetLobby(t *testing.T) {
	r, h := newTestRouter(t)

	reply := make(chan hub.Result, 1)
	h.Inbox() <- hub.CreateLobby{ParticipantID: "p1", Name: "ann", Outbox: notify.NewOutbox(8), Reply: reply}
	res := <-reply
	require.NoError(t, res.Err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lobbies/"+res.Code, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got LobbySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, res.Code, got.Code)
	assert.Equal(t, "waiting", got.Phase)
	require.Len(t, got.Players, 1)
	assert.Equal(t, "ann", got.Players[0].Name)
	assert.Equal(t, "p1", got.Players[0].ID)
}

func TestGetLobby_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lobbies/999999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"lobby not found"}`, rec.Body.String())
}

func TestGetStats(t *testing.T) {
	r, h := newTestRouter(t)
	reply := make(chan hub.Result, 1)
	h.Inbox() <- hub.CreateLobby{ParticipantID: "p1", Name: "ann", Outbox: notify.NewOutbox(8), Reply: reply}
	require.NoError(t, (<-reply).Err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lobbies":1,"participants":1}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lobbies/123456", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type fakeHistory struct {
	games []archive.GameRecord
	err   error
	limit int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]archive.GameRecord, error) {
	f.limit = limit
	return f.games, f.err
}

func TestRecentGames(t *testing.T) {
	ended := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		query     string
		history   *fakeHistory
		wantCode  int
		wantLimit int
		wantBody  string
	}{
		{
			name:      "default limit",
			history:   &fakeHistory{games: []archive.GameRecord{{ID: 1, LobbyCode: "123456", WinnerID: "p1", WinnerName: "ann", WinnerScore: 150, Rounds: 3, Players: 2, EndedAt: ended}}},
			wantCode:  http.StatusOK,
			wantLimit: defaultGamesLimit,
			wantBody:  `[{"id":1,"lobbyCode":"123456","winnerId":"p1","winnerName":"ann","winnerScore":150,"rounds":3,"players":2,"startedAt":"0001-01-01T00:00:00Z","endedAt":"2026-03-01T12:00:00Z"}]`,
		},
		{
			name:      "limit is capped",
			query:     "?limit=1000",
			history:   &fakeHistory{},
			wantCode:  http.StatusOK,
			wantLimit: maxGamesLimit,
			wantBody:  `[]`,
		},
		{
			name:     "bad limit",
			query:    "?limit=abc",
			history:  &fakeHistory{},
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"invalid limit"}`,
		},
		{
			name:      "store error",
			history:   &fakeHistory{err: errors.New("db down")},
			wantCode:  http.StatusInternalServerError,
			wantLimit: defaultGamesLimit,
			wantBody:  `{"error":"could not list games"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			h := hub.NewHub(ctx, hub.Config{Logger: zap.NewNop()})
			r := SetupRoutes(h, tc.history, ws.Config{}, zap.NewNop())

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/games"+tc.query, nil))
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
			assert.Equal(t, tc.wantLimit, tc.history.limit)
		})
	}
}

func TestRecentGames_NotServedWithoutHistory(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/games", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
