package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/guess80-backend/internal/hub"
	"github.com/DoyleJ11/guess80-backend/internal/ws"
)

// SetupRoutes builds the router. history may be nil, in which case /games is
// not served.
func SetupRoutes(h *hub.Hub, history History, wsCfg ws.Config, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/stats", GetStats(h, log))
	r.Get("/lobbies/{code}", GetLobby(h, log))
	if history != nil {
		r.Get("/games", RecentGames(history, log))
	}
	r.Get("/ws", ws.Handler(h, wsCfg, log.Named("ws")))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/healthz" {
				return
			}
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
