package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/guess80-backend/internal/archive"
	"github.com/DoyleJ11/guess80-backend/internal/config"
	"github.com/DoyleJ11/guess80-backend/internal/httpapi"
	"github.com/DoyleJ11/guess80-backend/internal/hub"
	"github.com/DoyleJ11/guess80-backend/internal/lobby"
	"github.com/DoyleJ11/guess80-backend/internal/logging"
	"github.com/DoyleJ11/guess80-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	g, ctx := errgroup.WithContext(ctx)

	var (
		recorder archive.Recorder = archive.Nop{}
		history  httpapi.History
	)
	if cfg.DatabaseURL != "" {
		db, closeDB, err := archive.OpenPostgres(ctx, cfg.DatabaseURL, log.Named("archive"))
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, closeDB()) }()

		store := archive.NewGormStore(db)
		writer := archive.NewWriter(store, cfg.ArchiveQueueSize, log.Named("archive"))
		g.Go(func() error { return writer.Run(ctx) })
		recorder, history = writer, store
		log.Info("game archive enabled")
	}

	// The hub outlives ctx so that shutdown can drain sessions first.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	h := hub.NewHub(hubCtx, hub.Config{
		Lobby: lobby.Config{
			ChatLimit: cfg.ChatHistoryLimit,
			Archive:   recorder,
		},
		Logger: log.Named("hub"),
	})

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(h, history, ws.Config{
			OutboxSize:     cfg.OutboxSize,
			PingInterval:   cfg.PingInterval,
			WriteTimeout:   cfg.WriteTimeout,
			OriginPatterns: cfg.AllowedOrigins,
		}, log.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		// Closing every lobby closes the session outboxes, which ends the
		// hijacked websocket handlers that Shutdown does not wait for.
		h.Send(context.Background(), hub.ShutdownHub{})

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
