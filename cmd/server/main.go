// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/trickroom/internal/auth"
	"github.com/jason-s-yu/trickroom/internal/cache"
	"github.com/jason-s-yu/trickroom/internal/config"
	"github.com/jason-s-yu/trickroom/internal/database"
	"github.com/jason-s-yu/trickroom/internal/dispatch"
	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/jason-s-yu/trickroom/internal/handlers"
	"github.com/jason-s-yu/trickroom/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	entry := logrus.NewEntry(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var iss *auth.Issuer
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		iss, err = auth.NewIssuerFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenExpiry)
	} else {
		logger.Info("No key paths configured, generating an ephemeral key pair")
		iss, err = auth.NewIssuer(cfg.TokenExpiry)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	hub := handlers.NewHub(entry)
	sinks := []dispatch.Sink{hub}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		sinks = append(sinks, cache.NewHistorian(rdb, cfg.QueueName))
		logger.Infof("Publishing actions to redis queue %q", cfg.QueueName)
	}

	if cfg.DatabaseURL != "" {
		pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatalf("postgres migrate: %v", err)
		}
		sinks = append(sinks, database.NewRoomRecorder(pool))
		logger.Info("Recording rooms to postgres")
	}

	out := dispatch.NewOutbox(dispatch.DefaultOutboxSize, entry.WithField("component", "outbox"), sinks...)
	reg := room.NewRegistry(
		room.WithCapacity(cfg.RoomCapacity),
		room.WithCodeLength(cfg.RoomCodeLength),
		room.WithDefaultRules(cfg.Rules),
		room.WithLogger(entry.WithField("component", "registry")),
	)
	d := dispatch.New(reg, out,
		dispatch.WithLogger(entry.WithField("component", "dispatcher")),
		dispatch.WithSessionOptions(game.WithLogger(entry.WithField("component", "session"))),
	)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handlers.NewRouter(d, hub, iss, logger, cfg.AllowedOrigins),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// The outbox outlives the listener so shutdown events still reach sinks.
	outCtx, stopOutbox := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return out.Run(outCtx)
	})
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopOutbox()
		for code := range reg.Rooms() {
			_ = d.CloseRoom(code, "server shutting down")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("Server stopped")
}
