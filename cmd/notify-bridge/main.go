package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/db"
	"github.com/directaid/backend/internal/events"
	"go.uber.org/zap"
)

// Notify Bridge subscribes to the ledger event stream on Redis and forwards
// user-facing events to the DirectAid app backend.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.NotifyURL == "" {
		log.Fatal("NOTIFY_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	notifier := events.NewNotifier(cfg.NotifyURL, cfg.ServiceAPIKey, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	if err := subscriber.Subscribe(ctx, events.StreamLedger, notifier.Handle); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started", zap.String("stream", events.StreamLedger))
	<-ctx.Done()
	log.Info("shutting down notify-bridge")
}
