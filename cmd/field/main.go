// The field binary runs the offline capture client: a durable local queue
// over sqlite plus the sync engine that drains it when the server is
// reachable.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/vistohub/vistoriago/internal/config"
	"github.com/vistohub/vistoriago/internal/logging"
	"github.com/vistohub/vistoriago/internal/syncq"
)

func main() {
	logging.Init(os.Getenv("LOG_LEVEL"), "console")

	cfg, err := config.LoadSyncConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load sync configuration")
	}

	store, err := syncq.OpenStore(cfg.QueuePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local queue")
	}

	client := syncq.NewClient(cfg.ServerURL, cfg.Token)
	engine := syncq.NewEngine(store, client, cfg)

	if err := engine.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync engine")
	}

	if counts, err := store.Counts(); err == nil {
		log.Info().
			Int64("captured", counts[syncq.StateLocalOnly]).
			Int64("pending", counts[syncq.StatePendingSync]).
			Int64("synced", counts[syncq.StateSynced]).
			Int64("errored", counts[syncq.StateError]).
			Msg("Queue state")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	engine.Stop()
	log.Info().Msg("Field client stopped")
}
