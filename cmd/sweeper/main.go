package main

import (
	"context"
	"flag"
	"time"

	"github.com/prepmate/prepmate-backend/internal/config"
	"github.com/prepmate/prepmate-backend/internal/database"
	"github.com/prepmate/prepmate-backend/internal/logger"
	"github.com/prepmate/prepmate-backend/internal/repository"
	"github.com/prepmate/prepmate-backend/internal/service"
)

// One-shot maintenance sweep for cron-driven deployments where the
// in-process worker is disabled (SWEEP_INTERVAL_MINUTES=0).
func main() {
	var daysOld int
	flag.IntVar(&daysOld, "purge-days", 0, "Purge cutoff in days (0 uses SESSION_PURGE_DAYS)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	mongoDB, disconnectMongo, err := database.NewMongoDatabase(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer disconnectMongo(context.Background())

	sessionRepo := repository.NewMongoSessionRepository(mongoDB)
	sessionService := service.NewSessionService(sessionRepo, nil, cfg, log)

	expired, err := sessionService.ExpireStale(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Expire sweep failed")
	}

	purged, err := sessionService.PurgeOld(ctx, daysOld)
	if err != nil {
		log.Fatal().Err(err).Msg("Purge sweep failed")
	}

	log.Info().
		Int64("expired", expired).
		Int64("purged", purged).
		Msg("Sweep complete")
}
