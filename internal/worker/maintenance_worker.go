package worker

import (
	"context"
	"time"

	"github.com/prepmate/prepmate-backend/internal/service"
	"github.com/rs/zerolog"
)

// MaintenanceWorker periodically expires stale sessions and purges old
// terminal ones. Every sweep also runs in any other replica; the bulk
// updates are idempotent so overlapping sweeps are harmless.
type MaintenanceWorker struct {
	sessions *service.SessionService
	interval time.Duration
	log      zerolog.Logger
}

// NewMaintenanceWorker creates a new MaintenanceWorker.
func NewMaintenanceWorker(sessions *service.SessionService, interval time.Duration, log zerolog.Logger) *MaintenanceWorker {
	return &MaintenanceWorker{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "maintenance_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine. One sweep runs
// immediately so a restart does not delay overdue maintenance by a
// full interval.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *MaintenanceWorker) sweep(ctx context.Context) {
	if _, err := w.sessions.ExpireStale(ctx); err != nil {
		w.log.Error().Err(err).Msg("Expire sweep failed")
	}
	if _, err := w.sessions.PurgeOld(ctx, 0); err != nil {
		w.log.Error().Err(err).Msg("Purge sweep failed")
	}
}
