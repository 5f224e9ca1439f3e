package worker

// sync_cron.go
// Background goroutine that periodically refreshes the local pricing group
// table from the classification service. Uses the Circuit Breaker to avoid
// hammering a downed service.

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Narimm/OpenVPMS-sub018/internal/infra"
)

const syncTickInterval = 15 * time.Minute

// GroupSyncer is the part of the group service the cron needs.
type GroupSyncer interface {
	Sync(ctx context.Context) (int, error)
}

// StartGroupSyncCron launches a background goroutine that ticks every
// 15 minutes and pulls group definitions while the breaker allows it.
// It respects the context for graceful shutdown.
func StartGroupSyncCron(ctx context.Context, syncer GroupSyncer, cb *infra.CircuitBreaker) {
	go func() {
		ticker := time.NewTicker(syncTickInterval)
		defer ticker.Stop()

		log.Info().Msg("sync_cron: started")

		// First sync shortly after boot so fresh deployments have groups
		// before the first import arrives.
		runSync(ctx, syncer, cb)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sync_cron: shutting down")
				return
			case <-ticker.C:
				runSync(ctx, syncer, cb)
			}
		}
	}()
}

func runSync(ctx context.Context, syncer GroupSyncer, cb *infra.CircuitBreaker) {
	if cb.State() == infra.CBOpen {
		log.Debug().Msg("sync_cron: circuit breaker is open, skipping tick")
		return
	}
	if _, err := syncer.Sync(ctx); err != nil {
		log.Warn().Err(err).Msg("sync_cron: group sync failed")
	}
}
