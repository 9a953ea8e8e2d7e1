package worker

// retry_cron.go
// Background goroutine that periodically re-attempts stamping for recibos
// stuck in estado='timbrado_error' with a next_retry_at in the past.
// Uses the Circuit Breaker to avoid hammering a downed PAC bridge.

import (
	"context"
	"time"

	"nominamx/internal/infra"
	"nominamx/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	ReciboRepo repository.ReciboRepository
	Worker     *TimbradoWorker
	CB         *infra.CircuitBreaker
}

// StartRetryCron launches a background goroutine that ticks every 30s,
// queries recibos due for a retry, and re-runs the stamping pipeline for
// each. It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	// If CB is open, skip entirely — don't hammer a downed bridge
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	recibos, err := cfg.ReciboRepo.ListPendingRetries(ctx, time.Now(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending retries")
		return
	}
	if len(recibos) == 0 {
		return
	}

	log.Info().Int("count", len(recibos)).Msg("retry_cron: processing pending recibos")

	for i := range recibos {
		// Check CB state before each call — it may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}
		cfg.Worker.ProcesarRecibo(ctx, recibos[i].ID)
	}
}
