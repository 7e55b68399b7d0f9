package worker

// retry_cron.go
// Background goroutine that moves email jobs whose retry time has come back
// into QueueEmail. Skips ticks while the SMTP circuit breaker is open so a
// dead relay does not burn the remaining attempts.

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kerm1977/plantilla1/internal/infra"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 50
)

// StartRetryCron launches the retry goroutine. It respects ctx for graceful
// shutdown.
func StartRetryCron(ctx context.Context, rdb *redis.Client, cb *infra.CircuitBreaker) {
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
				if cb.State() == infra.CBOpen {
					log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
					continue
				}
				if n, err := promoteDue(ctx, rdb, time.Now()); err != nil {
					log.Error().Err(err).Msg("retry_cron: failed to promote retries")
				} else if n > 0 {
					log.Info().Int("count", n).Msg("retry_cron: retries re-queued")
				}
			}
		}
	}()
}

// promoteDue moves jobs scheduled at or before now from RetryEmail to
// QueueEmail. ZREM decides ownership, so two instances never queue the same
// job twice.
func promoteDue(ctx context.Context, rdb *redis.Client, now time.Time) (int, error) {
	due, err := rdb.ZRangeByScore(ctx, RetryEmail, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: retryBatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, member := range due {
		removed, err := rdb.ZRem(ctx, RetryEmail, member).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := rdb.LPush(ctx, QueueEmail, member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
