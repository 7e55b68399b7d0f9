package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces dead letters per source queue: dlq:jobs:email.
const DLQPrefix = "dlq:"

// DLQEntry is a mail that could not be delivered, kept for inspection and
// replay. Payload is the original job payload untouched.
type DLQEntry struct {
	Queue    string          `json:"queue"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
}

// SendToDLQ parks job under dlq:<queue>. Failures here are only logged; the
// job is lost in that case.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, job Job, reason string) {
	data, err := json.Marshal(DLQEntry{
		Queue:    queue,
		Type:     job.Type,
		Payload:  job.Payload,
		Attempts: job.Attempts,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	})
	if err == nil {
		err = rdb.LPush(ctx, DLQPrefix+queue, data).Err()
	}
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Str("job_type", job.Type).Msg("dlq: could not park job")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Int("attempts", job.Attempts).
		Str("reason", reason).
		Msg("dlq: job parked")
}

func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// ReplayDLQ moves up to limit dead letters (oldest first) back onto queue with
// a fresh attempt count, e.g. after the SMTP relay has been fixed.
func ReplayDLQ(ctx context.Context, rdb *redis.Client, queue string, limit int) (int, error) {
	moved := 0
	for moved < limit {
		raw, err := rdb.RPop(ctx, DLQPrefix+queue).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return moved, err
		}
		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dlq: dropping unreadable entry")
			continue
		}
		if err := push(ctx, rdb, queue, Job{Type: entry.Type, Payload: entry.Payload}); err != nil {
			// put it back where it was
			_ = rdb.RPush(ctx, DLQPrefix+queue, raw).Err()
			return moved, fmt.Errorf("dlq: replay: %w", err)
		}
		moved++
	}
	if moved > 0 {
		log.Info().Str("queue", queue).Int("moved", moved).Msg("dlq: replayed")
	}
	return moved, nil
}
