package worker

// email_worker.go
// Processes email jobs from QueueEmail: password-reset links and other
// plain-text notices. Sends through the circuit breaker; failures are
// rescheduled with exponential backoff and end in the DLQ.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kerm1977/plantilla1/internal/infra"
)

const (
	MaxEmailAttempts = 5
	baseEmailBackoff = 30 * time.Second
	maxEmailBackoff  = 30 * time.Minute
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers one message; *infra.Mailer in production.
type Sender interface {
	Send(to, subject, body string) error
}

type EmailWorker struct {
	sender Sender
	cb     *infra.CircuitBreaker
	rdb    *redis.Client
	now    func() time.Time
}

func NewEmailWorker(sender Sender, cb *infra.CircuitBreaker, rdb *redis.Client) *EmailWorker {
	return &EmailWorker{sender: sender, cb: cb, rdb: rdb, now: time.Now}
}

func (w *EmailWorker) Process(ctx context.Context, job Job) {
	var payload EmailJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		SendToDLQ(ctx, w.rdb, QueueEmail, job, "invalid payload: "+err.Error())
		return
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return
	}

	err := w.cb.Execute(func() error {
		return w.sender.Send(payload.ToEmail, payload.Subject, payload.Body)
	})
	if err != nil {
		w.retry(ctx, job, err)
		return
	}
	log.Info().Str("subject", payload.Subject).Int("attempts", job.Attempts+1).Msg("email_worker: message sent")
}

// retry schedules the next attempt or, once MaxEmailAttempts is reached,
// moves the job to the DLQ.
func (w *EmailWorker) retry(ctx context.Context, job Job, cause error) {
	job.Attempts++
	if job.Attempts >= MaxEmailAttempts {
		SendToDLQ(ctx, w.rdb, QueueEmail, job, fmt.Sprintf("max attempts (%d) exceeded: %v", MaxEmailAttempts, cause))
		return
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		log.Error().Err(err).Msg("email_worker: failed to marshal retry")
		return
	}
	next := w.now().Add(emailBackoff(job.Attempts))
	if err := w.rdb.ZAdd(ctx, RetryEmail, redis.Z{Score: float64(next.Unix()), Member: encoded}).Err(); err != nil {
		log.Error().Err(err).Msg("email_worker: failed to schedule retry")
		return
	}
	log.Warn().
		Err(cause).
		Int("attempts", job.Attempts).
		Time("next_attempt", next).
		Msg("email_worker: send failed, retry scheduled")
}

// emailBackoff is 30s, 1m, 2m, ... capped at 30m.
func emailBackoff(attempt int) time.Duration {
	d := baseEmailBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxEmailBackoff {
			return maxEmailBackoff
		}
	}
	return d
}
