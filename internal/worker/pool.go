package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEmail = "jobs:email"
	// RetryEmail is a sorted set of email jobs scored by their next attempt (unix seconds).
	RetryEmail = "jobs:email:retry"

	JobTypeEmail = "email"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// JobHandler processes one job. Failures are handled inside the handler
// (retry or dead-letter); the pool only routes.
type JobHandler interface {
	Process(ctx context.Context, job Job)
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobTypeEmail, payload)
}

// SendMail queues a plain-text message. Delivery happens in the worker pool,
// so a slow SMTP relay never holds up a request.
func (d *Dispatcher) SendMail(ctx context.Context, to, subject, body string) error {
	return d.EnqueueEmail(ctx, EmailJobPayload{ToEmail: to, Subject: subject, Body: body})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the queues of the
// given handlers. Each goroutine blocks on BRPOP, zero CPU when idle. The
// returned WaitGroup is done once every worker saw ctx cancelled.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers map[string]JobHandler, numWorkers int) *sync.WaitGroup {
	queues := make([]string, 0, len(handlers))
	for q := range handlers {
		queues = append(queues, q)
	}
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, rdb, handlers, queues, id)
		}(i)
	}
	log.Info().Int("workers", numWorkers).Strs("queues", queues).Msg("worker pool started")
	return &wg
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers map[string]JobHandler, queues []string, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, handlers map[string]JobHandler, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	h, ok := handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("no handler for queue")
		return
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Int("attempts", job.Attempts).Msg("processing job")
	h.Process(ctx, job)
}
