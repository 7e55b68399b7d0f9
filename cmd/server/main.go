package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/infra"
	"github.com/kerm1977/plantilla1/internal/router"
	"github.com/kerm1977/plantilla1/internal/session"
	"github.com/kerm1977/plantilla1/internal/upload"
	"github.com/kerm1977/plantilla1/internal/worker"
)

func main() {
	replayDLQ := flag.Int("replay-dlq", 0, "move up to N dead-lettered mails back to the queue and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Pretty console output in development, JSON otherwise.
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to open database")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	if *replayDLQ > 0 {
		moved, err := worker.ReplayDLQ(context.Background(), rdb, worker.QueueEmail, *replayDLQ)
		if err != nil {
			log.Fatal().Err(err).Int("moved", moved).Msg("dlq replay failed")
		}
		log.Info().Int("moved", moved).Msg("dlq replay done")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var blobs upload.Blob
	switch cfg.FilesBackend {
	case "s3":
		blobs, err = upload.NewS3Blob(ctx, upload.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3PathStyle,
			Prefix:       "files",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure s3 storage")
		}
	default:
		blobs = upload.NewFSBlob(cfg.UploadDirs().Files)
	}

	// Mail goes through the Redis queue; the worker pool owns the SMTP
	// connection and the circuit breaker in front of it.
	dispatcher := worker.NewDispatcher(rdb)
	smtpCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("smtp"))
	handlers := map[string]worker.JobHandler{
		worker.QueueEmail: worker.NewEmailWorker(infra.NewMailer(cfg), smtpCB, rdb),
	}
	workers := worker.StartWorkerPool(ctx, rdb, handlers, cfg.WorkerPoolSize)
	worker.StartRetryCron(ctx, rdb, smtpCB)

	r := router.New(cfg, router.Deps{
		DB:     db,
		Redis:  rdb,
		Store:  session.NewRedisStore(rdb),
		Blobs:  blobs,
		Mailer: dispatcher,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("La Tribu backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	cancel()
	workers.Wait()
	_ = rdb.Close()
	log.Info().Msg("server exited")
}
