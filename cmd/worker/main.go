package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/infra/config"
	"github.com/KrazyGenus/blip/internal/infra/email"
	"github.com/KrazyGenus/blip/internal/infra/ffmpeg"
	"github.com/KrazyGenus/blip/internal/infra/inference"
	"github.com/KrazyGenus/blip/internal/infra/metrics"
	miniostorage "github.com/KrazyGenus/blip/internal/infra/minio"
	"github.com/KrazyGenus/blip/internal/infra/postgres"
	"github.com/KrazyGenus/blip/internal/infra/rabbitmq"
	"github.com/KrazyGenus/blip/internal/infra/redismark"
	"github.com/KrazyGenus/blip/internal/infra/tracing"
	"github.com/KrazyGenus/blip/internal/usecase"
	"github.com/KrazyGenus/blip/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting blip moderation worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")

	// Redis extraction marker
	marker, err := redismark.New(cfg.RedisURL)
	fatalOnErr(err, "connect to redis")
	defer marker.Close()

	// RabbitMQ
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq")
	defer rmqConn.Close()

	queues := []string{
		cfg.FrameExtractQueue,
		cfg.AudioExtractQueue,
		cfg.DedupQueue,
		cfg.FrameInferQueue,
		cfg.AudioInferQueue,
		cfg.TextModerateQueue,
	}
	fatalOnErr(rabbitmq.DeclareTopology(rmqConn, cfg.RabbitMQExchange, queues, cfg.DLQ), "declare topology")

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.DLQ)

	// Infra adapters
	repo := postgres.NewViolationRepository(pool)
	transcoder := ffmpeg.NewTranscoder(cfg.SceneThreshold, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	vision := inference.NewVisionClient(inference.VisionConfig{BaseURL: cfg.VisionURL, APIKey: cfg.VisionAPIKey})
	transcriber := inference.NewTranscribeClient(inference.TranscribeConfig{BaseURL: cfg.TranscribeURL, APIKey: cfg.TranscribeKey})
	textMod := inference.NewTextModClient(inference.TextModConfig{BaseURL: cfg.TextModURL, APIKey: cfg.TextModAPIKey})

	// Pipeline stages
	frameExtract := usecase.NewFrameExtractionStage(storage, transcoder, pub, dlqPub, marker, log,
		usecase.FrameExtractionConfig{
			TempDir:    cfg.TempDir,
			FrameDir:   cfg.FrameDir,
			Queue:      cfg.FrameExtractQueue,
			DedupQueue: cfg.DedupQueue,
		})
	audioExtract := usecase.NewAudioExtractionStage(storage, transcoder, pub, dlqPub, marker, log,
		usecase.AudioExtractionConfig{
			TempDir:    cfg.TempDir,
			AudioDir:   cfg.AudioDir,
			Queue:      cfg.AudioExtractQueue,
			InferQueue: cfg.AudioInferQueue,
		})
	dedup := usecase.NewDedupStage(pub, dlqPub, log, usecase.DedupConfig{
		Threshold:  cfg.DHashThreshold,
		Queue:      cfg.DedupQueue,
		InferQueue: cfg.FrameInferQueue,
	})
	batcher := usecase.NewFrameBatcher(vision, repo, dlqPub, log, usecase.FrameBatcherConfig{
		Queue:     cfg.FrameInferQueue,
		BatchSize: cfg.BatchSize,
		Timeout:   time.Duration(cfg.BatchTimeoutMs) * time.Millisecond,
	})
	audioInfer := usecase.NewAudioInferenceStage(transcriber, pub, dlqPub, log, usecase.AudioInferenceConfig{
		Queue:     cfg.AudioInferQueue,
		TextQueue: cfg.TextModerateQueue,
	})
	textModerate := usecase.NewTextModerationStage(textMod, repo, dlqPub, log, usecase.TextModerationConfig{
		Queue: cfg.TextModerateQueue,
	})

	notifyOnDead := func(ctx context.Context, body []byte, reason string) {
		var msg entity.AssetReadyMessage
		if err := json.Unmarshal(body, &msg); err != nil || msg.UserEmail == "" {
			return
		}
		_ = notifier.NotifyFailure(ctx, msg.UserEmail, msg.JobID.String(), msg.ObjectKey, reason)
	}

	baseDelay := time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
	consumers := []struct {
		cfg     rabbitmq.ConsumerConfig
		handler rabbitmq.Handler
	}{
		{
			cfg: rabbitmq.ConsumerConfig{
				Queue:       cfg.FrameExtractQueue,
				Concurrency: cfg.FrameWorkers,
				Prefetch:    cfg.RabbitMQPrefetch,
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   baseDelay,
				RatePerSec:  cfg.FrameRateLimit,
				OnDead:      notifyOnDead,
			},
			handler: frameExtract.Execute,
		},
		{
			cfg: rabbitmq.ConsumerConfig{
				Queue:       cfg.AudioExtractQueue,
				Concurrency: 1,
				Prefetch:    cfg.RabbitMQPrefetch,
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   baseDelay,
				OnDead:      notifyOnDead,
			},
			handler: audioExtract.Execute,
		},
		{
			cfg: rabbitmq.ConsumerConfig{
				Queue:       cfg.DedupQueue,
				Concurrency: 1,
				Prefetch:    cfg.RabbitMQPrefetch,
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   baseDelay,
			},
			handler: dedup.Execute,
		},
		{
			cfg: rabbitmq.ConsumerConfig{
				Queue:       cfg.FrameInferQueue,
				Concurrency: 1,
				Prefetch:    cfg.BatchSize,
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   baseDelay,
			},
			handler: batcher.Handle,
		},
		{
			cfg: rabbitmq.ConsumerConfig{
				Queue:       cfg.AudioInferQueue,
				Concurrency: 1,
				Prefetch:    cfg.RabbitMQPrefetch,
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   baseDelay,
			},
			handler: audioInfer.Execute,
		},
		{
			cfg: rabbitmq.ConsumerConfig{
				Queue:       cfg.TextModerateQueue,
				Concurrency: 1,
				Prefetch:    cfg.RabbitMQPrefetch,
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   baseDelay,
			},
			handler: textModerate.Execute,
		},
	}

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	// Scratch janitor
	janitor := usecase.NewJanitor(
		[]string{cfg.TempDir, cfg.FrameDir, cfg.AudioDir},
		time.Duration(cfg.JanitorIntervalMin)*time.Minute,
		time.Duration(cfg.JanitorMaxAgeMin)*time.Minute,
		log,
	)
	go janitor.Run(ctx)

	var wg sync.WaitGroup
	started := make([]*rabbitmq.Consumer, 0, len(consumers))
	for _, c := range consumers {
		consumer, err := rabbitmq.NewConsumer(rmqConn, c.cfg, c.handler, dlqPub, log)
		fatalOnErr(err, "create consumer for "+c.cfg.Queue)
		started = append(started, consumer)

		wg.Add(1)
		go func(consumer *rabbitmq.Consumer, queue string) {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil {
				log.Error("consumer error", zap.String("queue", queue), zap.Error(err))
				cancel()
			}
		}(consumer, c.cfg.Queue)
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("blip moderation worker started, consuming messages")

	wg.Wait()

	// Flush any frames held by the batcher before tearing down.
	batcher.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	for _, consumer := range started {
		consumer.Close()
	}
	log.Info("blip moderation worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
