package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/KrazyGenus/blip/internal/infra/config"
	"github.com/KrazyGenus/blip/internal/infra/httpapi"
	miniostorage "github.com/KrazyGenus/blip/internal/infra/minio"
	"github.com/KrazyGenus/blip/internal/infra/rabbitmq"
	"github.com/KrazyGenus/blip/internal/usecase"
	"github.com/KrazyGenus/blip/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting blip upload gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")

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

	uploads := usecase.NewUploadStage(storage, pub, log, usecase.UploadConfig{
		FrameQueue: cfg.FrameExtractQueue,
		AudioQueue: cfg.AudioExtractQueue,
	})

	router := mux.NewRouter()
	httpapi.NewUploadHandler(uploads, log).Register(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.GatewayPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	go func() {
		log.Info("upload gateway listening", zap.Int("port", cfg.GatewayPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("gateway server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("gateway shutdown error", zap.Error(err))
	}
	log.Info("blip upload gateway stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
