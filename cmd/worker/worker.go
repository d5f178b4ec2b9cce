package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sop-assistant/internal/ai"
	"sop-assistant/internal/config"
	"sop-assistant/internal/logger"
	"sop-assistant/internal/queue"
	"sop-assistant/internal/storage"
	"sop-assistant/internal/telemetry"
	"sop-assistant/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName+"-worker", cfg.OTelExporterEndpoint, 1.0)
	if err != nil {
		logger.Warn("Tracing unavailable", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	// The worker reads documents the API staged, so both must share a bucket.
	if cfg.StorageAccessKey == "" || cfg.StorageSecretKey == "" {
		log.Fatal("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required for the worker")
	}
	objects, err := storage.NewMinioStore(cfg)
	if err != nil {
		log.Fatal("Failed to open object storage:", err)
	}

	var (
		observer ai.StateObserver
		recorder services.ParseRecorder
	)
	if metrics, err := telemetry.InitMetrics(); err != nil {
		logger.Warn("Metrics unavailable", "error", err)
	} else {
		observer, recorder = metrics, metrics
	}

	clients := ai.NewClients(cfg, observer)
	defer clients.Close()

	parser := services.NewSOPParser(objects, clients, cfg.SignedURLTTL, recorder)
	processor := queue.NewTaskProcessor(parser)

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority:  true,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	processor.Register(mux)

	logger.Info("Starting parse worker", "concurrency", 4, "redis", redisOpt.Addr)
	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	server.Shutdown()
}
