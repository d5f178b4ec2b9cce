package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sop-assistant/internal/ai"
	"sop-assistant/internal/auth"
	"sop-assistant/internal/config"
	"sop-assistant/internal/logger"
	"sop-assistant/internal/queue"
	"sop-assistant/internal/relay"
	"sop-assistant/internal/storage"
	"sop-assistant/internal/telemetry"
	"sop-assistant/internal/versionstore"
	"sop-assistant/middleware"
	"sop-assistant/routes"
	"sop-assistant/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)
	logger.Info("Starting SOP assistant", "port", cfg.Port, "mode", cfg.GinMode, "version_store", cfg.VersionStoreBackend)

	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName, cfg.OTelExporterEndpoint, 1.0)
	if err != nil {
		logger.Warn("Tracing unavailable", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics unavailable", "error", err)
	}

	checks := map[string]routes.HealthCheck{}

	// Redis backs the snapshot cache, rate limiting, token revocation and
	// the parse queue. Without it each of those degrades on its own.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without cache, queue or rate limiting", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	repo, closeRepo, err := openRepository(cfg, checks)
	if err != nil {
		logger.Error("Failed to open version store", "backend", cfg.VersionStoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	var storeOpts []versionstore.Option
	if rdb != nil {
		storeOpts = append(storeOpts, versionstore.WithCache(versionstore.NewRedisCache(rdb, cfg.CacheTTL)))
	}
	if metrics != nil {
		storeOpts = append(storeOpts, versionstore.WithRecorder(metrics))
	}
	store := versionstore.New(repo, storeOpts...)

	objects, err := openObjectStore(cfg)
	if err != nil {
		logger.Error("Failed to open object storage", "error", err)
		os.Exit(1)
	}

	var (
		observer      ai.StateObserver
		parseRecorder services.ParseRecorder
		probeRecorder relay.ProbeRecorder
	)
	if metrics != nil {
		observer, parseRecorder, probeRecorder = metrics, metrics, metrics
	}

	clients := ai.NewClients(cfg, observer)
	defer clients.Close()

	images := services.NewImageResolver(objects, cfg.SignedURLTTL)
	kb := services.NewKnowledgeBase(store, images)
	parser := services.NewSOPParser(objects, clients, cfg.SignedURLTTL, parseRecorder)
	chat := services.NewChatService(kb, clients, cfg.SystemInstruction)

	var assistant routes.Asker
	if cfg.ChatBackendURL != "" {
		relayClient := relay.NewClient(cfg.ChatBackendURL, cfg.ChatProbeTimeout)
		if probeRecorder != nil {
			relayClient.WithRecorder(probeRecorder)
		}
		assistant = services.NewAssistantService(relayClient, kb, cfg.Debug)
		logger.Info("Chat relay configured", "candidates", relayClient.Candidates())
	}

	var jobs routes.ParseJobs
	if rdb != nil {
		opt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			logger.Warn("Parse queue disabled", "error", err)
		} else {
			queueClient := queue.NewClient(opt)
			defer queueClient.Close()
			jobs = queueClient
		}
	}

	var (
		passphrase routes.PassphraseChecker
		tokens     routes.TokenService
		verifier   middleware.TokenVerifier
	)
	if cfg.AdminEnabled() {
		pass, err := auth.NewPassphrase(cfg.AdminPassphrase, cfg.BcryptCost)
		if err != nil {
			logger.Error("Failed to prepare admin passphrase", "error", err)
			os.Exit(1)
		}
		issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
		if err != nil {
			logger.Error("Failed to prepare token issuer", "error", err)
			os.Exit(1)
		}
		if rdb != nil {
			issuer.WithRevocation(rdb)
		}
		passphrase, tokens, verifier = pass, issuer, issuer
	} else {
		logger.Warn("ADMIN_PASSPHRASE not set, admin endpoints are disabled")
	}

	cron := services.NewCronService(store, cfg.CacheRefreshInterval)
	if rdb != nil {
		if err := cron.Start(); err != nil {
			logger.Warn("Cache refresh not scheduled", "error", err)
		}
		defer cron.Stop()
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(cfg.Debug))
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	// base64 inflates uploads by a third; leave room for the JSON envelope.
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize*4/3 + 1<<20))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, cfg.RateLimitWindow))

	routes.SetupHealthRoutes(router, checks)
	if mem, ok := objects.(*storage.MemoryStore); ok {
		router.GET("/files/*path", serveMemoryObject(mem))
	}

	api := router.Group("/api")
	adminOnly := middleware.AdminRequired(verifier)
	routes.SetupChatRoutes(api, chat, assistant)
	routes.SetupAdminRoutes(api, passphrase, tokens)
	routes.SetupSOPRoutes(api, adminOnly, kb, store)
	routes.SetupParseRoutes(api, adminOnly, parser, jobs, routes.ParseLimits{
		MaxFileSize: cfg.MaxFileSize,
		SyncLimit:   cfg.SyncProcessingLimit,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// openRepository connects the configured version store backend and registers
// its health check.
func openRepository(cfg *config.Config, checks map[string]routes.HealthCheck) (versionstore.Repository, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.VersionStoreBackend {
	case "postgres":
		repo, err := versionstore.NewPostgresRepository(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Initialize(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		checks["postgres"] = func(ctx context.Context) error {
			_, err := repo.Latest(ctx)
			return err
		}
		return repo, repo.Close, nil

	case "memory":
		logger.Warn("Using in-memory version store, versions are lost on restart")
		return versionstore.NewMemoryRepository(), func() {}, nil

	default:
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := versionstore.NewMongoRepository(client.Database(cfg.DBName))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to ensure version indexes", "error", err)
		}
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		return repo, disconnect(client), nil
	}
}

// serveMemoryObject serves objects from the in-process store so development
// setups get working image URLs.
func serveMemoryObject(mem *storage.MemoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Param("path"), "/")
		data, err := mem.Download(c.Request.Context(), path)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, mem.ContentType(path), data)
	}
}

func disconnect(client *mongo.Client) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client.Disconnect(ctx)
	}
}

// openObjectStore returns the S3-compatible bucket, or an in-process store
// when no credentials are configured.
func openObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.StorageAccessKey == "" || cfg.StorageSecretKey == "" {
		logger.Warn("Object storage credentials missing, using in-memory storage")
		return storage.NewMemoryStore("http://localhost:" + cfg.Port + "/files"), nil
	}
	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("Object storage ready", "endpoint", cfg.StorageEndpoint, "bucket", cfg.StorageBucket)
	return store, nil
}
