package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"sop-assistant/internal/config"
	"sop-assistant/internal/logger"
	"sop-assistant/internal/versionstore"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  init     - Create version store indexes or tables")
		fmt.Println("  current  - Print the current version and its section count")
		fmt.Println("  history  - List the most recent versions")
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo, initialize, closeRepo, err := open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open version store: %v", err)
	}
	defer closeRepo()

	store := versionstore.New(repo)

	switch command {
	case "init":
		if err := initialize(ctx); err != nil {
			log.Fatalf("Initialization failed: %v", err)
		}
		fmt.Printf("Version store (%s) initialized\n", cfg.VersionStoreBackend)

	case "current":
		versions, err := store.Versions(ctx, 1)
		if err != nil {
			log.Fatalf("Failed to read current version: %v", err)
		}
		if len(versions) == 0 {
			fmt.Println("No versions committed yet")
			return
		}
		v := versions[0]
		fmt.Printf("%s  %s  %d sections  %s\n", v.VersionID, v.CreatedAt.Format(time.RFC3339), v.SectionCount, v.ContentHash)

	case "history":
		versions, err := store.Versions(ctx, 20)
		if err != nil {
			log.Fatalf("Failed to list versions: %v", err)
		}
		for _, v := range versions {
			fmt.Printf("%s  %s  %3d sections  %s\n", v.VersionID, v.CreatedAt.Format(time.RFC3339), v.SectionCount, v.ContentHash[:12])
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func open(ctx context.Context, cfg *config.Config) (versionstore.Repository, func(context.Context) error, func(), error) {
	switch cfg.VersionStoreBackend {
	case "postgres":
		repo, err := versionstore.NewPostgresRepository(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, repo.Initialize, repo.Close, nil
	case "mongo":
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := versionstore.NewMongoRepository(client.Database(cfg.DBName))
		return repo, repo.EnsureIndexes, func() { client.Disconnect(context.Background()) }, nil
	default:
		return nil, nil, nil, fmt.Errorf("backend %q has nothing to migrate", cfg.VersionStoreBackend)
	}
}
