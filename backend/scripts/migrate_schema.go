package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"referral-map/backend/internal/graph"
	"referral-map/backend/pkg/config"
	"referral-map/backend/pkg/logger"
)

func main() {
	force := flag.Bool("force", false, "Force migration even if already applied")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Neo4j schema migration...", zap.String("version", graph.SchemaVersion))

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver)

	// Check if migration already applied
	if !*force {
		applied, err := repo.SchemaApplied(ctx)
		if err != nil {
			log.Fatal("Failed to check migration status", zap.Error(err))
		}
		if applied {
			log.Info("Migration already applied. Use -force to reapply.")
			os.Exit(0)
		}
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	// Mark migration as applied
	if err := repo.MarkSchemaApplied(ctx); err != nil {
		log.Warn("Failed to mark migration as applied", zap.Error(err))
	}

	log.Info("Migration completed successfully!")
}
