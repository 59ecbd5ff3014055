package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"referral-map/backend/internal/enrich"
	"referral-map/backend/internal/graph"
	"referral-map/backend/internal/lookup"
	"referral-map/backend/internal/services"
	"referral-map/backend/internal/store"
	"referral-map/backend/pkg/config"
	"referral-map/backend/pkg/logger"
)

func main() {
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
	log.Info("Starting referral map API server...")

	ctx := context.Background()

	var graphStore store.Store
	switch cfg.StoreBackend {
	case config.StoreNeo4j:
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			log.Fatal("Failed to create Neo4j driver", zap.Error(err))
		}
		defer driver.Close(ctx)

		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
		}
		repo := graph.NewRepository(driver)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to prepare Neo4j schema", zap.Error(err))
		}
		graphStore = repo
	default:
		graphStore = store.NewMemoryStore()
	}
	log.Info("Graph store ready", zap.String("backend", cfg.StoreBackend))

	var places lookup.Service
	if cfg.EnrichmentEnabled() {
		client := lookup.NewPlacesClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL, cfg.PlacesTimeout)
		places = lookup.WithQuerySuffix(client, cfg.PlacesQuerySuffix)
	} else {
		log.Warn("PLACES_API_KEY not set, enrichment disabled")
	}

	runner := enrich.NewRunner(enrich.WithLogger(log), enrich.WithQueryDelay(cfg.LookupDelay))
	svc := services.NewGraphService(graphStore, runner, places, log)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(svc, log, cfg.MaxUploadBytes)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
