package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lotorder-engine/internal/artifact"
	"lotorder-engine/internal/config"
	"lotorder-engine/internal/handler"
	"lotorder-engine/internal/qr"
	"lotorder-engine/internal/repository"
	"lotorder-engine/internal/router"
	"lotorder-engine/internal/service"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting LotOrder engine...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Dealership configs always live in SQLite
	dealershipRepo, err := repository.NewSQLiteDealershipRepository(cfg.HistoryDB.DealershipPath)
	if err != nil {
		log.Fatalf("Failed to initialize dealership repository: %v", err)
	}
	defer dealershipRepo.Close()
	log.Println("SQLite dealership repository initialized")

	// Build the partition registry up front when the partitioned layout is
	// active, so table names are fixed before any order runs.
	var registry *repository.PartitionRegistry
	if cfg.HistoryDB.Layout == "partitioned" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		registry, err = repository.BuildPartitionRegistry(ctx, dealershipRepo, cfg.HistoryDB.Overrides())
		cancel()
		if err != nil {
			log.Fatalf("Failed to build partition registry: %v", err)
		}
		log.Printf("Partition registry built: %d dealership tables", registry.Len())
	}

	// Initialize history store based on config
	var historyStore repository.HistoryStore
	var mysqlDB *sql.DB

	switch cfg.HistoryDB.Type {
	case "mysql":
		mysqlDB, err = sql.Open("mysql", cfg.Database.DSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)
		if err := mysqlDB.Ping(); err != nil {
			log.Fatalf("MySQL ping failed: %v", err)
		}

		if cfg.HistoryDB.Layout == "partitioned" {
			historyStore, err = repository.NewPartitionedMySQLHistoryStore(mysqlDB, registry)
		} else {
			historyStore, err = repository.NewMySQLHistoryStore(mysqlDB)
		}
		if err != nil {
			log.Fatalf("Failed to initialize MySQL history store: %v", err)
		}
		log.Printf("MySQL history store initialized (%s layout)", cfg.HistoryDB.Layout)
	default: // sqlite
		if cfg.HistoryDB.Layout == "partitioned" {
			historyStore, err = repository.NewPartitionedSQLiteHistoryStore(cfg.HistoryDB.Path, registry)
		} else {
			historyStore, err = repository.NewSQLiteHistoryStore(cfg.HistoryDB.Path)
		}
		if err != nil {
			log.Fatalf("Failed to initialize SQLite history store: %v", err)
		}
		log.Printf("SQLite history store initialized (%s layout)", cfg.HistoryDB.Layout)
	}
	defer historyStore.Close()
	if mysqlDB != nil {
		defer mysqlDB.Close()
	}

	// Initialize Redis client (job locks and job status)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v (locks are in-process only)", err)
		redisClient = nil
	} else {
		log.Println("Redis client initialized")
	}
	cancel()

	// Job status store: Redis when available, in-memory otherwise
	var statusStore service.StatusStore
	if redisClient != nil {
		statusStore = service.NewRedisStatusStore(redisClient)
	} else {
		statusStore = service.NewMemoryStatusStore()
	}

	locker := service.NewDealershipLocker(redisClient, cfg.Cache.LockLeaseTTL)

	// QR pipeline
	generator := qr.NewHTTPGenerator(qr.HTTPGeneratorConfig{
		BaseURL:     cfg.QR.BaseURL,
		SizePixels:  cfg.QR.SizePixels,
		CallTimeout: cfg.QR.CallTimeout,
	})
	sequencer := artifact.NewSequencer(generator, artifact.Config{
		Workers:     cfg.QR.Workers,
		Retries:     cfg.QR.Retries,
		CallTimeout: cfg.QR.CallTimeout,
	})

	orderService := service.NewOrderService(
		dealershipRepo,
		historyStore,
		sequencer,
		locker,
		statusStore,
		service.OrderConfig{
			ExportDir:     cfg.Order.ExportDir,
			JobTimeout:    cfg.Order.JobTimeout,
			DefaultQRRoot: cfg.Order.QRRoot,
		},
	)
	if orderService == nil {
		log.Fatal("Failed to initialize order service")
	}

	// Artifact retention sweeper
	var sweeper *service.ArtifactSweeper
	if cfg.Sweeper.Enabled {
		sweeper = service.NewArtifactSweeper(service.SweeperConfig{
			Roots:         []string{cfg.Order.QRRoot},
			Retention:     cfg.Sweeper.Retention,
			SweepInterval: cfg.Sweeper.SweepInterval,
		})
		sweeper.Start()
		log.Println("Artifact sweeper started")
	}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	orderHandler := handler.NewOrderHandler(orderService, statusStore)
	dealershipHandler := handler.NewDealershipHandler(dealershipRepo)
	adminHandler := handler.NewAdminHandler(historyStore, dealershipRepo, cfg.HistoryDB.Layout)

	// Create router
	r := router.New(router.Config{
		Handler:           healthHandler,
		OrderHandler:      orderHandler,
		DealershipHandler: dealershipHandler,
		AdminHandler:      adminHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sweeper != nil {
		sweeper.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
