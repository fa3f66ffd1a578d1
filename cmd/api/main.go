package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"facebook-group-scraper/internal/api"
	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/database"
	"facebook-group-scraper/internal/monitoring"
	"facebook-group-scraper/internal/utils"
)

func main() {
	var (
		configFile = flag.String("config", "configs/config.yaml", "Configuration file path")
		port       = flag.Int("port", 0, "API server port (default from config)")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLog, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	if *port == 0 {
		*port = cfg.API.Port
	}
	monitor := monitoring.NewMonitor(logger, cfg.Monitor)
	server := api.NewServer(db, monitor, logger, *port)

	logger.Info("Available endpoints:")
	logger.Info("  GET    /api/posts - List posts with pagination")
	logger.Info("  GET    /api/posts/{id} - Get one post")
	logger.Info("  DELETE /api/posts/{id} - Delete one post")
	logger.Info("  GET    /api/groups - Post counts per group")
	logger.Info("  GET    /api/groups/{group}/posts - Get posts by group")
	logger.Info("  GET    /api/stats - Get scraping statistics")
	logger.Info("  GET    /api/authors - Most active authors")
	logger.Info("  GET    /api/trends - Daily post volume")
	logger.Info("  GET    /api/export/csv - Export posts to CSV")
	logger.Info("  GET    /api/export/json - Export posts to JSON")
	logger.Info("  GET    /api/metrics - Scraper run metrics")
	logger.Info("  GET    /api/health - Health check")
	logger.Info("  GET    /dashboard - Chart dashboard")

	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
