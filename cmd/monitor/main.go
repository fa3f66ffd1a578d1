package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/database"
	"facebook-group-scraper/internal/monitoring"
	"facebook-group-scraper/internal/utils"
	"facebook-group-scraper/pkg/types"
)

func main() {
	var (
		configFile  = flag.String("config", "configs/config.yaml", "Configuration file path")
		metricsFile = flag.String("metrics", "", "Metrics file path (default from config)")
		report      = flag.Bool("report", false, "Generate and display monitoring report")
		alerts      = flag.Bool("alerts", false, "Check and display alerts")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *metricsFile != "" {
		cfg.Monitor.MetricsFile = *metricsFile
	}

	logger, closeLog, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	monitor := monitoring.NewMonitor(logger, cfg.Monitor)

	if *report {
		fmt.Println(monitor.GenerateReport())

		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		stats, err := db.GetStats(context.Background(), types.DefaultHighEngagementThreshold)
		if err != nil {
			logger.Errorf("Failed to get database stats: %v", err)
			return
		}
		fmt.Println("\nDatabase Statistics:")
		fmt.Printf("- Total Posts: %d\n", stats.TotalPosts)
		fmt.Printf("- High Engagement Posts: %d\n", stats.HighEngagementPosts)
		fmt.Printf("- Average Likes: %.2f\n", stats.AverageLikes)
		fmt.Printf("- Groups Scraped: %d\n", stats.GroupsScraped)
		fmt.Printf("- Last Scraped: %s\n", stats.LastScrapedAt)
		return
	}

	if *alerts {
		alertManager := monitoring.NewAlertManager(monitor, logger)
		active := alertManager.CheckAlerts()

		if len(active) == 0 {
			fmt.Println("No alerts - system is healthy")
		} else {
			fmt.Println("Active Alerts:")
			for _, alert := range active {
				fmt.Printf("  - %s\n", alert)
			}
		}
		return
	}

	health := monitor.GetHealthStatus()
	fmt.Println("Facebook Scraper Status:")
	fmt.Printf("- Status: %s\n", health.Status)
	fmt.Printf("- Last Run: %s\n", health.LastRun)
	fmt.Printf("- Total Runs: %d\n", health.TotalRuns)
	fmt.Printf("- Error Rate: %s\n", health.ErrorRate)
	fmt.Printf("- Average Runtime: %s\n", health.AverageRuntime)
	if health.Warning != "" {
		fmt.Printf("- Warning: %s\n", health.Warning)
	}
}
