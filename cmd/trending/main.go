package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/services"
)

// One trending calculation, for cron or serverless schedulers. Prints the
// summary as JSON and exits non-zero when any document failed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	db, err := database.Connect(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collections := &services.CollectionService{DB: db}
	trending := services.NewTrendingService(db, collections, cfg.TrendingCollections, cfg.TrendingConcurrency)

	summary, err := trending.Calculate(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("Trending calculation failed")
	}

	output, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to marshal trending summary")
	}
	fmt.Println(string(output))

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
