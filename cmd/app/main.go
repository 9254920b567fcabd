package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"AnchorPull/internal/di"
	"AnchorPull/pkg/config"
	"AnchorPull/pkg/util"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "run", "run | backfill | serve")
	asOf := flag.String("as-of", "", "evaluation date YYYY-MM-DD (default: latest trading day)")
	from := flag.String("from", "", "backfill start date YYYY-MM-DD")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s universe=%d benchmark=%s", cfg.Environment, len(cfg.Universe.Symbols), cfg.Universe.Benchmark)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	switch *mode {
	case "run":
		date := util.ParseDateDefault(*asOf, util.LatestTradingDay(time.Now().UTC()))
		summary, err := app.RunOnce(context.Background(), date)
		if err != nil {
			log.Printf("run failed: %v", err)
		}
		os.Exit(summary.ExitCode())

	case "backfill":
		if *from == "" {
			log.Fatal("backfill requires -from YYYY-MM-DD")
		}
		start, err := util.ParseDate(*from)
		if err != nil {
			log.Fatalf("bad -from: %v", err)
		}
		summary, err := app.RunBackfill(context.Background(), start)
		if err != nil {
			log.Printf("backfill failed: %v", err)
		}
		os.Exit(summary.ExitCode())

	case "serve":
		if err := app.Serve(); err != nil {
			log.Printf("app error: %v", err)
			os.Exit(1)
		}

	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}
