package main

import (
	"context"
	"os"
	"time"

	"cian-scraper/config"
	"cian-scraper/imagepipe"
	"cian-scraper/mapping"
	"cian-scraper/pipeline"
	"cian-scraper/scraper/cian"
	"cian-scraper/services"
	"cian-scraper/storage"
	"cian-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Cian Rental Pipeline starting ===")
	logger.Info("Config — pages: %d | concurrency: %d | rate: %dms | refresh quota: %d",
		cfg.PagesToScrape, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.ImageRefreshQuota)

	table, err := mapping.Load(cfg.MappingTablePath)
	if err != nil {
		logger.Error("Mapping table failed to load: %v", err)
		os.Exit(1)
	}
	logger.Info("Mapping table ready — %d canonical columns", len(table.Columns()))

	store, err := openStore(cfg, table, logger)
	if err != nil {
		logger.Error("Failed to open listing store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	searchCfg, err := cian.LoadSearchConfig(cfg.SearchConfigPath)
	if err != nil {
		logger.Error("Search config failed to load: %v", err)
		os.Exit(1)
	}

	known, err := store.Load()
	if err != nil {
		logger.Error("Failed to read stored listings: %v", err)
		os.Exit(1)
	}
	var knownIDs []string
	for id, rec := range known {
		if !rec.Removed {
			knownIDs = append(knownIDs, id)
		}
	}

	ctx := context.Background()

	cianScraper := cian.New(cfg, searchCfg, logger)
	rawListings, err := cianScraper.Scrape(ctx, knownIDs)
	if err != nil {
		logger.Error("Cian scrape failed: %v", err)
	}
	if len(rawListings) == 0 {
		logger.Error("No listings were scraped. Exiting.")
		os.Exit(1)
	}

	logger.Info("Scraped %d raw listings — running pipeline...", len(rawListings))

	retry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
	}
	images := imagepipe.NewClient(cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubWorkflow, cfg.GitHubToken, retry, logger)
	if !images.Enabled() {
		logger.Warn("Image pipeline disabled — no GitHub token/repo configured")
	}

	normalizer := services.NewNormalizer(table, logger)
	detector := services.NewDetector(cfg.VisualKeys, logger)
	selector := services.NewRefreshSelector(cfg.ImageRefreshQuota, detector.VisualKeys(), logger)

	p := pipeline.New(normalizer, detector, selector, store, pipeline.Options{
		Images:      images,
		Concurrency: cfg.MaxConcurrency,
	}, logger)

	summary, err := p.Run(ctx, rawListings)
	if err != nil {
		logger.Error("Pipeline run failed: %v", err)
		os.Exit(1)
	}

	services.NewReportService(logger).Print(summary)
}

func openStore(cfg *config.Config, table *mapping.Table, logger *utils.Logger) (storage.ListingStore, error) {
	if cfg.StoreBackend == "postgres" {
		logger.Info("Using PostgreSQL listing store")
		return storage.NewPostgresStore(cfg.DSN(), table)
	}
	logger.Info("Using CSV listing store at %s", cfg.CSVStorePath)
	return storage.NewCSVStore(cfg.CSVStorePath, table)
}
