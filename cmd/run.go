package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/UnknownOlympus/skolmap/internal/cache"
	"github.com/UnknownOlympus/skolmap/internal/config"
	"github.com/UnknownOlympus/skolmap/internal/dataset"
	"github.com/UnknownOlympus/skolmap/internal/geocoding"
	"github.com/UnknownOlympus/skolmap/internal/metrics"
	"github.com/UnknownOlympus/skolmap/internal/render"
	"github.com/UnknownOlympus/skolmap/internal/scraper"
	"github.com/UnknownOlympus/skolmap/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// newRunCmd builds the full pipeline command: read the register export,
// resolve addresses and coordinates, write the enriched dataset and both
// maps.
func newRunCmd() *cobra.Command {
	var topN int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich the dataset and render the maps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, topN)
		},
	}
	cmd.Flags().IntVar(&topN, "top", 0, "process only the top N schools by merit value (0 = all)")

	return cmd
}

func runPipeline(cmd *cobra.Command, topN int) error {
	// Cancel on interrupt so a long run still checkpoints its caches.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	logger := setupLogger(cfg.Env)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	if cfg.Monitor.Port > 0 {
		go startMonitoringServer(ctx, logger, reg, cfg.Monitor.Port)
	}

	records, err := dataset.Read(cfg.Input.Path, dataset.Options{
		Separator: cfg.Input.SeparatorRune(),
		SkipRows:  cfg.Input.SkipRows,
		Columns:   cfg.Input.Columns,
	})
	if err != nil {
		return fmt.Errorf("failed to read input dataset: %w", err)
	}
	logger.InfoContext(ctx, "Dataset loaded", "rows", len(records))

	if topN > 0 && len(records) > topN {
		records = records[:topN]
		logger.InfoContext(ctx, "Limited to top schools by merit value", "top", topN)
	}

	addrStore := cache.NewStore[string](cfg.Cache.AddressPath, logger)
	coordStore := cache.NewStore[[]float64](cfg.Cache.CoordinatePath, logger)
	logger.InfoContext(ctx, "Caches loaded",
		"addresses", addrStore.Len(), "coordinates", coordStore.Len())

	providerType := geocoding.ProviderType(cfg.Geocoder.Provider)
	providerCfg := geocoding.ProviderConfig{
		Type:      providerType,
		RateLimit: cfg.Geocoder.RateLimit,
		Logger:    logger,
	}
	if providerType == geocoding.ProviderTypeGoogle {
		key, keyErr := config.LoadAPIKey(cfg.Geocoder.KeyFile)
		if keyErr != nil {
			return fmt.Errorf("geocoding credential missing: %w", keyErr)
		}
		providerCfg.APIKey = key
	}

	provider, err := geocoding.NewProvider(providerCfg)
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}
	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.Geocoder.Provider)

	resolverOpts := geocoding.DefaultResolverOptions(providerType, cfg.Geocoder.Country)
	if cfg.Geocoder.RetryDelay > 0 {
		resolverOpts.RetryDelay = cfg.Geocoder.RetryDelay
	}

	addresses := scraper.NewResolver(cfg.Scraper.BaseURL, addrStore, logger)
	geocoder := geocoding.NewResolver(provider, coordStore, resolverOpts, logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.Scraper.RateLimit), 1)

	pipeline := service.NewPipeline(
		logger, addresses, geocoder, appMetrics, limiter,
		cfg.Cache.FlushEvery, true, addrStore, coordStore,
	)

	enriched, stats := pipeline.Run(ctx, records)
	if len(enriched) == 0 {
		return fmt.Errorf("no rows could be enriched (%d processed)", stats.Processed)
	}

	if err = dataset.Write(cfg.Output.Enriched, enriched); err != nil {
		return fmt.Errorf("failed to write enriched dataset: %w", err)
	}
	if err = render.WriteMeritMap(cfg.Output.MeritMap, enriched); err != nil {
		return fmt.Errorf("failed to render merit map: %w", err)
	}
	if err = render.WriteRankedMap(cfg.Output.RankedMap, enriched); err != nil {
		return fmt.Errorf("failed to render ranked map: %w", err)
	}

	logger.InfoContext(ctx, "Run complete",
		"processed", stats.Processed,
		"mapped", stats.Enriched,
		"cache_hits", stats.CacheHits,
		"failed_addresses", stats.FailedAddresses,
		"failed_geocoding", stats.FailedGeocoding,
	)

	return nil
}
