package main

import (
	"fmt"

	"github.com/UnknownOlympus/skolmap/internal/cache"
	"github.com/UnknownOlympus/skolmap/internal/config"
	"github.com/UnknownOlympus/skolmap/internal/dataset"
	"github.com/UnknownOlympus/skolmap/internal/geocoding"
	"github.com/UnknownOlympus/skolmap/internal/models"
	"github.com/UnknownOlympus/skolmap/internal/render"
	"github.com/spf13/cobra"
)

// newRenderCmd builds the cache-only command: regenerate the maps and the
// enriched dataset purely from the caches, with zero network calls. Rows
// without a positively cached address and coordinate pair are skipped.
func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render the maps from cached data only, no network access",
		RunE:  renderFromCache,
	}
}

func renderFromCache(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg := config.MustLoad()
	logger := setupLogger(cfg.Env)

	records, err := dataset.Read(cfg.Input.Path, dataset.Options{
		Separator: cfg.Input.SeparatorRune(),
		SkipRows:  cfg.Input.SkipRows,
		Columns:   cfg.Input.Columns,
	})
	if err != nil {
		return fmt.Errorf("failed to read input dataset: %w", err)
	}

	addrStore := cache.NewStore[string](cfg.Cache.AddressPath, logger)
	coordStore := cache.NewStore[[]float64](cfg.Cache.CoordinatePath, logger)
	logger.InfoContext(ctx, "Caches loaded",
		"addresses", addrStore.Len(), "coordinates", coordStore.Len())

	enriched := make([]models.EnrichedRecord, 0, len(records))
	for _, record := range records {
		addr, ok := addrStore.Lookup(record.ID)
		if !ok || addr == nil {
			continue
		}

		pair, ok := coordStore.Lookup(geocoding.CacheKey(addr, record.Municipality))
		if !ok || pair == nil || len(*pair) != 2 {
			continue
		}

		enriched = append(enriched, models.EnrichedRecord{
			SchoolRecord: record,
			Address:      *addr,
			Latitude:     (*pair)[0],
			Longitude:    (*pair)[1],
		})
	}

	if len(enriched) == 0 {
		return fmt.Errorf("no cached rows to render, run the pipeline first")
	}
	logger.InfoContext(ctx, "Rendering from cache", "rows", len(enriched))

	if err = dataset.Write(cfg.Output.Enriched, enriched); err != nil {
		return fmt.Errorf("failed to write enriched dataset: %w", err)
	}
	if err = render.WriteMeritMap(cfg.Output.MeritMap, enriched); err != nil {
		return fmt.Errorf("failed to render merit map: %w", err)
	}
	if err = render.WriteRankedMap(cfg.Output.RankedMap, enriched); err != nil {
		return fmt.Errorf("failed to render ranked map: %w", err)
	}

	return nil
}
