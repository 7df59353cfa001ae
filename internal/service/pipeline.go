// Package service drives the resolution pipeline over the school dataset:
// address extraction, then geocoding, with write-through caches, periodic
// checkpoints and rate-limited network access.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/skolmap/internal/metrics"
	"github.com/UnknownOlympus/skolmap/internal/models"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// AddressResolver resolves a school unit code to a street address, reporting
// whether the answer came from the cache.
type AddressResolver interface {
	Resolve(ctx context.Context, id string) (*string, bool)
}

// GeocodeResolver resolves an address (possibly absent) and a municipality to
// coordinates, reporting whether the answer came from the cache.
type GeocodeResolver interface {
	Resolve(ctx context.Context, addr *string, municipality string) (*models.Coordinates, bool)
}

// Flusher checkpoints a cache to durable storage.
type Flusher interface {
	Flush() error
}

// Stats are the purely observational counters of one pipeline run.
type Stats struct {
	Processed       int // Rows taken from the dataset.
	Enriched        int // Rows that obtained coordinates.
	CacheHits       int // Rows whose address came from the cache.
	FailedAddresses int // Rows without a street address.
	FailedGeocoding int // Rows dropped because no candidate query matched.
}

// Pipeline orchestrates the two resolution stages for every dataset row.
// Processing is single-threaded and sequential; the caches are flushed every
// flushEvery rows and once unconditionally at the end, so a long run never
// loses more than one checkpoint of progress.
type Pipeline struct {
	log        *slog.Logger
	addresses  AddressResolver
	geocoder   GeocodeResolver
	caches     []Flusher
	metrics    *metrics.Metrics
	limiter    *rate.Limiter
	flushEvery int
	progress   bool
}

// NewPipeline creates a resolution pipeline. The limiter is applied only
// after rows that triggered a real network fetch, so fully cached re-runs
// complete near-instantly.
func NewPipeline(
	log *slog.Logger,
	addresses AddressResolver,
	geocoder GeocodeResolver,
	appMetrics *metrics.Metrics,
	limiter *rate.Limiter,
	flushEvery int,
	progress bool,
	caches ...Flusher,
) *Pipeline {
	if flushEvery < 1 {
		flushEvery = 100
	}

	return &Pipeline{
		log:        log,
		addresses:  addresses,
		geocoder:   geocoder,
		caches:     caches,
		metrics:    appMetrics,
		limiter:    limiter,
		flushEvery: flushEvery,
		progress:   progress,
	}
}

// Run processes the records in order and returns the enriched subset plus the
// run counters. Rows that fail either stage are counted and dropped, never
// retried within the run. Context cancellation stops the run between rows;
// the caches are still flushed before returning.
func (p *Pipeline) Run(ctx context.Context, records []models.SchoolRecord) ([]models.EnrichedRecord, Stats) {
	var stats Stats
	enriched := make([]models.EnrichedRecord, 0, len(records))

	var bar *progressbar.ProgressBar
	if p.progress {
		bar = progressbar.Default(int64(len(records)), "resolving")
	}

	p.log.InfoContext(ctx, "Resolution pipeline started", "rows", len(records))

	for idx, record := range records {
		if ctx.Err() != nil {
			p.log.WarnContext(ctx, "Pipeline interrupted", "processed", stats.Processed)
			break
		}

		stats.Processed++
		p.processRow(ctx, record, &stats, &enriched)

		if bar != nil {
			_ = bar.Add(1)
		}

		if (idx+1)%p.flushEvery == 0 {
			p.flushCaches(ctx)
		}
	}

	p.flushCaches(ctx)
	p.log.InfoContext(ctx, "Resolution pipeline finished",
		"processed", stats.Processed,
		"enriched", stats.Enriched,
		"cache_hits", stats.CacheHits,
		"failed_addresses", stats.FailedAddresses,
		"failed_geocoding", stats.FailedGeocoding,
	)

	return enriched, stats
}

// processRow runs both resolution stages for one record.
func (p *Pipeline) processRow(
	ctx context.Context,
	record models.SchoolRecord,
	stats *Stats,
	enriched *[]models.EnrichedRecord,
) {
	start := time.Now()
	addr, addrCached := p.addresses.Resolve(ctx, record.ID)
	p.metrics.ResolutionSeconds.WithLabelValues("address").Observe(time.Since(start).Seconds())

	if addrCached {
		stats.CacheHits++
		p.metrics.CacheHits.WithLabelValues("address").Inc()
	}
	if addr == nil {
		stats.FailedAddresses++
		p.metrics.AddressFailures.Inc()
	}

	// The geocoder is always consulted, even without an address, so a
	// municipality-level fallback coordinate can still be produced.
	start = time.Now()
	coords, coordCached := p.geocoder.Resolve(ctx, addr, record.Municipality)
	p.metrics.ResolutionSeconds.WithLabelValues("geocode").Observe(time.Since(start).Seconds())

	if coordCached {
		p.metrics.CacheHits.WithLabelValues("coordinate").Inc()
	}

	if coords == nil {
		stats.FailedGeocoding++
		p.metrics.GeocodingFailures.Inc()
		p.metrics.RowsProcessed.WithLabelValues("dropped").Inc()
		p.log.DebugContext(ctx, "Row dropped, no coordinates resolved",
			"id", record.ID, "municipality", record.Municipality)
	} else {
		address := record.Municipality
		if addr != nil {
			address = *addr
		}

		*enriched = append(*enriched, models.EnrichedRecord{
			SchoolRecord: record,
			Address:      address,
			Latitude:     coords.Latitude,
			Longitude:    coords.Longitude,
		})
		stats.Enriched++
		p.metrics.RowsProcessed.WithLabelValues("enriched").Inc()
	}

	// Rate-limit only rows that went out to the network; cache hits incur
	// no delay.
	if (!addrCached || !coordCached) && p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.log.DebugContext(ctx, "Rate limit wait aborted", "error", err)
		}
	}
}

// flushCaches checkpoints every cache, logging failures without aborting the
// run.
func (p *Pipeline) flushCaches(ctx context.Context) {
	for _, store := range p.caches {
		if err := store.Flush(); err != nil {
			p.log.ErrorContext(ctx, "Failed to flush cache", "error", err)
		}
	}
}
