package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/skolmap/internal/cache"
	"github.com/UnknownOlympus/skolmap/internal/models"
)

// noAddress is the placeholder used in the coordinate cache key when no
// street address is known for a school.
const noAddress = "None"

// coordPairLength guards against malformed cache entries.
const coordPairLength = 2

// ResolverOptions tunes the candidate-query cascade.
type ResolverOptions struct {
	Country        string        // Country appended to every candidate query.
	Attempts       int           // Attempts per candidate before moving on.
	RetryDelay     time.Duration // Sleep between attempts on the same candidate.
	StreetFallback bool          // Add a first-token (street name) variant for strict providers.
}

// Resolver turns an address and a municipality into coordinates via an
// ordered cascade of query variants, consulting the coordinate cache first.
// More specific queries are tried before less specific ones so a match, if
// found, is as precise as possible; the first candidate that yields a result
// wins and the rest are never tried.
type Resolver struct {
	provider Provider
	cache    *cache.Store[[]float64]
	opts     ResolverOptions
	log      *slog.Logger
}

// NewResolver creates a geocode resolver over the given provider and cache.
func NewResolver(provider Provider, store *cache.Store[[]float64], opts ResolverOptions, log *slog.Logger) *Resolver {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	return &Resolver{
		provider: provider,
		cache:    store,
		opts:     opts,
		log:      log,
	}
}

// CacheKey builds the composite coordinate-cache key from an address (or the
// placeholder for "none") and a municipality.
func CacheKey(addr *string, municipality string) string {
	address := noAddress
	if addr != nil {
		address = *addr
	}

	return address + "|" + municipality
}

// Resolve returns the coordinates for an address/municipality pair, or nil
// when every candidate query failed. The second return value reports whether
// the answer came from the cache; a hit, cached failures included, issues no
// network call. A fresh outcome is always cached before returning.
func (r *Resolver) Resolve(ctx context.Context, addr *string, municipality string) (*models.Coordinates, bool) {
	key := CacheKey(addr, municipality)

	if pair, ok := r.cache.Lookup(key); ok {
		return coordsFromPair(pair), true
	}

	for _, query := range r.candidates(addr, municipality) {
		for attempt := 0; attempt < r.opts.Attempts; attempt++ {
			coords, err := r.provider.Geocode(ctx, query)
			if err == nil && coords != nil {
				pair := []float64{coords.Latitude, coords.Longitude}
				r.cache.Put(key, &pair)
				return coords, false
			}

			r.log.DebugContext(ctx, "Geocoding candidate failed",
				"query", query, "attempt", attempt+1, "error", err)

			if attempt+1 < r.opts.Attempts && !sleepCtx(ctx, r.opts.RetryDelay) {
				break
			}
		}
	}

	r.cache.Put(key, nil)
	return nil, false
}

// candidates builds the ordered candidate-query list for the cascade. With a
// known address: full address with municipality, address with country only,
// optionally the street name with municipality, and finally the municipality
// alone. Without an address the municipality-level fallback is the only
// candidate.
func (r *Resolver) candidates(addr *string, municipality string) []string {
	localityOnly := fmt.Sprintf("%s, %s", municipality, r.opts.Country)
	if addr == nil {
		return []string{localityOnly}
	}

	queries := []string{
		fmt.Sprintf("%s, %s, %s", *addr, municipality, r.opts.Country),
		fmt.Sprintf("%s, %s", *addr, r.opts.Country),
	}

	if r.opts.StreetFallback {
		if street, _, found := strings.Cut(strings.TrimSpace(*addr), " "); found && street != "" {
			queries = append(queries, fmt.Sprintf("%s, %s, %s", street, municipality, r.opts.Country))
		}
	}

	return append(queries, localityOnly)
}

// coordsFromPair converts a cached [lat, lng] pair, tolerating nil and
// malformed entries as cached failures.
func coordsFromPair(pair *[]float64) *models.Coordinates {
	if pair == nil || len(*pair) != coordPairLength {
		return nil
	}

	return &models.Coordinates{Latitude: (*pair)[0], Longitude: (*pair)[1]}
}

// sleepCtx waits for the given duration unless the context is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
