package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RowsProcessed     *prometheus.CounterVec
	CacheHits         *prometheus.CounterVec
	AddressFailures   prometheus.Counter
	GeocodingFailures prometheus.Counter
	ResolutionSeconds *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RowsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "skolmap_rows_processed_total",
			Help: "Total number of processed dataset rows.",
		}, []string{"status"}),
		CacheHits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "skolmap_cache_hits_total",
			Help: "Total number of resolution cache hits.",
		}, []string{"cache"}),
		AddressFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "skolmap_address_failures_total",
			Help: "Total number of rows for which no street address could be extracted.",
		}),
		GeocodingFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "skolmap_geocoding_failures_total",
			Help: "Total number of rows for which no coordinates could be resolved.",
		}),
		ResolutionSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skolmap_resolution_duration_seconds",
			Help:    "Duration of address and coordinate resolution per row.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}
