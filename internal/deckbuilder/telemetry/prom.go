// Package telemetry provides opt-in, low-overhead instrumentation for the
// deck staging service. It is designed to be safe to call from hot paths:
// when disabled, all public functions are no-ops.
package telemetry

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the telemetry module.
//
// MetricsAddr, when non-empty, starts a dedicated HTTP server that serves
// /metrics. If you already expose Prometheus elsewhere, leave it empty and
// register promhttp yourself.
type Config struct {
	Enabled     bool
	MetricsAddr string // e.g., ":9090". Empty to disable standalone metrics endpoint
}

var (
	modEnabled atomic.Bool

	// Prometheus metrics, global only (no unbounded label cardinality).
	appliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deckstage_applies_total",
		Help: "Total fully successful staged-edit applies",
	})
	applyErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deckstage_apply_errors_total",
		Help: "Total applies that failed before any write landed",
	})
	applyPartialTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deckstage_apply_partial_total",
		Help: "Total applies where the bulk delete failed after the upsert landed",
	})
	applyBlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deckstage_apply_blocked_total",
		Help: "Total applies aborted by blocking rule violations",
	})
	itemsPerApply = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deckstage_items_per_apply",
		Help:    "Distribution of item mutations (upserts plus deletes) per apply",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})
	stalePagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deckstage_stale_pages_discarded_total",
		Help: "Total catalog result pages discarded because a newer query superseded them",
	})
	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deckstage_cache_hits_total",
		Help: "Total cache hits across catalog and rule lookups",
	})
	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deckstage_cache_misses_total",
		Help: "Total cache misses across catalog and rule lookups",
	})
	openSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deckstage_open_sessions",
		Help: "Number of deck sessions currently held in memory",
	})
)

func init() {
	// Register metrics eagerly. If no Prometheus endpoint is exposed, the registration is harmless.
	prometheus.MustRegister(appliesTotal, applyErrorsTotal, applyPartialTotal, applyBlockedTotal,
		itemsPerApply, stalePagesTotal, cacheHitsTotal, cacheMissesTotal, openSessions)
}

var serverOnce sync.Once

// Enable configures the module. Safe to call multiple times; subsequent calls
// replace the enabled flag. The standalone metrics server, once started, runs
// for the life of the process.
func Enable(cfg Config) {
	modEnabled.Store(cfg.Enabled)
	if !cfg.Enabled || cfg.MetricsAddr == "" {
		return
	}
	serverOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Printf("WARN: telemetry metrics server: %v\n", err)
			}
		}()
	})
}

// Enabled reports whether telemetry is active.
func Enabled() bool { return modEnabled.Load() }

func IncApplySuccess() {
	if modEnabled.Load() {
		appliesTotal.Inc()
	}
}

func IncApplyErrors() {
	if modEnabled.Load() {
		applyErrorsTotal.Inc()
	}
}

func IncApplyPartial() {
	if modEnabled.Load() {
		applyPartialTotal.Inc()
	}
}

func IncApplyBlocked() {
	if modEnabled.Load() {
		applyBlockedTotal.Inc()
	}
}

func ObserveItemsPerApply(n int) {
	if modEnabled.Load() && n > 0 {
		itemsPerApply.Observe(float64(n))
	}
}

func IncStalePageDiscarded() {
	if modEnabled.Load() {
		stalePagesTotal.Inc()
	}
}

func IncCacheHit() {
	if modEnabled.Load() {
		cacheHitsTotal.Inc()
	}
}

func IncCacheMiss() {
	if modEnabled.Load() {
		cacheMissesTotal.Inc()
	}
}

func SetOpenSessions(n int) {
	if modEnabled.Load() {
		openSessions.Set(float64(n))
	}
}
