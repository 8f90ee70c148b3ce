// Package metrics exposes run-level counters through prometheus's
// text-exposition format, written to a file when ENABLE_METRICS_DUMP is
// set (spec §6 domain stack — opt-in, no scrape endpoint required).
package metrics

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/expfmt"
)

// Collectors bundles every counter/gauge a single run updates.
type Collectors struct {
	registry *prometheus.Registry

	KeysTotal      prometheus.Counter
	KeysLive       prometheus.Counter
	KeysDead       prometheus.Counter
	CacheHits      prometheus.Counter
	RelaySpawns    prometheus.Counter
	RelayFailures  prometheus.Counter
	ProbeLatencyMs prometheus.Histogram
}

// New builds a fresh, registered set of collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		KeysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xraycheck_keys_total",
			Help: "Total candidate keys processed this run.",
		}),
		KeysLive: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xraycheck_keys_live_total",
			Help: "Keys classified as live.",
		}),
		KeysDead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xraycheck_keys_dead_total",
			Help: "Keys classified as dead.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xraycheck_cache_hits_total",
			Help: "Verdicts served from the cache without a probe.",
		}),
		RelaySpawns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xraycheck_relay_spawns_total",
			Help: "Relay child processes started.",
		}),
		RelayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xraycheck_relay_failures_total",
			Help: "Relay spawns that failed to reach SOCKS readiness.",
		}),
		ProbeLatencyMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "xraycheck_probe_latency_ms",
			Help:    "Per-request probe latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}
	c.registry.MustRegister(
		c.KeysTotal, c.KeysLive, c.KeysDead,
		c.CacheHits, c.RelaySpawns, c.RelayFailures, c.ProbeLatencyMs,
	)
	return c
}

// Dump writes the current values in text-exposition format to path.
func (c *Collectors) Dump(path string) error {
	mfs, err := c.registry.Gather()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
