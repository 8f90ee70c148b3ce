// Package checker orchestrates a single key through parse → relay →
// probe and produces a Verdict under the configured quality policy
// (spec §4.F).
package checker

import "github.com/komyaka/xraycheck/internal/geoip"

// Metrics carries everything a Verdict records about how a key was
// judged (spec §3 Verdict).
type Metrics struct {
	ResponseTimes     []float64 // seconds
	Geolocation       *geoip.Record
	SuccessfulURLs    int
	FailedURLs        int
	TotalRequests     int
	SuccessfulRequests int
	AvgResponseTime   float64
	Cached            bool
}

// Verdict is the per-key outcome the worker pool collects. Full is the
// originating full line (ingest.Candidate.Full), which may carry a
// trailing comment (spec §3 ProxyKey); it is what the primary output
// lists print, while Key alone is what the partial cancellation flush
// writes (spec §4.K).
type Verdict struct {
	Key     string
	Full    string
	Alive   bool
	Metrics Metrics
}

func emptyMetrics() Metrics {
	return Metrics{}
}
