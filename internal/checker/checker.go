package checker

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/komyaka/xraycheck/internal/config"
	"github.com/komyaka/xraycheck/internal/ingest"
	"github.com/komyaka/xraycheck/internal/portpool"
	"github.com/komyaka/xraycheck/internal/prober"
	"github.com/komyaka/xraycheck/internal/proxyuri"
	"github.com/komyaka/xraycheck/internal/relay"
	"github.com/komyaka/xraycheck/internal/relayconfig"
	"github.com/komyaka/xraycheck/internal/store"
	"github.com/komyaka/xraycheck/internal/xlog"
)

const gstaticCheckURL = "https://www.gstatic.com/generate_204"

// Checker holds everything shared across many Check calls: the config
// snapshot, port pool, verdict cache, and where to find the relay
// binary and scratch directory.
type Checker struct {
	cfg        *config.Settings
	pool       *portpool.Pool
	cache      *store.Cache
	binaryPath string
	scratchDir string
}

// New builds a Checker. binaryPath is the already-resolved relay
// executable (see internal/relaybin).
func New(cfg *config.Settings, pool *portpool.Pool, cache *store.Cache, binaryPath, scratchDir string) *Checker {
	return &Checker{cfg: cfg, pool: pool, cache: cache, binaryPath: binaryPath, scratchDir: scratchDir}
}

// Check runs the full pre-flight + probe contract for one candidate
// key (spec §4.F). debug captures relay stderr and enables verbose
// logging for this one call.
func (c *Checker) Check(ctx context.Context, key ingest.Candidate, debug bool) Verdict {
	hash := store.KeyHash(key.Link)

	if entry, ok := c.cache.Lookup(hash); ok {
		m := emptyMetrics()
		m.Cached = true
		return Verdict{Key: key.Link, Full: key.Full, Alive: entry.Result, Metrics: m}
	}

	parsed, err := proxyuri.Parse(key.Link)
	if err != nil {
		if debug {
			xlog.Printf("checker: parse failed for %s: %v", key.Link, err)
		}
		return Verdict{Key: key.Link, Full: key.Full, Alive: false, Metrics: emptyMetrics()}
	}
	if verr := parsed.Validate(); verr != nil {
		if debug {
			xlog.Printf("checker: validation failed for %s: %v", key.Link, verr)
		}
		return Verdict{Key: key.Link, Full: key.Full, Alive: false, Metrics: emptyMetrics()}
	}

	if parsed.Protocol == proxyuri.Hysteria || parsed.Protocol == proxyuri.Hysteria2 {
		return c.checkHysteriaReachability(parsed, key.Link, key.Full, hash)
	}

	return c.checkThroughRelay(ctx, parsed, key.Link, key.Full, hash, debug)
}

// checkHysteriaReachability implements spec §4.F step 3: the relay
// cannot front hysteria, so this is a bare TCP connect used as a proxy
// for reachability, and its latency becomes the sole response_times
// sample.
func (c *Checker) checkHysteriaReachability(parsed *proxyuri.ParsedProxy, rawKey, fullLine, hash string) Verdict {
	timeout := c.timeoutDuration()
	addr := fmt.Sprintf("%s:%d", parsed.Address, parsed.Port)

	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, timeout)
	elapsed := time.Since(start)

	m := emptyMetrics()
	alive := err == nil
	if alive {
		conn.Close()
		m.ResponseTimes = []float64{elapsed.Seconds()}
		m.SuccessfulURLs = 1
	} else {
		m.FailedURLs = 1
	}

	c.cache.Store(hash, alive)
	return Verdict{Key: rawKey, Full: fullLine, Alive: alive, Metrics: m}
}

func (c *Checker) timeoutDuration() time.Duration {
	secs := c.cfg.ConnectTimeout
	if c.cfg.UseAdaptiveTimeout {
		secs = c.cfg.ConnectTimeoutSlow
	}
	return time.Duration(secs * float64(time.Second))
}

// checkThroughRelay is the common path for vless/vmess/trojan/ss:
// lease a port, spawn the relay, wait for readiness, run the probe
// strategy, tear everything down on every exit path.
func (c *Checker) checkThroughRelay(ctx context.Context, parsed *proxyuri.ParsedProxy, rawKey, fullLine, hash string, debug bool) Verdict {
	port, ok := c.pool.Take()
	if !ok {
		if debug {
			xlog.Printf("checker: port pool exhausted for %s", rawKey)
		}
		return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: emptyMetrics()}
	}

	relayCfg, err := relayconfig.Build(parsed, port)
	if err != nil {
		c.pool.Return(port)
		if debug {
			xlog.Printf("checker: relay config build failed for %s: %v", rawKey, err)
		}
		return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: emptyMetrics()}
	}

	scratchDir := c.scratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}

	handle, err := relay.Spawn(c.pool, relay.Options{
		BinaryPath:   c.binaryPath,
		ScratchDir:   scratchDir,
		Port:         port,
		Config:       relayCfg,
		StartupWait:  durationFromSeconds(c.cfg.XrayStartupWait),
		PollInterval: durationFromSeconds(c.cfg.XrayStartupPollInterval),
		Debug:        debug,
	})
	if err != nil {
		c.pool.Return(port)
		if debug {
			xlog.Printf("checker: relay spawn failed for %s: %v", rawKey, err)
		}
		return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: emptyMetrics()}
	}
	defer handle.Kill()

	if err := handle.WaitReady(ctx, durationFromSeconds(c.cfg.XrayStartupWait), durationFromSeconds(c.cfg.XrayStartupPollInterval), false); err != nil {
		if debug {
			xlog.Printf("checker: relay not ready for %s: %v (stderr: %s)", rawKey, err, handle.Stderr())
		}
		return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: emptyMetrics()}
	}

	var verdict Verdict
	if c.cfg.StrongStyleTest {
		verdict = c.runStrictMode(ctx, handle.Port(), rawKey, fullLine, debug)
	} else {
		verdict = c.runNormalMode(ctx, handle.Port(), rawKey, fullLine, debug)
	}

	c.cache.Store(hash, verdict.Alive)
	return verdict
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// clampInt mirrors Python's clamp-by-min-max used for split timeouts.
func clampInt(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isRetryableAfterError(err error) bool {
	return prober.IsTransientConnectionError(err)
}
