// Package speedtest ranks already-live keys by latency and, for the
// deeper modes, download throughput — reusing the same relay-lifecycle
// machinery the key-check engine uses (spec §4.G).
package speedtest

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/komyaka/xraycheck/internal/config"
	"github.com/komyaka/xraycheck/internal/portpool"
	"github.com/komyaka/xraycheck/internal/prober"
	"github.com/komyaka/xraycheck/internal/proxyuri"
	"github.com/komyaka/xraycheck/internal/relay"
	"github.com/komyaka/xraycheck/internal/relayconfig"

	"golang.org/x/net/proxy"
)

// Mode selects how deep a speed test goes.
type Mode string

const (
	ModeLatency Mode = "latency"
	ModeQuick   Mode = "quick"
	ModeFull    Mode = "full"
)

// Metric selects how the final score is computed and sorted.
type Metric string

const (
	MetricLatency    Metric = "latency"
	MetricThroughput Metric = "throughput"
	MetricHybrid     Metric = "hybrid"
)

// Result is one key's speed-test outcome, carrying enough to sort and
// export (spec §4.G, §4.K rank/export).
type Result struct {
	Key        string
	Full       string
	LatencyMS  float64
	Mbps       float64
	Score      float64
	Descending bool // true when higher Score is better
}

// Runner holds everything shared across many Run calls.
type Runner struct {
	cfg        *config.Settings
	pool       *portpool.Pool
	binaryPath string
	scratchDir string
}

// New builds a Runner.
func New(cfg *config.Settings, pool *portpool.Pool, binaryPath, scratchDir string) *Runner {
	return &Runner{cfg: cfg, pool: pool, binaryPath: binaryPath, scratchDir: scratchDir}
}

// Run spawns a relay for key, measures latency (and, for quick/full,
// throughput), and returns a scored Result. A zero-success latency
// phase means the key is omitted — callers should drop a nil Result.
func (r *Runner) Run(ctx context.Context, rawKey, fullLine string, mode Mode, metric Metric) (*Result, error) {
	parsed, err := proxyuri.Parse(rawKey)
	if err != nil {
		return nil, fmt.Errorf("speedtest: parse: %w", err)
	}
	if parsed.Protocol == proxyuri.Hysteria || parsed.Protocol == proxyuri.Hysteria2 {
		return nil, fmt.Errorf("speedtest: %s not supported through the relay", parsed.Protocol)
	}

	port, ok := r.pool.Take()
	if !ok {
		return nil, fmt.Errorf("speedtest: port pool exhausted")
	}
	defer r.pool.Return(port)

	relayCfg, err := relayconfig.Build(parsed, port)
	if err != nil {
		return nil, fmt.Errorf("speedtest: build relay config: %w", err)
	}

	scratchDir := r.scratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}

	// No pool here: the deferred Return above gives the port back once.
	handle, err := relay.Spawn(nil, relay.Options{
		BinaryPath:   r.binaryPath,
		ScratchDir:   scratchDir,
		Port:         port,
		Config:       relayCfg,
		StartupWait:  durationFromSeconds(r.cfg.XrayStartupWait),
		PollInterval: durationFromSeconds(r.cfg.XrayStartupPollInterval),
	})
	if err != nil {
		return nil, fmt.Errorf("speedtest: spawn relay: %w", err)
	}
	defer handle.Kill()

	if err := handle.WaitReady(ctx, durationFromSeconds(r.cfg.XrayStartupWait), durationFromSeconds(r.cfg.XrayStartupPollInterval), true); err != nil {
		return nil, fmt.Errorf("speedtest: relay not ready: %w", err)
	}

	latencyMS, ok := r.latencyPhase(ctx, handle.Port())
	if !ok {
		return nil, nil
	}

	mbps := 0.0
	if mode == ModeQuick || mode == ModeFull {
		url := r.cfg.SpeedTestDownloadURLSmall
		timeout := r.cfg.SpeedTestDownloadTimeout
		if timeout <= 0 {
			timeout = 30
		}
		if mode == ModeQuick {
			timeout = math.Min(10, timeout)
		} else {
			url = r.cfg.SpeedTestDownloadURLMedium
		}
		mbps, _ = r.throughputPhase(ctx, handle.Port(), url, timeout)
	}

	return scoreResult(rawKey, fullLine, mode, metric, latencyMS, mbps), nil
}

// latencyPhase implements spec §4.G step 1.
func (r *Runner) latencyPhase(ctx context.Context, socksPort int) (float64, bool) {
	requests := r.cfg.SpeedTestRequests
	if requests < 1 {
		requests = 1
	}
	per := (r.cfg.SpeedTestTimeout - 0.2) / float64(requests)
	connectSecs := clampFloat(1, 5, per*0.5)
	readSecs := clampFloat(3, 15, per*0.6)
	timeout := prober.Timeout{
		Connect: durationFromSeconds(connectSecs),
		Read:    durationFromSeconds(readSecs),
	}

	var samples []float64
	for i := 0; i < requests; i++ {
		result, elapsed, err := prober.Do(ctx, r.cfg.SpeedTestURL, prober.Options{
			SocksPort: socksPort,
			Timeout:   timeout,
			VerifyTLS: r.cfg.VerifyHTTPSSSL,
		})
		if err != nil || result == nil || !prober.Valid(r.cfg.SpeedTestURL, result, 0) {
			continue
		}
		samples = append(samples, elapsed.Seconds()*1000)
	}

	if len(samples) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples)), true
}

// throughputPhase implements spec §4.G step 2: one streaming download,
// disqualified if it completed implausibly fast (under 300ms).
func (r *Runner) throughputPhase(ctx context.Context, socksPort int, url string, timeoutSecs float64) (float64, error) {
	dialer, err := proxy.SOCKS5("tcp", fmt.Sprintf("127.0.0.1:%d", socksPort), nil, nil)
	if err != nil {
		return 0, err
	}
	transport := &http.Transport{Dial: dialer.Dial}
	client := &http.Client{Transport: transport}

	reqCtx, cancel := context.WithTimeout(ctx, durationFromSeconds(timeoutSecs))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return 0, err
	}
	if elapsed < 300*time.Millisecond {
		return 0, fmt.Errorf("speedtest: sample too fast to be meaningful")
	}

	mbps := (float64(n) * 8 * 1e-6) / elapsed.Seconds()
	return mbps, nil
}

func scoreResult(rawKey, fullLine string, mode Mode, metric Metric, latencyMS, mbps float64) *Result {
	res := &Result{Key: rawKey, Full: fullLine, LatencyMS: latencyMS, Mbps: mbps}

	if mode == ModeQuick || mode == ModeFull {
		res.Score = mbps
		res.Descending = true
		return res
	}

	if metric == MetricThroughput {
		res.Score = 100000 / latencyMS
		res.Descending = true
		return res
	}
	res.Score = latencyMS
	res.Descending = false
	return res
}

func clampFloat(lo, hi, v float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
