// Command vless-checker validates a list of proxy keys end-to-end and
// writes the latency-ranked survivors (spec §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/komyaka/xraycheck/internal/checker"
	"github.com/komyaka/xraycheck/internal/config"
	"github.com/komyaka/xraycheck/internal/dashboard"
	"github.com/komyaka/xraycheck/internal/export"
	"github.com/komyaka/xraycheck/internal/ingest"
	"github.com/komyaka/xraycheck/internal/metrics"
	"github.com/komyaka/xraycheck/internal/pool"
	"github.com/komyaka/xraycheck/internal/portpool"
	"github.com/komyaka/xraycheck/internal/proxyuri"
	"github.com/komyaka/xraycheck/internal/rank"
	"github.com/komyaka/xraycheck/internal/relaybin"
	"github.com/komyaka/xraycheck/internal/relayconfig"
	"github.com/komyaka/xraycheck/internal/store"
	"github.com/komyaka/xraycheck/internal/xlog"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Default()
	if err := config.Load(cfg); err != nil {
		xlog.Printf("vless-checker: config: %v", err)
		return 1
	}

	var input string
	printConfig := false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--print-config", "-p":
			printConfig = true
		default:
			if input == "" {
				input = arg
			}
		}
	}
	if input == "" {
		input = cfg.DefaultListURL
	}

	if printConfig {
		return doPrintConfig(input)
	}

	return runChecks(cfg, input)
}

// doPrintConfig implements "--print-config: prints the relay JSON for
// the first key and exits" (spec §6).
func doPrintConfig(input string) int {
	candidates, err := ingest.Load(input)
	if err != nil {
		xlog.Printf("vless-checker: ingest: %v", err)
		return 1
	}
	if len(candidates) == 0 {
		xlog.Printf("vless-checker: no keys found in %s", input)
		return 1
	}

	parsed, err := proxyuri.Parse(candidates[0].Link)
	if err != nil {
		xlog.Printf("vless-checker: parse: %v", err)
		return 1
	}

	out, err := relayconfig.MarshalIndent(parsed, 0)
	if err != nil {
		xlog.Printf("vless-checker: build relay config: %v", err)
		return 1
	}
	fmt.Println(out)
	return 0
}

func runChecks(cfg *config.Settings, input string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	binaryPath, err := relaybin.Resolve(ctx, cfg.XrayPath, cfg.XrayDirName)
	if err != nil {
		xlog.Printf("vless-checker: relay binary: %v", err)
		return 1
	}

	candidates, err := loadCandidates(cfg, input)
	if err != nil {
		xlog.Printf("vless-checker: ingest: %v", err)
		return 1
	}

	notworkers, err := store.LoadNotworkers(filepath.Join(cfg.OutputDir, "notworkers"))
	if err != nil {
		xlog.Printf("vless-checker: notworkers: %v", err)
	}
	if cfg.Mode != "notworkers" {
		candidates = filterNotworkers(candidates, notworkers)
	}

	cache, err := buildCache(ctx, cfg)
	if err != nil {
		xlog.Printf("vless-checker: cache: %v", err)
	}

	scratchDir, err := os.MkdirTemp("", "xraycheck-scratch-*")
	if err != nil {
		xlog.Printf("vless-checker: scratch dir: %v", err)
		return 1
	}
	defer os.RemoveAll(scratchDir)

	portCount := cfg.MaxWorkers
	if portCount < 1 {
		portCount = 1
	}
	ports := portpool.New(cfg.BasePort, portCount)

	var dash *dashboard.Server
	if cfg.EnableDashboard {
		dash = dashboard.New()
		go func() {
			if err := dash.Serve(cfg.DashboardPort); err != nil {
				xlog.Printf("vless-checker: dashboard: %v", err)
			}
		}()
	}

	var collectors *metrics.Collectors
	if cfg.EnableMetricsDump {
		collectors = metrics.New()
	}

	c := checker.New(cfg, ports, cache, binaryPath, scratchDir)
	workers := pool.New(cfg.MaxWorkers)

	go func() {
		<-ctx.Done()
		workers.Cancel()
	}()

	var mu sync.Mutex
	var verdicts []checker.Verdict
	deadFull := map[string]string{}
	aliveNorm := map[string]bool{}
	alive, dead := 0, 0

	for i, cand := range candidates {
		i, cand := i, cand
		debug := i == 0
		workers.Submit(func(taskCtx context.Context) {
			v := c.Check(taskCtx, cand, debug)

			mu.Lock()
			verdicts = append(verdicts, v)
			norm := store.Normalize(cand.Link)
			if v.Alive {
				alive++
				aliveNorm[norm] = true
			} else {
				dead++
				deadFull[norm] = cand.Full
			}
			mu.Unlock()

			if collectors != nil {
				collectors.KeysTotal.Inc()
				if v.Alive {
					collectors.KeysLive.Inc()
				} else {
					collectors.KeysDead.Inc()
				}
				if v.Metrics.Cached {
					collectors.CacheHits.Inc()
				}
			}
			if dash != nil {
				p := workers.Progress()
				dash.Publish(dashboard.Progress{
					Total:    int(p.Total),
					Checked:  int(p.Done),
					Alive:    alive,
					Dead:     dead,
					InFlight: int(p.InFlight),
				})
			}
		})
	}

	workers.Wait()

	if workers.Cancelled() {
		mu.Lock()
		if err := rank.WritePartial(cfg.OutputDir, outputName(cfg), rank.FromVerdicts(verdicts)); err != nil {
			xlog.Printf("vless-checker: write partial results: %v", err)
		}
		mu.Unlock()
	}

	if notworkers != nil {
		notworkers.Merge(deadFull, aliveNorm)
		if err := notworkers.Save(); err != nil {
			xlog.Printf("vless-checker: save notworkers: %v", err)
		}
	}
	if cache != nil {
		if err := cache.Flush(context.Background()); err != nil {
			xlog.Printf("vless-checker: flush cache: %v", err)
		}
	}
	if collectors != nil {
		if err := collectors.Dump(cfg.MetricsFile); err != nil {
			xlog.Printf("vless-checker: dump metrics: %v", err)
		}
	}

	entries := rank.FromVerdicts(verdicts)
	name := outputName(cfg)
	if err := rank.WriteLists(cfg.OutputDir, name, entries); err != nil {
		xlog.Printf("vless-checker: write output: %v", err)
		return 1
	}

	for _, format := range exportFormats(cfg.ExportFormat) {
		if err := export.Write(cfg.ExportDir, name, format, entries); err != nil {
			xlog.Printf("vless-checker: export %s: %v", format, err)
		}
	}

	xlog.Printf("vless-checker: %d alive, %d dead, %d total", alive, dead, len(candidates))
	return 0
}

func loadCandidates(cfg *config.Settings, input string) ([]ingest.Candidate, error) {
	switch cfg.Mode {
	case "merge":
		return ingest.LoadMerged(input)
	case "notworkers":
		return candidatesFromNotworkers(filepath.Join(cfg.OutputDir, "notworkers"))
	default:
		return ingest.Load(input)
	}
}

// candidatesFromNotworkers re-validates the known-bad list itself, the
// self-heal entry point spec §4.I describes.
func candidatesFromNotworkers(path string) ([]ingest.Candidate, error) {
	n, err := store.LoadNotworkers(path)
	if err != nil {
		return nil, err
	}
	var candidates []ingest.Candidate
	for _, full := range n.FullLines() {
		link := full
		if i := strings.IndexAny(full, " \t"); i >= 0 {
			link = full[:i]
		}
		candidates = append(candidates, ingest.Candidate{Link: link, Full: full})
	}
	return candidates, nil
}

func filterNotworkers(candidates []ingest.Candidate, n *store.Notworkers) []ingest.Candidate {
	if n == nil {
		return candidates
	}
	var out []ingest.Candidate
	for _, c := range candidates {
		if n.Contains(store.Normalize(c.Link)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func buildCache(ctx context.Context, cfg *config.Settings) (*store.Cache, error) {
	var backend store.Backend
	if cfg.EnableCache {
		if store.IsRedisURL(cfg.CacheFile) {
			rb, err := store.NewRedisBackend(cfg.CacheFile)
			if err != nil {
				return nil, err
			}
			backend = rb
		} else {
			backend = &store.FileBackend{Path: cfg.CacheFile}
		}
	}
	return store.NewCache(ctx, cfg.EnableCache, backend, time.Duration(cfg.CacheTTL)*time.Second)
}

func outputName(cfg *config.Settings) string {
	name := cfg.OutputFile
	if cfg.OutputAddDate {
		name = fmt.Sprintf("%s-%s", name, time.Now().Format("2006-01-02"))
	}
	return name
}

func exportFormats(format string) []string {
	switch format {
	case "", "txt":
		return nil
	case "all":
		return []string{"json", "csv", "html"}
	default:
		return []string{format}
	}
}
