// Command speedtest-checker re-ranks an already-validated key list by
// latency or download throughput (spec §6, §4.G).
package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/komyaka/xraycheck/internal/config"
	"github.com/komyaka/xraycheck/internal/export"
	"github.com/komyaka/xraycheck/internal/pool"
	"github.com/komyaka/xraycheck/internal/portpool"
	"github.com/komyaka/xraycheck/internal/rank"
	"github.com/komyaka/xraycheck/internal/relaybin"
	"github.com/komyaka/xraycheck/internal/speedtest"
	"github.com/komyaka/xraycheck/internal/xlog"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		xlog.Printf("speedtest-checker: usage: speedtest-checker <INPUT_FILE>")
		return 1
	}
	inputFile := os.Args[1]

	cfg := config.Default()
	if err := config.Load(cfg); err != nil {
		xlog.Printf("speedtest-checker: config: %v", err)
		return 1
	}

	lines, err := readKeys(inputFile)
	if err != nil {
		xlog.Printf("speedtest-checker: %v", err)
		return 1
	}
	if len(lines) == 0 {
		xlog.Printf("speedtest-checker: no keys in %s", inputFile)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	binaryPath, err := relaybin.Resolve(ctx, cfg.XrayPath, cfg.XrayDirName)
	if err != nil {
		xlog.Printf("speedtest-checker: relay binary: %v", err)
		return 1
	}

	scratchDir, err := os.MkdirTemp("", "xraycheck-speedtest-*")
	if err != nil {
		xlog.Printf("speedtest-checker: scratch dir: %v", err)
		return 1
	}
	defer os.RemoveAll(scratchDir)

	portCount := cfg.MaxWorkers
	if portCount < 1 {
		portCount = 1
	}
	ports := portpool.New(cfg.BasePort, portCount)

	runner := speedtest.New(cfg, ports, binaryPath, scratchDir)
	workers := pool.New(cfg.MaxWorkers)

	go func() {
		<-ctx.Done()
		workers.Cancel()
	}()

	mode, metric := speedtestMode(), speedtestMetric()

	var mu sync.Mutex
	var results []*speedtest.Result

	for _, line := range lines {
		line := line
		workers.Submit(func(taskCtx context.Context) {
			res, err := runner.Run(taskCtx, line.link, line.full, mode, metric)
			if err != nil {
				xlog.Printf("speedtest-checker: %s: %v", line.link, err)
				return
			}
			if res == nil {
				return
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		})
	}
	workers.Wait()

	if cfg.MinSpeedThresholdMbps > 0 {
		results = filterByThreshold(results, cfg.MinSpeedThresholdMbps)
	}
	sortResults(results)

	name := outputName(cfg)
	if err := rank.WriteOrdered(cfg.OutputDir, name, toEntries(results)); err != nil {
		xlog.Printf("speedtest-checker: write output: %v", err)
		return 1
	}

	entries := toEntries(results)
	for _, format := range exportFormats(cfg.ExportFormat) {
		if err := export.Write(cfg.ExportDir, name, format, entries); err != nil {
			xlog.Printf("speedtest-checker: export %s: %v", format, err)
		}
	}

	xlog.Printf("speedtest-checker: ranked %d/%d keys", len(entries), len(lines))
	return 0
}

// sortResults applies spec §4.G's rule: descending for throughput-like
// scores, ascending for latency.
func sortResults(results []*speedtest.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Descending {
			return results[i].Score > results[j].Score
		}
		return results[i].Score < results[j].Score
	})
}

// keyLine pairs a key's bare link (what gets parsed and dialed) with
// its originating full line (what the output lists print).
type keyLine struct {
	link string
	full string
}

func readKeys(path string) ([]keyLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []keyLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, keyLine{link: strings.Fields(line)[0], full: line})
	}
	return lines, scanner.Err()
}

func speedtestMode() speedtest.Mode {
	switch strings.ToLower(os.Getenv("SPEED_TEST_MODE")) {
	case "quick":
		return speedtest.ModeQuick
	case "full":
		return speedtest.ModeFull
	default:
		return speedtest.ModeLatency
	}
}

func speedtestMetric() speedtest.Metric {
	switch strings.ToLower(os.Getenv("SPEED_TEST_METRIC")) {
	case "throughput":
		return speedtest.MetricThroughput
	case "hybrid":
		return speedtest.MetricHybrid
	default:
		return speedtest.MetricLatency
	}
}

func filterByThreshold(results []*speedtest.Result, threshold float64) []*speedtest.Result {
	var out []*speedtest.Result
	for _, r := range results {
		if r.Descending && r.Score < threshold {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toEntries(results []*speedtest.Result) []rank.Entry {
	entries := make([]rank.Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, rank.Entry{Key: r.Key, Full: r.Full, LatencyMS: r.LatencyMS})
	}
	return entries
}

func outputName(cfg *config.Settings) string {
	name := cfg.OutputFile + "-speedtest"
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
