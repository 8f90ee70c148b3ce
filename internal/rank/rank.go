// Package rank sorts live verdicts by latency and writes the primary
// and top-100 output lists (spec §4.K).
package rank

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/komyaka/xraycheck/internal/checker"
)

// Entry pairs a live key with its average latency in milliseconds.
// Full is the originating full line (may carry a trailing comment);
// the primary and top-100 lists print it when present, falling back
// to Key (spec §4.K).
type Entry struct {
	Key       string
	Full      string
	LatencyMS float64
}

// FromVerdicts keeps only live verdicts and converts their average
// response time (seconds) into the millisecond latency the ranker
// sorts on.
func FromVerdicts(verdicts []checker.Verdict) []Entry {
	var entries []Entry
	for _, v := range verdicts {
		if !v.Alive {
			continue
		}
		entries = append(entries, Entry{Key: v.Key, Full: v.Full, LatencyMS: v.Metrics.AvgResponseTime * 1000})
	}
	return entries
}

// Sort orders entries ascending by latency, the ranking rule for every
// output list (spec §4.K).
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LatencyMS < entries[j].LatencyMS
	})
}

// WriteLists writes the primary list at dir/name and the first 100
// entries at dir/name(top100), one line per entry (the full line when
// set, else the key) with no latency prefix (spec §4.K).
func WriteLists(dir, name string, entries []Entry) error {
	Sort(entries)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rank: create output dir: %w", err)
	}

	if err := writeList(filepath.Join(dir, name), entries, true); err != nil {
		return err
	}

	top := entries
	if len(top) > 100 {
		top = top[:100]
	}
	return writeList(filepath.Join(dir, name+"(top100)"), top, true)
}

// writeList prints one line per entry. withFull selects the primary
// output's full-line form (falling back to Key when Full is empty);
// the partial flush always passes false, writing the bare key only.
func writeList(path string, entries []Entry, withFull bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rank: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		line := e.Key
		if withFull && e.Full != "" {
			line = e.Full
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteOrdered writes the primary and top-100 lists from entries
// exactly as ordered by the caller, without re-sorting — used by
// callers that rank on something other than ascending latency
// (speedtest's throughput-descending mode).
func WriteOrdered(dir, name string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rank: create output dir: %w", err)
	}

	if err := writeList(filepath.Join(dir, name), entries, true); err != nil {
		return err
	}
	top := entries
	if len(top) > 100 {
		top = top[:100]
	}
	return writeList(filepath.Join(dir, name+"(top100)"), top, true)
}

// WritePartial is the cancellation-path writer (spec §4.J "flush
// partial results to a _partial file") — writes the raw key only,
// never the full line (spec §9).
func WritePartial(dir, name string, entries []Entry) error {
	Sort(entries)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rank: create output dir: %w", err)
	}
	return writeList(filepath.Join(dir, name+"_partial"), entries, false)
}
