package store

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Normalize strips the display fragment (and any trailing comment
// token after whitespace) from a proxy link so two keys differing only
// by "#tag" compare equal (spec §3 ProxyKey, §4.H dedup rule).
func Normalize(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexAny(link, " \t"); i >= 0 {
		link = link[:i]
	}
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	return strings.TrimSpace(link)
}

// Notworkers is the known-bad set loaded at startup and rewritten at
// shutdown with this run's outcomes folded in (spec §4.I).
type Notworkers struct {
	path             string
	normalizedToFull map[string]string
}

// LoadNotworkers reads path, tolerating a missing file as an empty set.
// Blank lines and lines starting with '#' are skipped; everything else
// is kept verbatim (trailing comment included) alongside its
// normalized key.
func LoadNotworkers(path string) (*Notworkers, error) {
	n := &Notworkers{path: path, normalizedToFull: map[string]string{}}
	if path == "" {
		return n, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return n, nil
		}
		return n, fmt.Errorf("store: open notworkers: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		link := line
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			link = line[:i]
		}
		norm := Normalize(link)
		if norm != "" {
			n.normalizedToFull[norm] = line
		}
	}
	return n, scanner.Err()
}

// Contains reports whether a normalized key is already known bad.
func (n *Notworkers) Contains(normalized string) bool {
	_, ok := n.normalizedToFull[normalized]
	return ok
}

// Merge folds this run's results in: new_notworkers = (existing ∪
// dead) \ alive, with full lines for newly-added entries sourced from
// deadFullLineByNormalized (spec §4.I self-heal law).
func (n *Notworkers) Merge(deadFullLineByNormalized map[string]string, aliveNormalized map[string]bool) {
	for norm, full := range deadFullLineByNormalized {
		if aliveNormalized[norm] {
			continue
		}
		if _, exists := n.normalizedToFull[norm]; !exists {
			n.normalizedToFull[norm] = full
		}
	}
	for norm := range aliveNormalized {
		delete(n.normalizedToFull, norm)
	}
}

// Save rewrites the notworkers file, sorted by normalized key for
// stable diffs.
func (n *Notworkers) Save() error {
	if n.path == "" {
		return nil
	}
	if dir := dirOf(n.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(n.normalizedToFull))
	for k := range n.normalizedToFull {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(n.normalizedToFull[k])
		b.WriteByte('\n')
	}
	return os.WriteFile(n.path, []byte(b.String()), 0o644)
}

// Len reports how many keys are currently tracked.
func (n *Notworkers) Len() int { return len(n.normalizedToFull) }

// FullLines returns every tracked entry's full line, sorted by
// normalized key — used by MODE=notworkers to re-validate the known-bad
// set itself (spec §4.I self-heal).
func (n *Notworkers) FullLines() []string {
	keys := make([]string, 0, len(n.normalizedToFull))
	for k := range n.normalizedToFull {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, n.normalizedToFull[k])
	}
	return out
}
