package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/komyaka/xraycheck/internal/xlog"
)

// LoadMerged reads a list of feed URLs from linksFile, traverses each
// with Load, and merges the results by normalized key, first
// occurrence winning (spec §4.H "merged-mode entry").
func LoadMerged(linksFile string) ([]Candidate, error) {
	urls, err := readURLList(linksFile)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("ingest: no urls in links file %s", linksFile)
	}

	seen := map[string]bool{}
	var merged []Candidate

	for i, u := range urls {
		xlog.Printf("ingest: merging feed %d/%d: %s", i+1, len(urls), u)
		candidates, err := Load(u)
		if err != nil {
			xlog.Printf("ingest: skipping feed %s: %v", u, err)
			continue
		}
		for _, c := range candidates {
			key := strippedFragment(c.Link)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, c)
		}
	}

	return merged, nil
}

func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open links file %s: %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, part := range strings.Fields(line) {
			if isURL(part) {
				urls = append(urls, part)
			}
		}
	}
	return urls, scanner.Err()
}
