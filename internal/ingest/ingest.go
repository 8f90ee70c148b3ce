// Package ingest implements the cascading, cycle-safe subscription
// fetcher (spec §4.H): a source is a URL or file path whose body may
// itself reference further sources, possibly wrapped in Base64.
package ingest

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/komyaka/xraycheck/internal/proxyuri"
	"github.com/komyaka/xraycheck/internal/xlog"
)

const maxCascadeDepth = 3

// Candidate is one deduplicated key discovered during traversal.
type Candidate struct {
	Link string // raw URI, scheme intact
	Full string // the full source line, including any trailing comment
}

type queueItem struct {
	source  string
	baseDir string
	depth   int
}

// Load performs the full breadth-first traversal from a single root
// source and returns the deduplicated candidate set, first occurrence
// preserved (spec §4.H, §8 "ingestion cycle safety" law).
func Load(root string) ([]Candidate, error) {
	baseDir, err := os.Getwd()
	if err != nil {
		baseDir = "."
	}

	visited := map[string]bool{}
	scheduled := map[string]bool{normalizeSourceID(root, baseDir): true}
	seenLinks := map[string]bool{}
	var result []Candidate

	queue := []queueItem{{source: root, baseDir: baseDir, depth: 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		delete(scheduled, normalizeSourceID(item.source, item.baseDir))

		children, keys, err := collect(item.source, item.baseDir, item.depth, visited)
		if err != nil {
			if item.depth == 0 {
				return nil, err
			}
			xlog.Printf("ingest: skipping source %s: %v", item.source, err)
			continue
		}

		for _, c := range keys {
			key := strippedFragment(c.Link)
			if key == "" || seenLinks[key] {
				continue
			}
			seenLinks[key] = true
			result = append(result, c)
		}

		for _, child := range children {
			nextBase := item.baseDir
			if !isURL(child) {
				nextBase = filepath.Dir(child)
			}
			normChild := normalizeSourceID(child, nextBase)
			nextDepth := item.depth + 1

			if visited[normChild] {
				xlog.Printf("ingest: skipping cycle: %s", child)
				continue
			}
			if scheduled[normChild] {
				xlog.Printf("ingest: skipping duplicate: %s", child)
				continue
			}
			if nextDepth > maxCascadeDepth {
				xlog.Printf("ingest: cascade depth exceeded (%d) for %s", maxCascadeDepth, child)
				continue
			}

			scheduled[normChild] = true
			queue = append(queue, queueItem{source: child, baseDir: nextBase, depth: nextDepth})
		}
	}

	return result, nil
}

// collect fetches one source, decodes it, and splits it into
// candidate keys and child sources (spec §4.H steps 1-4).
func collect(source, baseDir string, depth int, visited map[string]bool) ([]string, []Candidate, error) {
	norm := normalizeSourceID(source, baseDir)
	if visited[norm] {
		return nil, nil, nil
	}
	if depth > maxCascadeDepth {
		return nil, nil, nil
	}
	visited[norm] = true

	text, err := fetchSource(source)
	if err != nil {
		return nil, nil, err
	}
	text = decodeSubscription(text)

	var keys []Candidate
	var children []string
	seenChild := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if proxyuri.HasKnownScheme(line) {
			link := strings.Fields(line)[0]
			keys = append(keys, Candidate{Link: link, Full: line})
			continue
		}
		for _, token := range strings.Fields(line) {
			candidate := strings.Trim(token, ",;")
			if candidate == "" || proxyuri.HasKnownScheme(candidate) {
				continue
			}
			if isURL(candidate) || looksLikePath(candidate) {
				resolved := resolveChild(candidate, source, filepath.Dir(norm))
				if !seenChild[resolved] {
					seenChild[resolved] = true
					children = append(children, resolved)
				}
			}
		}
	}

	return children, keys, nil
}

func fetchSource(source string) (string, error) {
	if isURL(source) {
		return fetchURL(source)
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("ingest: read %s: %w", source, err)
	}
	return string(raw), nil
}

func fetchURL(raw string) (string, error) {
	if err := validateURL(raw); err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(raw)
	if err != nil {
		return "", fmt.Errorf("ingest: fetch %s: %w", raw, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ingest: fetch %s: status %d", raw, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ingest: read body %s: %w", raw, err)
	}
	return string(body), nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ingest: invalid url %q", raw)
	}
	for _, r := range raw {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return fmt.Errorf("ingest: url %q contains control characters", raw)
		}
	}
	return nil
}

// decodeSubscription implements the §4.H step 2 Base64 unwrap: only
// attempted when the body carries no recognizable scheme line.
func decodeSubscription(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || hasProtocolLines(trimmed) {
		return text
	}

	compact := strings.Join(strings.Fields(trimmed), "")
	decoded, err := proxyuri.DecodeBase64Tolerant(compact)
	if err != nil {
		return text
	}
	candidate := strings.TrimSpace(string(decoded))
	if candidate != "" && hasProtocolLines(candidate) {
		return candidate
	}
	return text
}

func hasProtocolLines(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if proxyuri.HasKnownScheme(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func looksLikePath(token string) bool {
	if strings.Contains(token, "://") {
		return false
	}
	if strings.HasPrefix(token, "#") || strings.HasPrefix(token, "//") {
		return false
	}
	if strings.ContainsAny(token, "/\\") {
		return true
	}
	for _, suffix := range []string{".txt", ".list", ".urls", ".lst"} {
		if strings.HasSuffix(token, suffix) {
			return true
		}
	}
	return false
}

func resolveChild(token, parentSource, baseDir string) string {
	if isURL(token) {
		return token
	}
	if isURL(parentSource) {
		if base, err := url.Parse(parentSource); err == nil {
			if ref, err := url.Parse(token); err == nil {
				return base.ResolveReference(ref).String()
			}
		}
		return token
	}
	if filepath.IsAbs(token) {
		return filepath.Clean(token)
	}
	return filepath.Clean(filepath.Join(baseDir, token))
}

func normalizeSourceID(source, baseDir string) string {
	if isURL(source) {
		return strings.TrimSpace(source)
	}
	if filepath.IsAbs(source) {
		return filepath.Clean(source)
	}
	return filepath.Clean(filepath.Join(baseDir, source))
}

// strippedFragment mirrors store.Normalize so ingestion-time dedup and
// notworkers-time dedup agree on identity (spec §3, §8 normalize law).
func strippedFragment(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	return strings.TrimSpace(link)
}
