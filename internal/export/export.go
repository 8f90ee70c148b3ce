// Package export renders the ranked result set into the optional
// EXPORT_FORMAT outputs (spec §4.K "Optional exports").
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"

	"github.com/komyaka/xraycheck/internal/rank"
)

// Write renders entries in the given format ("json", "csv", or "html")
// to dir/name.<ext>. An unrecognized format is a no-op, not an error,
// since EXPORT_FORMAT defaults to the plain-text lists rank already
// wrote.
func Write(dir, name, format string, entries []rank.Entry) error {
	switch format {
	case "json":
		return writeJSON(filepath.Join(dir, name+".json"), entries)
	case "csv":
		return writeCSV(filepath.Join(dir, name+".csv"), entries)
	case "html":
		return writeHTML(filepath.Join(dir, name+".html"), entries)
	default:
		return nil
	}
}

func writeJSON(path string, entries []rank.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func writeCSV(path string, entries []rank.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"key", "latency_ms"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.Write([]string{e.Key, strconv.FormatFloat(e.LatencyMS, 'f', 2, 64)}); err != nil {
			return err
		}
	}
	return nil
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>xraycheck results</title></head>
<body>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>#</th><th>Key</th><th>Latency (ms)</th></tr>
{{range $i, $e := .}}<tr><td>{{inc $i}}</td><td>{{$e.Key}}</td><td>{{printf "%.1f" $e.LatencyMS}}</td></tr>
{{end}}</table>
</body></html>`))

func writeHTML(path string, entries []rank.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	return htmlTemplate.Execute(f, entries)
}
