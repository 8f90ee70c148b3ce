package proxyuri

import "strings"

// Schemes lists every scheme prefix ingestion (internal/ingest) scans
// for when looking for candidate key lines.
var Schemes = []string{"vless://", "vmess://", "trojan://", "ss://", "hysteria://", "hysteria2://", "hy2://"}

// Parse dispatches raw to the parser for its scheme. A non-nil error is
// always a MalformedError — the caller marks the key dead without
// touching the relay.
func Parse(raw string) (*ParsedProxy, error) {
	raw = strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(raw, "vless://"):
		return parseVless(raw)
	case strings.HasPrefix(raw, "vmess://"):
		return parseVmess(raw)
	case strings.HasPrefix(raw, "trojan://"):
		return parseTrojan(raw)
	case strings.HasPrefix(raw, "ss://"):
		return parseShadowsocks(raw)
	case strings.HasPrefix(raw, "hysteria2://"):
		return parseHysteria(raw, Hysteria2)
	case strings.HasPrefix(raw, "hy2://"):
		return parseHysteria(strings.Replace(raw, "hy2://", "hysteria2://", 1), Hysteria2)
	case strings.HasPrefix(raw, "hysteria://"):
		return parseHysteria(raw, Hysteria)
	default:
		return nil, errMalformed("unrecognized scheme")
	}
}

// HasKnownScheme reports whether line starts with one of the six
// supported proxy schemes (used by the cascading ingester to recognize
// candidate lines, spec §4.H step 3).
func HasKnownScheme(line string) bool {
	line = strings.TrimSpace(line)
	for _, s := range Schemes {
		if strings.HasPrefix(line, s) {
			return true
		}
	}
	return false
}
