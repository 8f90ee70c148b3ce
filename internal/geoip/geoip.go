// Package geoip resolves a candidate's exit country through its leased
// SOCKS tunnel (spec §4.F "CHECK_GEOLOCATION").
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Record is the geolocation outcome attached to a Verdict's metrics.
type Record struct {
	IP      string
	Country string // ISO 3166-1 alpha-2, upper-cased
}

// Lookup issues a GET against service through the SOCKS endpoint and
// extracts IP/country from whichever known shape the response carries
// (ip-api.com's countryCode, or httpbin's bare origin).
func Lookup(ctx context.Context, socksPort int, service string, timeout time.Duration) (*Record, error) {
	dialer, err := proxy.SOCKS5("tcp", fmt.Sprintf("127.0.0.1:%d", socksPort), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("geoip: build socks dialer: %w", err)
	}
	transport := &http.Transport{Dial: dialer.Dial}
	client := &http.Client{Transport: transport, Timeout: timeout}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, service, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip: service status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("geoip: decode response: %w", err)
	}

	if cc, ok := payload["countryCode"].(string); ok {
		ip, _ := payload["query"].(string)
		return &Record{IP: ip, Country: strings.ToUpper(cc)}, nil
	}
	if origin, ok := payload["origin"].(string); ok {
		ip := strings.TrimSpace(strings.SplitN(origin, ",", 2)[0])
		return &Record{IP: ip}, nil
	}
	return nil, fmt.Errorf("geoip: unrecognized response shape")
}

// Allowed reports whether rec passes the allow-list. An empty list
// permits everything; a nil rec with a non-empty list is always denied.
func Allowed(rec *Record, allowedCountries []string) bool {
	if len(allowedCountries) == 0 {
		return true
	}
	if rec == nil || rec.Country == "" {
		return false
	}
	for _, c := range allowedCountries {
		if strings.EqualFold(strings.TrimSpace(c), rec.Country) {
			return true
		}
	}
	return false
}
