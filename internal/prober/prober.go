// Package prober issues HTTP requests through a leased SOCKS endpoint
// and classifies the response (spec §4.E). It is the only package that
// talks to a candidate proxy's traffic path directly.
package prober

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Timeout is either a single overall deadline or a split connect/read
// pair, matching the two call shapes in spec §4.E and §4.F.
type Timeout struct {
	Connect time.Duration
	Read    time.Duration
}

// Overall returns the sum used when no split is meaningful (dialer
// timeouts still use Connect alone).
func (t Timeout) Overall() time.Duration { return t.Connect + t.Read }

// Result is what a probe reports back to the caller: either a response
// summary or an error, never both.
type Result struct {
	StatusCode    int
	ContentLength int64
	Elapsed       time.Duration
}

// Options configures one probe.
type Options struct {
	SocksPort   int
	Method      string // defaults to GET
	Body        []byte // JSON body for POST
	Timeout     Timeout
	VerifyTLS   bool
	Fingerprint string // utls fingerprint name, empty disables utls
}

// Do issues one HTTP request through socks5h://127.0.0.1:<SocksPort>
// and returns the elapsed time alongside either a Result or an error.
// Redirects are never followed (spec §4.E).
func Do(ctx context.Context, target string, opts Options) (*Result, time.Duration, error) {
	client, err := buildClient(opts)
	if err != nil {
		return nil, 0, err
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if len(opts.Body) > 0 {
		bodyReader = bytes.NewReader(opts.Body)
	}

	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout.Overall())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, target, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("prober: build request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	defer resp.Body.Close()

	n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return &Result{
		StatusCode:    resp.StatusCode,
		ContentLength: contentLength(resp, n),
		Elapsed:       elapsed,
	}, elapsed, nil
}

func contentLength(resp *http.Response, read int64) int64 {
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	return read
}

func buildClient(opts Options) (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", fmt.Sprintf("127.0.0.1:%d", opts.SocksPort), nil, &net.Dialer{
		Timeout: opts.Timeout.Connect,
	})
	if err != nil {
		return nil, fmt.Errorf("prober: build socks dialer: %w", err)
	}

	transport := &http.Transport{
		Dial: dialer.Dial,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !opts.VerifyTLS,
		},
	}
	if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = ctxDialer.DialContext
	}
	applyFingerprint(transport, opts)

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// Valid applies the §4.E response-validation rule.
func Valid(target string, r *Result, minSize int64) bool {
	if strings.Contains(target, "generate_204") {
		return (r.StatusCode == 200 || r.StatusCode == 204) && r.ContentLength <= 64
	}
	if r.StatusCode < 200 || r.StatusCode >= 400 {
		return false
	}
	if minSize > 0 && r.ContentLength < minSize {
		return false
	}
	return true
}

// IsTransientConnectionError reports whether err looks like a
// connection reset/abort/refuse that the retry loop should treat as
// retryable rather than terminal (spec §4.E).
func IsTransientConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, token := range []string{
		"connection aborted",
		"connection reset",
		"connection refused",
		"broken pipe",
		"econnreset",
		"econnaborted",
		"econnrefused",
	} {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}
