package checker

import (
	"context"

	"github.com/komyaka/xraycheck/internal/geoip"
	"github.com/komyaka/xraycheck/internal/prober"
)

type testURL struct {
	url   string
	https bool
}

// candidateURLs builds the probe URL list per spec §4.F: TEST_URLS
// (plain) union TEST_URLS_HTTPS, falling back to the single TEST_URL
// when neither list is set.
func (c *Checker) candidateURLs() []testURL {
	var urls []testURL
	for _, u := range c.cfg.TestURLs {
		urls = append(urls, testURL{url: u, https: false})
	}
	for _, u := range c.cfg.TestURLsHTTPS {
		urls = append(urls, testURL{url: u, https: true})
	}
	if len(urls) == 0 {
		urls = append(urls, testURL{url: c.cfg.TestURL, https: len(c.cfg.TestURL) > 8 && c.cfg.TestURL[:8] == "https://"})
	}
	return urls
}

// runNormalMode implements the default, non-strict-style probing
// strategy (spec §4.F): one or more stability rounds, each issuing
// REQUESTS_PER_URL requests (with retries) to every candidate URL,
// with an early short-circuit once enough URLs succeed.
func (c *Checker) runNormalMode(ctx context.Context, socksPort int, rawKey, fullLine string, debug bool) Verdict {
	urls := c.candidateURLs()
	rounds := c.cfg.StabilityChecks
	if rounds < 1 {
		rounds = 1
	}

	m := emptyMetrics()
	lastRoundResults := make(map[string]bool, len(urls))
	stabilityResults := make([]bool, 0, rounds)

	connectSecs := c.cfg.ConnectTimeout
	if c.cfg.UseAdaptiveTimeout {
		connectSecs = c.cfg.ConnectTimeoutSlow
	}
	timeout := prober.Timeout{
		Connect: durationFromSeconds(connectSecs),
		Read:    durationFromSeconds(connectSecs),
	}
	minSize := int64(c.cfg.MinResponseSize)

	for round := 0; round < rounds; round++ {
		if round > 0 {
			sleep(ctx, c.cfg.StabilityCheckDelay)
		}

		roundResults := make(map[string]bool, len(urls))
		successfulCount := 0

		for _, tu := range urls {
			ok, _, attempts := c.probeURLRequests(ctx, socksPort, tu.url, timeout, minSize, &m)
			m.TotalRequests += attempts
			roundResults[tu.url] = ok
			if ok {
				successfulCount++
			}

			if !c.cfg.StrictMode && successfulCount >= c.cfg.MinSuccessfulURLs {
				if !c.cfg.RequireHTTPS || anyHTTPSSucceeded(urls, roundResults) {
					break
				}
			}
		}

		if c.cfg.TestPostRequests && len(urls) > 0 {
			c.probePost(ctx, socksPort, urls[0].url, timeout, &m)
		}

		if c.cfg.CheckGeolocation {
			rec, err := geoip.Lookup(ctx, socksPort, c.cfg.GeolocationService, timeout.Overall())
			if err == nil {
				m.Geolocation = rec
				if !geoip.Allowed(rec, c.cfg.AllowedCountries) {
					m.FailedURLs = len(urls)
					return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: m}
				}
			}
		}

		httpsPassed := true
		if c.cfg.RequireHTTPS {
			httpsURLs := httpsOnly(urls)
			if len(httpsURLs) > 0 {
				httpsPassed = anyHTTPSSucceeded(urls, roundResults)
			}
		}

		if c.cfg.StrictMode && c.cfg.StrictModeRequireAll {
			allPassed := successfulCount == len(urls)
			stabilityResults = append(stabilityResults, allPassed && httpsPassed)
			if !allPassed || !httpsPassed {
				lastRoundResults = roundResults
				break
			}
		} else {
			stabilityResults = append(stabilityResults, successfulCount >= c.cfg.MinSuccessfulURLs && httpsPassed)
		}

		lastRoundResults = roundResults
	}

	if rounds > 1 && !allTrue(stabilityResults) {
		m.SuccessfulURLs, m.FailedURLs = tallyResults(urls, lastRoundResults)
		return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: m}
	}

	m.AvgResponseTime = average(m.ResponseTimes)
	if c.cfg.MinAvgResponseTime > 0 && m.AvgResponseTime > c.cfg.MinAvgResponseTime {
		m.SuccessfulURLs, m.FailedURLs = tallyResults(urls, lastRoundResults)
		return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: m}
	}

	successfulURLs, failedURLs := tallyResults(urls, lastRoundResults)
	m.SuccessfulURLs = successfulURLs
	m.FailedURLs = failedURLs

	isAvailable := successfulURLs >= c.cfg.MinSuccessfulURLs
	if c.cfg.StrictMode && c.cfg.StrictModeRequireAll {
		isAvailable = successfulURLs == len(urls)
	}
	if c.cfg.RequireHTTPS {
		httpsURLs := httpsOnly(urls)
		if len(httpsURLs) == 0 {
			isAvailable = false
		} else {
			httpsOK, _ := tallyResults(httpsURLs, lastRoundResults)
			if c.cfg.StrictMode && c.cfg.StrictModeRequireAll {
				isAvailable = isAvailable && httpsOK == len(httpsURLs)
			} else if httpsOK == 0 {
				isAvailable = false
			}
		}
	}

	return Verdict{Key: rawKey, Full: fullLine, Alive: isAvailable, Metrics: m}
}

// probeURLRequests issues REQUESTS_PER_URL attempts (each with its own
// retry budget) against one URL and reports whether MIN_SUCCESSFUL_REQUESTS
// of them passed.
func (c *Checker) probeURLRequests(ctx context.Context, socksPort int, url string, timeout prober.Timeout, minSize int64, m *Metrics) (bool, float64, int) {
	requests := c.cfg.RequestsPerURL
	if requests < 1 {
		requests = 1
	}

	successes := 0
	totalAttempts := 0
	lastElapsed := 0.0

	for i := 0; i < requests; i++ {
		if i > 0 {
			sleep(ctx, c.cfg.RequestDelay)
		}

		ok, elapsed, attempts := c.requestWithRetries(ctx, url, socksPort, timeout, minSize, c.cfg.MaxResponseTime)
		totalAttempts += attempts
		if ok {
			successes++
			lastElapsed = elapsed
			m.ResponseTimes = append(m.ResponseTimes, elapsed)
			m.SuccessfulRequests++
		}
	}

	return successes >= c.cfg.MinSuccessfulReqs, lastElapsed, totalAttempts
}

// probePost fires one POST request that counts only toward the totals,
// never toward per-URL success (spec §4.F TEST_POST_REQUESTS).
func (c *Checker) probePost(ctx context.Context, socksPort int, url string, timeout prober.Timeout, m *Metrics) {
	result, _, err := prober.Do(ctx, url, prober.Options{
		SocksPort:   socksPort,
		Timeout:     timeout,
		VerifyTLS:   c.cfg.VerifyHTTPSSSL,
		Fingerprint: c.fingerprintOf(),
		Method:      "POST",
	})
	m.TotalRequests++
	if err == nil && result != nil && prober.Valid(url, result, 0) {
		m.SuccessfulRequests++
	}
}

func anyHTTPSSucceeded(urls []testURL, results map[string]bool) bool {
	for _, tu := range urls {
		if tu.https && results[tu.url] {
			return true
		}
	}
	return false
}

func httpsOnly(urls []testURL) []testURL {
	var out []testURL
	for _, tu := range urls {
		if tu.https {
			out = append(out, tu)
		}
	}
	return out
}

func tallyResults(urls []testURL, results map[string]bool) (int, int) {
	successful := 0
	for _, tu := range urls {
		if results[tu.url] {
			successful++
		}
	}
	return successful, len(urls) - successful
}

func allTrue(xs []bool) bool {
	for _, x := range xs {
		if !x {
			return false
		}
	}
	return true
}
