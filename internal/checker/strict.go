package checker

import (
	"context"

	"github.com/komyaka/xraycheck/internal/prober"
)

// runStrictMode implements the STRONG_STYLE_TEST path (spec §4.F): a
// fixed number of sequential GETs to a known-good endpoint, each with
// its own split timeout, no retries. A single failed or too-slow
// attempt kills the key outright.
func (c *Checker) runStrictMode(ctx context.Context, socksPort int, rawKey, fullLine string, debug bool) Verdict {
	attempts := c.cfg.StrongAttempts
	if attempts < 1 {
		attempts = 1
	}

	connectSecs := clampInt(3, 10, int(0.4*c.cfg.StrongStyleTimeout))
	readSecs := c.cfg.StrongStyleTimeout - float64(connectSecs)
	if readSecs < 5 {
		readSecs = 5
	}
	timeout := prober.Timeout{
		Connect: durationFromSeconds(float64(connectSecs)),
		Read:    durationFromSeconds(readSecs),
	}

	maxOkTime := c.cfg.StrongMaxResponseTime

	m := emptyMetrics()
	for i := 0; i < attempts; i++ {
		if i > 0 {
			sleep(ctx, 0.5)
		}

		result, elapsed, err := prober.Do(ctx, gstaticCheckURL, prober.Options{
			SocksPort:   socksPort,
			Timeout:     timeout,
			VerifyTLS:   c.cfg.VerifyHTTPSSSL,
			Fingerprint: c.fingerprintOf(),
		})
		m.TotalRequests++

		if err != nil || result == nil || !prober.Valid(gstaticCheckURL, result, 0) {
			m.FailedURLs = 1
			return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: m}
		}
		if maxOkTime > 0 && elapsed.Seconds() > maxOkTime {
			m.FailedURLs = 1
			return Verdict{Key: rawKey, Full: fullLine, Alive: false, Metrics: m}
		}

		m.ResponseTimes = append(m.ResponseTimes, elapsed.Seconds())
		m.SuccessfulRequests++
	}

	m.SuccessfulURLs = 1
	m.AvgResponseTime = average(m.ResponseTimes)
	return Verdict{Key: rawKey, Full: fullLine, Alive: true, Metrics: m}
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
