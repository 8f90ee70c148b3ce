package checker

import (
	"context"
	"math"
	"time"

	"github.com/komyaka/xraycheck/internal/prober"
)

// fingerprintOf turns the TLS_FINGERPRINT setting into the value
// prober.Options expects ("none" disables it).
func (c *Checker) fingerprintOf() string {
	if c.cfg.TLSFingerprint == "none" {
		return ""
	}
	return c.cfg.TLSFingerprint
}

// requestWithRetries issues up to MaxRetries+1 attempts against url,
// retrying only on a transient connection error, with an exponential
// backoff between attempts (spec §4.F "Each request allows up to
// MAX_RETRIES retries").
func (c *Checker) requestWithRetries(ctx context.Context, url string, port int, timeout prober.Timeout, minSize int64, maxResponseTime float64) (bool, float64, int) {
	attempts := 0
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelayBase * math.Pow(c.cfg.RetryDelayMultiplier, float64(attempt-1))
			sleep(ctx, delay)
		}

		attempts++
		result, elapsed, err := prober.Do(ctx, url, prober.Options{
			SocksPort:   port,
			Timeout:     timeout,
			VerifyTLS:   c.cfg.VerifyHTTPSSSL,
			Fingerprint: c.fingerprintOf(),
		})

		if err == nil && result != nil && prober.Valid(url, result, minSize) {
			if maxResponseTime > 0 && elapsed.Seconds() > maxResponseTime {
				break
			}
			return true, elapsed.Seconds(), attempts
		}

		if err != nil && isRetryableAfterError(err) && attempt < c.cfg.MaxRetries {
			continue
		}
		break
	}
	return false, 0, attempts
}

func sleep(ctx context.Context, seconds float64) {
	if seconds <= 0 {
		return
	}
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	case <-ctx.Done():
	}
}
