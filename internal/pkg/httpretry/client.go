// Package httpretry retries idempotent provider requests on transient
// failures with capped exponential backoff and full jitter.
package httpretry

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
)

// HTTPDoer executes HTTP requests. *http.Client and *RetryClient satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient retries requests whose method is idempotent. Other methods
// pass straight through to the wrapped client: an outbound call must never
// be placed twice because the first response was lost.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryClient wraps client. A nil client gets a 30s http.Client and
// maxRetries <= 0 means 3 retries after the first attempt.
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
	}
}

// SetBackoff overrides the base and maximum retry delays.
func (rc *RetryClient) SetBackoff(base, maxDelay time.Duration) {
	if base > 0 {
		rc.baseDelay = base
	}
	if maxDelay > 0 {
		rc.maxDelay = maxDelay
	}
}

// Do sends req, retrying idempotent requests on network errors and on
// 429/500/502/503/504. The last response is returned as is so callers can
// read the provider's error body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	if !idempotent(req.Method) {
		return rc.client.Do(req)
	}

	var lastErr error
	var wait time.Duration
	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if attempt > 0 {
			if err := rc.sleep(req, wait); err != nil {
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, err
			}
			logger.Debug("httpretry: retrying",
				"attempt", attempt, "method", req.Method, "path", req.URL.Path, "error", lastErr)
		} else if err := req.Context().Err(); err != nil {
			return nil, err
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = err
			wait = rc.backoff(attempt + 1)
			continue
		}
		if !retryableStatus(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		wait = rc.backoff(attempt + 1)
		if ra := retryAfter(resp.Header.Get("Retry-After"), rc.maxDelay); ra > 0 {
			wait = ra
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: retryable status %d", resp.StatusCode)
	}
	return nil, lastErr
}

func (rc *RetryClient) sleep(req *http.Request, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-req.Context().Done():
		return req.Context().Err()
	}
}

// backoff returns a full-jitter delay in [floor, min(maxDelay, base*2^(n-1))].
func (rc *RetryClient) backoff(n int) time.Duration {
	ceiling := rc.baseDelay << (n - 1)
	if ceiling <= 0 || ceiling > rc.maxDelay {
		ceiling = rc.maxDelay
	}
	d := time.Duration(rand.Int63n(int64(ceiling) + 1))
	if floor := min(rc.baseDelay, 100*time.Millisecond); d < floor {
		d = floor
	}
	return d
}

// retryAfter parses a delay-seconds Retry-After header, capped at limit.
// HTTP-date values are ignored.
func retryAfter(v string, limit time.Duration) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, limit)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
