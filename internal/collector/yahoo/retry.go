package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/newthinker/radar/internal/core"
	"go.uber.org/zap"
)

// statusError carries a non-200 response.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// get performs a throttled GET with retry on 429, 5xx and transport errors.
// It returns the body of the first 200 response.
func (y *Yahoo) get(ctx context.Context, endpoint, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := y.throttle.wait(ctx, y.sleep); err != nil {
			return nil, err
		}

		body, retryAfter, err := y.do(ctx, url)
		if err == nil {
			y.throttle.done()
			y.metrics.RecordFetch(endpoint, "ok")
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var se *statusError
		isStatus := errors.As(err, &se)
		if isStatus && !retryableStatus(se.Status) {
			y.metrics.RecordFetch(endpoint, "rejected")
			return nil, core.WrapError(core.ErrPermanentFetch, err)
		}

		lastErr = err
		if attempt >= y.maxRetries {
			y.metrics.RecordFetch(endpoint, "exhausted")
			return nil, core.WrapError(core.ErrTransientFetch,
				fmt.Errorf("after %d retries: %w", attempt, lastErr))
		}

		delay := y.backoff(attempt, retryAfter)
		y.metrics.RecordRetry(endpoint)
		y.logger.Debug("retrying request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := y.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// do issues one request. A non-200 status is returned as *statusError along
// with any Retry-After the server sent.
func (y *Yahoo) do(ctx context.Context, url string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, core.WrapError(core.ErrPermanentFetch, err)
	}
	req.Header.Set("User-Agent", y.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			&statusError{Status: resp.StatusCode, Body: snippet}
	}
	return body, 0, nil
}

// backoff is base * 2^attempt plus jitter, unless the server asked for a
// specific delay. A server delay is capped at base * 2^maxRetries.
func (y *Yahoo) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if limit := y.baseDelay << y.maxRetries; limit > 0 && retryAfter > limit {
			return limit
		}
		return retryAfter
	}
	d := y.baseDelay << attempt
	if y.maxJitter > 0 {
		d += time.Duration(rand.Int64N(int64(y.maxJitter)))
	}
	return d
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
