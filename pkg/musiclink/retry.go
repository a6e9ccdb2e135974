package musiclink

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	// defaultRetryMax is the number of retries after the first attempt.
	defaultRetryMax = 2
	defaultWaitMin  = 500 * time.Millisecond
	// defaultWaitMax caps every wait, including server-sent Retry-After.
	defaultWaitMax = 10 * time.Second
)

// newRetryClient wraps client so transport errors, 429 and 5xx responses are
// retried with exponential backoff. Retry-After is honored up to waitMax.
func newRetryClient(client *http.Client, logger *zap.Logger, retryMax int, waitMin, waitMax time.Duration) *retryablehttp.Client {
	if retryMax < 0 {
		retryMax = 0
	}
	if waitMin <= 0 {
		waitMin = defaultWaitMin
	}
	if waitMax < waitMin {
		waitMax = waitMin
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = client
	rc.Logger = leveledLogger{logger.Sugar()}
	rc.RetryMax = retryMax
	rc.RetryWaitMin = waitMin
	rc.RetryWaitMax = waitMax
	rc.CheckRetry = checkRetry
	rc.Backoff = backoff
	return rc
}

// checkRetry is the library's default policy, except that hitting the redirect
// limit is final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if errors.Is(err, ErrTooManyRedirects) {
		return false, err
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// backoff waits for Retry-After when the server sends one, capped at waitMax,
// and backs off exponentially otherwise.
func backoff(waitMin, waitMax time.Duration, attempt int, resp *http.Response) time.Duration {
	if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
		return min(retryAfter, waitMax)
	}
	return retryablehttp.DefaultBackoff(waitMin, waitMax, attempt, nil)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}

	return 0
}

// leveledLogger routes retryablehttp's logging through zap. Failed attempts are
// retried or returned to the caller, so they are logged as warnings.
type leveledLogger struct {
	logger *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) { l.logger.Warnw(msg, keysAndValues...) }
func (l leveledLogger) Info(msg string, keysAndValues ...any) { l.logger.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Debug(msg string, keysAndValues ...any) { l.logger.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Warn(msg string, keysAndValues ...any) { l.logger.Warnw(msg, keysAndValues...) }
