package httpx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Classifier tells the retry loop whether an error from a single attempt is
// worth retrying. Each client package (tracker, board, agentplatform) maps
// its own typed error Kind onto this function.
type Classifier func(err error) bool

// RetryConfig bounds how long Do keeps retrying a transient failure.
type RetryConfig struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig matches the external-call backoff described for the
// tracker, board, and agent platform clients: a handful of attempts within
// a bounded wall-clock budget, not unbounded retrying.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxElapsedTime:  30 * time.Second,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// maxRetries caps how many times Do retries after the first attempt.
const maxRetries = 3

// Do runs fn, retrying with exponential backoff and jitter while
// classify(err) reports true, at most maxRetries times, within cfg's
// elapsed-time budget and until ctx is done.
func Do(ctx context.Context, cfg RetryConfig, classify Classifier, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsedTime

	bctx := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if classify == nil || !classify(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bctx)
}
