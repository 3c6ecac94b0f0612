package bork

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

var (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 30 * time.Second
)

// persistWithRetry runs op until it succeeds, fails with a non-transient
// error, or ctx is done. Used for store calls that must never be skipped.
func persistWithRetry(ctx context.Context, log *logrus.Entry, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = 0 // until ctx is done
	attempt := func() error {
		err := op()
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(attempt, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		log.WithError(err).WithField("retry_in", d).Warnf("%s failed, retrying", what)
	})
}

// isTransient: the store was busy or unreachable. Any other coded error
// (not-found, already-exists, ...) will not change on retry.
func isTransient(err error) bool {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info.Code == DBConflict || info.Code == NotAvailable
	}
	return true
}
