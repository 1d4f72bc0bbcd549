package misc

import (
	"context"
	"time"
)

// DefaultBackoff is used for storage start-up and queries.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// Wait blocks for d or until ctx is done, whichever comes first.
// A non-positive d only reports whether ctx is already done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs op once plus one more time per entry in delays, waiting that delay
// first. It stops early on success, on ctx, or when isRetryable rejects the error;
// a nil isRetryable retries every error.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case attempt == len(delays), isRetryable != nil && !isRetryable(err):
			return err
		}
		if werr := Wait(ctx, delays[attempt]); werr != nil {
			return werr
		}
	}
}
