package pixel

import (
	"context"
	"time"
)

// RetryWithBackoff runs fn and, on failure, retries up to retries
// more times with the delay doubling between attempts. Zero retries
// means a single attempt with no wait. The last error is returned
// once retries are exhausted; ctx cancellation cuts the wait short.
func RetryWithBackoff(ctx context.Context, retries int, delay time.Duration, fn func(context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retries <= 0 {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		retries--
		delay *= 2
	}
}
