// Package retry implements a generic bounded retry helper, generalizing
// the three inline retry loops duplicated across the teacher's worker,
// probe, and download-task code into one reusable function, per
// spec.md §9's "Retry loop" design note.
package retry

import (
	"context"
	"time"
)

// Do calls op up to attempts times, sleeping delay between attempts
// (honoring ctx cancellation during the sleep). It returns the first
// successful result, or the last error if every attempt failed. attempts
// must be >= 1.
func Do[T any](ctx context.Context, attempts int, delay time.Duration, op func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		v, err := op(attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
	}
	return zero, lastErr
}
