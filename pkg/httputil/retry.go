package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a transient failure that [Retry] may attempt again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry calls fn until it succeeds, returns an error not marked with
// [RetryableError], or has run attempts times. The wait before each retry
// starts at delay and doubles. Cancelling ctx during a wait returns ctx.Err().
// At least one call is always made.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	err := fn()
	for n := 1; n < attempts && err != nil; n++ {
		if !errors.As(err, new(*RetryableError)) {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
		err = fn()
	}
	return err
}
