package httputil

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failures  int
		retryable bool
		wantCalls int
		wantErr   bool
	}{
		{"SucceedsFirstTry", 3, 0, true, 1, false},
		{"RecoversAfterRetries", 3, 2, true, 3, false},
		{"GivesUp", 3, 5, true, 3, true},
		{"PermanentErrorNotRetried", 3, 5, false, 1, true},
		{"ZeroAttemptsRunsOnce", 0, 5, true, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.attempts, time.Millisecond, func() error {
				calls++
				if calls > tt.failures {
					return nil
				}
				if tt.retryable {
					return &RetryableError{Err: errFlaky}
				}
				return errFlaky
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errFlaky) {
				t.Errorf("err = %v, want it to wrap errFlaky", err)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return &RetryableError{Err: errFlaky}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
