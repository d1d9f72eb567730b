// Package httputil provides retry helpers shared by the remote store client
// and the Redis cache.
//
// [Retry] runs an operation with exponential backoff. Only failures wrapped
// in [RetryableError] are retried, so callers decide what is transient
// (connection errors and 5xx responses) and what is not (4xx responses,
// decode errors):
//
//	err := httputil.Retry(ctx, 3, 250*time.Millisecond, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
package httputil
