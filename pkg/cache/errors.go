package cache

import "errors"

// ErrUnavailable is returned when the cache backend cannot be reached.
var ErrUnavailable = errors.New("cache unavailable")
