package cache

import "errors"

// ErrCacheMiss indicates the requested key was not found in cache
var ErrCacheMiss = errors.New("cache: key not found")
