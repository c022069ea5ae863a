package redis

import "errors"

var (
	// ErrCacheDisabled is returned by every operation when the shared tier is turned off
	ErrCacheDisabled = errors.New("redis cache is disabled")

	ErrClientNotInitialized = errors.New("redis client not initialized")

	// ErrKeyNotFound marks a shared tier miss
	ErrKeyNotFound = errors.New("cache key not found")

	ErrConnectionFailed = errors.New("redis connection failed")

	// ErrValueTooLarge is returned when an encoded report exceeds Compression.MaxValueSize
	ErrValueTooLarge = errors.New("cache value too large")

	// ErrSerializationFailed wraps msgpack and gzip failures
	ErrSerializationFailed = errors.New("cache serialization failed")
)

// IsCacheDisabled reports whether err is ErrCacheDisabled
func IsCacheDisabled(err error) bool {
	return errors.Is(err, ErrCacheDisabled)
}

// IsKeyNotFound reports whether err is a shared tier miss
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsConnectionFailed reports whether err came from an unreachable server
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}
