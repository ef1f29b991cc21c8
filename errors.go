package gorawrcache

import "errors"

// Error taxonomy of the cache subsystem. Key-construction errors live in
// the key package (key.ErrInvalidKey, key.ErrMalformedKey) and pattern
// errors in the invalidate package; the sentinels here cover configuration,
// serialization, and the L2 backend.
//
// Backend errors are deliberately never returned from Manager methods:
// they are absorbed into degraded-mode behavior and surface only through
// metrics, logs, and the availability flag. Producer failures are the one
// class the cache cannot recover from locally and are always propagated.
var (
	// ErrInvalidConfig reports invalid cache limits or TTLs.
	ErrInvalidConfig = errors.New("cache: invalid configuration")

	// ErrSerialization reports a value that cannot be encoded for storage.
	ErrSerialization = errors.New("cache: value not serializable")

	// ErrBackendUnavailable marks the L2 backend as unreachable.
	ErrBackendUnavailable = errors.New("cache: backend unavailable")

	// ErrBackendError wraps an L2 backend failure.
	ErrBackendError = errors.New("cache: backend error")
)
