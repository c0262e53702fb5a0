// Package errs contains sentinel and typed errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/sync/server layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity with the same key is already present.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates a missing or invalid owner token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the replica refuses the peer after repeated bad tokens.
	ErrRateLimited = errors.New("rate limited")

	// ErrValidation indicates malformed input rejected before reaching storage.
	ErrValidation = errors.New("validation")

	// ErrLoadFailed indicates the local collection could not be loaded and
	// persisting is refused until the failure is acknowledged.
	ErrLoadFailed = errors.New("local collection load failed")

	// ErrSyncInProgress indicates another process holds the sync lock.
	ErrSyncInProgress = errors.New("another sync is in progress")
)
