package port

import "context"

type CacheRepository interface {
	// SetIdempotency claims a request key, returns false if already claimed
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// SetAvailability refreshes the cached availability for an item
	SetAvailability(ctx context.Context, itemID string, available int) error

	// GetAvailability reads cached availability; ok is false on a miss
	GetAvailability(ctx context.Context, itemID string) (available int, ok bool, err error)
}
