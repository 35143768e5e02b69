package port

import (
	"context"

	"github.com/tickethub/booking-engine/internal/core/domain"
)

// EventPublisher delivers a booking event to the notification broker. The
// dispatcher retries failed publishes; implementations should not retry
// internally.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
