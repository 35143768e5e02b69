package messaging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tickethub/booking-engine/internal/core/domain"
	"github.com/tickethub/booking-engine/internal/port"
)

// Dispatcher drains the coordinators' event queue and publishes each event
// with bounded retry. Delivery is at-least-once from the broker's exchange;
// emission stays outside the booking transaction, so a publish failure never
// rolls back a committed booking.
type Dispatcher struct {
	publisher  port.EventPublisher
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

func NewDispatcher(publisher port.EventPublisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		publisher:  publisher,
		logger:     logger,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Run consumes events until the queue is closed. Start one goroutine per
// worker.
func (d *Dispatcher) Run(events <-chan domain.Event) {
	for event := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.publishWithRetry(ctx, event); err != nil {
			d.logger.Error("event delivery failed, giving up",
				zap.String("type", string(event.Type)),
				zap.String("booking_id", event.BookingID),
				zap.Error(err))
		} else {
			d.logger.Info("event delivered",
				zap.String("type", string(event.Type)),
				zap.String("booking_id", event.BookingID))
		}
		cancel()
	}
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, event domain.Event) error {
	var lastErr error
	for i := 0; i < d.maxRetries; i++ {
		if lastErr = d.publisher.Publish(ctx, event); lastErr == nil {
			return nil
		}
		d.logger.Warn("event publish failed",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", d.maxRetries),
			zap.Error(lastErr))

		if i < d.maxRetries-1 {
			select {
			case <-time.After(d.retryDelay * time.Duration(i+1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
