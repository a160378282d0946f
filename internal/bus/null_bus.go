package bus

import (
	"context"

	"go.uber.org/zap"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	logger *zap.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger *zap.Logger) *NullBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NullBus{logger: logger.Named("nullbus")}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishActivity logs the message but doesn't actually publish it
func (nb *NullBus) PublishActivity(ctx context.Context, msg ActivityMessage) error {
	nb.logger.Debug("would publish activity (Redis disabled)",
		zap.String("kind", msg.Kind), zap.String("user_id", msg.UserID))
	return nil
}

// ReadActivityStream blocks until the context is cancelled
func (nb *NullBus) ReadActivityStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg ActivityMessage) error) error {
	nb.logger.Debug("would read activity stream (Redis disabled)",
		zap.String("group", group), zap.String("consumer", consumer))
	<-ctx.Done()
	return ctx.Err()
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
