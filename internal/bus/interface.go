package bus

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Activity kinds published by the application flows.
const (
	KindCaseCreated     = "case.created"
	KindProfileUpgraded = "profile.upgraded"
	KindSignedIn        = "session.signed_in"
	KindSignedOut       = "session.signed_out"
)

// ActivityStream is the Redis stream activity messages are appended to.
const ActivityStream = "activity"

// ActivityMessage is one domain event.
type ActivityMessage struct {
	Kind      string `json:"kind"`
	UserID    string `json:"user_id"`
	SubjectID string `json:"subject_id,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewActivity stamps an activity message with the current time.
func NewActivity(kind, userID, subjectID, summary string) ActivityMessage {
	return ActivityMessage{
		Kind:      kind,
		UserID:    userID,
		SubjectID: subjectID,
		Summary:   summary,
		Timestamp: time.Now().Unix(),
	}
}

// Bus defines the interface for activity bus implementations
type Bus interface {
	// PublishActivity appends an activity message to the activity stream
	PublishActivity(ctx context.Context, msg ActivityMessage) error

	// ReadActivityStream consumes the activity stream as part of a consumer group
	ReadActivityStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg ActivityMessage) error) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL.
// If redisURL is empty or Redis is unreachable, returns a NullBus.
func NewBus(redisURL string, logger *zap.Logger) Bus {
	if logger == nil {
		logger = zap.NewNop()
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, logger)
	if err == nil {
		return redisBus
	}

	// Fall back to null bus if Redis fails
	logger.Info("activity bus disabled", zap.Error(err))
	return NewNullBus(logger)
}

// Publish sends msg and logs, rather than returns, any failure. Activity
// publishing never changes the outcome of the flow that emitted it.
func Publish(ctx context.Context, b Bus, logger *zap.Logger, msg ActivityMessage) {
	if b == nil {
		return
	}
	if err := b.PublishActivity(ctx, msg); err != nil && logger != nil {
		logger.Warn("publish activity failed", zap.String("kind", msg.Kind), zap.Error(err))
	}
}
