package bus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisBus provides Redis Streams-based activity messaging
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
	maxLen int64
}

// StreamMessage represents a message in a Redis Stream
type StreamMessage struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// StreamHandler is a function that processes stream messages
type StreamHandler func(ctx context.Context, message StreamMessage) error

// defaultMaxLen caps the activity stream so it does not grow without bound.
const defaultMaxLen = 10000

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger *zap.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisBus{
		client: client,
		logger: logger.Named("redisbus"),
		maxLen: defaultMaxLen,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishActivity appends msg to the activity stream
func (rb *RedisBus) PublishActivity(ctx context.Context, msg ActivityMessage) error {
	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: ActivityStream,
		MaxLen: rb.maxLen,
		Approx: true,
		Values: activityFields(msg),
	})

	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}

	rb.logger.Debug("published activity", zap.String("kind", msg.Kind), zap.String("id", result.Val()))
	return nil
}

func activityFields(msg ActivityMessage) map[string]interface{} {
	return map[string]interface{}{
		"kind":       msg.Kind,
		"user_id":    msg.UserID,
		"subject_id": msg.SubjectID,
		"summary":    msg.Summary,
		"timestamp":  msg.Timestamp,
	}
}

// activityFromFields is the inverse of activityFields.
func activityFromFields(fields map[string]string) ActivityMessage {
	msg := ActivityMessage{
		Kind:      fields["kind"],
		UserID:    fields["user_id"],
		SubjectID: fields["subject_id"],
		Summary:   fields["summary"],
	}
	if ts, err := parseTimestamp(fields["timestamp"]); err == nil {
		msg.Timestamp = ts
	}
	return msg
}

// CreateConsumerGroup creates a consumer group for a stream if it doesn't exist
func (rb *RedisBus) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := rb.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s for stream %s: %w", group, stream, err)
	}

	rb.logger.Debug("consumer group ready", zap.String("group", group), zap.String("stream", stream))
	return nil
}

// ReadStream reads messages from a stream using consumer groups
func (rb *RedisBus) ReadStream(ctx context.Context, stream, group, consumer string, handler StreamHandler) error {
	if err := rb.CreateConsumerGroup(ctx, stream, group); err != nil {
		return err
	}

	rb.logger.Info("starting stream reader",
		zap.String("stream", stream), zap.String("group", group), zap.String("consumer", consumer))

	// Entries delivered to this consumer but never acknowledged are replayed
	// first; once that backlog is empty only new entries are read.
	cursor := "0"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		args := &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, cursor},
			Count:    10,
			Block:    1 * time.Second,
		}
		if cursor != ">" {
			args.Block = -1
		}
		result := rb.client.XReadGroup(ctx, args)

		if err := result.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				cursor = ">"
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.logger.Warn("error reading stream", zap.String("stream", stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		if cursor != ">" && pendingDrained(result.Val()) {
			cursor = ">"
			continue
		}

		for _, s := range result.Val() {
			for _, message := range s.Messages {
				if cursor != ">" {
					cursor = message.ID
				}
				streamMsg := StreamMessage{
					ID:     message.ID,
					Fields: make(map[string]string, len(message.Values)),
				}
				for key, value := range message.Values {
					if strValue, ok := value.(string); ok {
						streamMsg.Fields[key] = strValue
					}
				}

				if err := handler(ctx, streamMsg); err != nil {
					rb.logger.Warn("error processing message", zap.String("id", message.ID), zap.Error(err))
					continue
				}

				if err := rb.client.XAck(ctx, s.Stream, group, message.ID).Err(); err != nil {
					rb.logger.Warn("error acknowledging message", zap.String("id", message.ID), zap.Error(err))
				}
			}
		}
	}
}

// pendingDrained reports whether a read of the pending list came back empty.
func pendingDrained(streams []redis.XStream) bool {
	for _, s := range streams {
		if len(s.Messages) > 0 {
			return false
		}
	}
	return true
}

// ReadActivityStream reads from the activity stream
func (rb *RedisBus) ReadActivityStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg ActivityMessage) error) error {
	return rb.ReadStream(ctx, ActivityStream, group, consumer, func(ctx context.Context, message StreamMessage) error {
		return handler(ctx, activityFromFields(message.Fields))
	})
}

// GetStreamInfo returns information about a stream
func (rb *RedisBus) GetStreamInfo(ctx context.Context, stream string) (*redis.XInfoStream, error) {
	result := rb.client.XInfoStream(ctx, stream)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to get stream info for %s: %w", stream, err)
	}
	return result.Val(), nil
}

// parseTimestamp parses a numeric epoch (seconds or milliseconds) or RFC3339 string
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().Unix(), nil
	}

	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		// 13+ digits means milliseconds
		if n > 1_000_000_000_000 {
			return n / 1000, nil
		}
		return n, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.Unix(), nil
	}

	return time.Now().Unix(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the activity stream
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "redis"}

	if info, err := rb.GetStreamInfo(ctx, ActivityStream); err == nil {
		stats["activity_stream"] = map[string]interface{}{
			"length":         info.Length,
			"first_entry_id": info.FirstEntry.ID,
			"last_entry_id":  info.LastEntry.ID,
		}
	}

	if groups, err := rb.client.XInfoGroups(ctx, ActivityStream).Result(); err == nil {
		stats["activity_consumer_groups"] = len(groups)
	}

	return stats, nil
}
