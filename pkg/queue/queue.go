package queue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"review-insights/pkg/logger"
)

// Publisher appends JSON payloads to Redis streams. Consumers read them
// through a consumer group, so delivery survives worker restarts.
type Publisher struct {
	redisClient *redis.Client
	maxLen      int64
	logger      *logger.Logger
}

// NewPublisher creates a new Publisher. maxLen caps the stream length via
// approximate trimming on every append.
func NewPublisher(redisClient *redis.Client, maxLen int64, log *logger.Logger) *Publisher {
	return &Publisher{
		redisClient: redisClient,
		maxLen:      maxLen,
		logger:      log,
	}
}

// Publish marshals the payload and appends it to the stream under the
// 'payload' field. Returns the message ID assigned by Redis.
func (p *Publisher) Publish(ctx context.Context, stream string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	id, err := p.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"payload": data},
		MaxLen: p.maxLen,
		Approx: true,
	}).Result()
	if err != nil {
		p.logger.Error("Failed to enqueue message", logger.ErrorField(err), logger.StringField("stream", stream))
		return "", err
	}

	p.logger.Debug("Message published", logger.StringField("stream", stream), logger.StringField("message_id", id))
	return id, nil
}

// EnsureGroup creates the consumer group on the stream, creating the stream
// itself if it does not exist yet. An already existing group is not an error.
func EnsureGroup(ctx context.Context, redisClient *redis.Client, stream, group string) error {
	err := redisClient.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
