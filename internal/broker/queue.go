package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MessageQueue is a single-ended FIFO over a shared broker key, used for
// the lobby and room-control queues (spec.md §6). Unlike Channel it has no
// outbound side: gateways push, the server pops.
type MessageQueue struct {
	client redisClient
	key    string
}

// NewMessageQueue binds a queue to a Redis list key, e.g.
// "texas-holdem-poker:lobby" or "texas-holdem-poker:room-control".
func NewMessageQueue(client *redis.Client, key string) *MessageQueue {
	return &MessageQueue{client: client, key: key}
}

// Push RPUSHes a JSON-encoded message onto the queue.
func (q *MessageQueue) Push(ctx context.Context, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal queue message: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelError, err)
	}
	return nil
}

// Pop waits up to pollInterval for one message, returning ErrMessageTimeout
// if none arrives in that time and ctx's error if ctx is cancelled. The
// lobby and room-control consumer loops run forever and call Pop again
// immediately on an empty pop (spec.md §7: "transient broker pops...
// immediate retry on empty").
func (q *MessageQueue) Pop(ctx context.Context, pollInterval time.Duration) (json.RawMessage, error) {
	result, err := q.client.BLPop(ctx, pollInterval, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMessageTimeout
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrChannelError, err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("%w: unexpected BLPOP result shape", ErrChannelError)
	}
	return json.RawMessage(result[1]), nil
}
