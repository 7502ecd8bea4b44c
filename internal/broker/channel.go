// Package broker implements the Channel/MessageQueue transport abstraction:
// a duplex, timeout-aware message carrier backed by Redis lists (BLPOP /
// RPUSH), plus a bot-backed variant whose sends are no-ops and whose
// receives always time out.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrChannelClosed is returned by Recv when the channel is closed locally,
// and wraps into ErrChannelError by callers treating it as a disconnect.
var ErrChannelClosed = errors.New("broker: channel closed")

// ErrChannelError is the general transport failure signal (closed, write
// failed); callers translate it into a player disconnection.
var ErrChannelError = errors.New("broker: channel error")

// ErrMessageTimeout is returned by Recv when no message arrives before the
// deadline.
var ErrMessageTimeout = errors.New("broker: message timeout")

// MessageFormatError reports a malformed or missing attribute in a message
// already popped off the queue.
type MessageFormatError struct {
	Attribute string
	Desc      string
}

func (e *MessageFormatError) Error() string {
	return fmt.Sprintf("broker: malformed message attribute %q: %s", e.Attribute, e.Desc)
}

// Channel is an abstract duplex message carrier. Two concrete variants
// exist: the Redis-backed channel (two named FIFOs, inbound and outbound)
// and the bot channel, whose Send is a no-op and whose Recv always reports
// ErrMessageTimeout.
type Channel interface {
	Send(ctx context.Context, msg any) error
	Recv(ctx context.Context, deadline time.Time) (json.RawMessage, error)
	Close() error
}

// RedisChannel carries messages over a pair of Redis lists: inbound is
// popped with BLPOP (blocking, deadline-aware), outbound is pushed with
// RPUSH. This mirrors channel_redis.py's ChannelRedis, which the original
// server wires up as "poker5:player-{id}:session-{sid}:I" (inbound) and
// "...:O" (outbound).
type RedisChannel struct {
	client   redisClient
	inbound  string
	outbound string

	mu     sync.Mutex
	closed bool
}

// NewRedisChannel builds a channel over the given inbound/outbound Redis
// list keys.
func NewRedisChannel(client *redis.Client, inbound, outbound string) *RedisChannel {
	return &RedisChannel{client: client, inbound: inbound, outbound: outbound}
}

// Send JSON-encodes msg and RPUSHes it onto the outbound list.
func (c *RedisChannel) Send(ctx context.Context, msg any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelError
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal outbound message: %w", err)
	}
	if err := c.client.RPush(ctx, c.outbound, body).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelError, err)
	}
	return nil
}

// Recv BLPOPs the inbound list with a deadline. It returns ErrMessageTimeout
// if nothing arrives before deadline, and ErrChannelClosed if the channel is
// closed while waiting.
func (c *RedisChannel) Recv(ctx context.Context, deadline time.Time) (json.RawMessage, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrChannelClosed
	}

	timeout := time.Until(deadline)
	if timeout <= 0 {
		return nil, ErrMessageTimeout
	}

	result, err := c.client.BLPop(ctx, timeout, c.inbound).Result()
	c.mu.Lock()
	closed = c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrChannelClosed
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMessageTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrChannelError, err)
	}

	// BLPop returns [key, value]; value is the payload.
	if len(result) != 2 {
		return nil, fmt.Errorf("%w: unexpected BLPOP result shape", ErrChannelError)
	}
	return json.RawMessage(result[1]), nil
}

// Close marks the channel closed; any in-flight Recv returns ErrChannelClosed
// once its BLPOP returns.
func (c *RedisChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// BotChannel is the pseudo-channel behind a bot seat: Send swallows every
// message, Recv always reports a timeout since a bot never produces inbound
// wire traffic of its own (its decisions are fed directly into the bet
// handler, see internal/bot).
type BotChannel struct {
	mu     sync.Mutex
	closed bool
}

// NewBotChannel returns a channel that discards outbound traffic and never
// yields inbound messages.
func NewBotChannel() *BotChannel { return &BotChannel{} }

func (b *BotChannel) Send(ctx context.Context, msg any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrChannelError
	}
	return nil
}

func (b *BotChannel) Recv(ctx context.Context, deadline time.Time) (json.RawMessage, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrChannelClosed
	}
	return nil, ErrMessageTimeout
}

func (b *BotChannel) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
