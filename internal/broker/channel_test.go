package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is a minimal in-memory stand-in for the redisClient interface,
// enough to exercise RPush/BLPop semantics without a live Redis server.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string][]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]string)}
}

func (f *fakeRedis) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			f.data[key] = append(f.data[key], string(b))
		case string:
			f.data[key] = append(f.data[key], b)
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.data[key])))
	return cmd
}

func (f *fakeRedis) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	deadline := time.Now().Add(timeout)
	for {
		f.mu.Lock()
		for _, key := range keys {
			if len(f.data[key]) > 0 {
				val := f.data[key][0]
				f.data[key] = f.data[key][1:]
				f.mu.Unlock()
				cmd := redis.NewStringSliceCmd(ctx)
				cmd.SetVal([]string{key, val})
				return cmd
			}
		}
		f.mu.Unlock()

		if time.Now().After(deadline) {
			cmd := redis.NewStringSliceCmd(ctx)
			cmd.SetErr(redis.Nil)
			return cmd
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRedisChannelSendRecv(t *testing.T) {
	fake := newFakeRedis()
	// The test pushes directly onto "in" (simulating the peer) and reads
	// via the channel's Recv; Send goes to "out".
	ch := &RedisChannel{client: fake, inbound: "in", outbound: "out"}

	fake.RPush(context.Background(), "in", []byte(`{"message_type":"pong"}`))

	got, err := ch.Recv(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message_type":"pong"}`, string(got))

	require.NoError(t, ch.Send(context.Background(), map[string]string{"message_type": "ping"}))
	fake.mu.Lock()
	assert.Len(t, fake.data["out"], 1)
	fake.mu.Unlock()
}

func TestRedisChannelRecvTimeout(t *testing.T) {
	fake := newFakeRedis()
	ch := &RedisChannel{client: fake, inbound: "in", outbound: "out"}

	_, err := ch.Recv(context.Background(), time.Now().Add(20*time.Millisecond))
	assert.ErrorIs(t, err, ErrMessageTimeout)
}

func TestRedisChannelClosedRejectsSend(t *testing.T) {
	fake := newFakeRedis()
	ch := &RedisChannel{client: fake, inbound: "in", outbound: "out"}

	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Send(context.Background(), map[string]string{}), ErrChannelError)

	_, err := ch.Recv(context.Background(), time.Now().Add(time.Second))
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestBotChannelNeverReceives(t *testing.T) {
	bot := NewBotChannel()
	require.NoError(t, bot.Send(context.Background(), map[string]string{"x": "y"}))

	_, err := bot.Recv(context.Background(), time.Now().Add(10*time.Millisecond))
	assert.ErrorIs(t, err, ErrMessageTimeout)

	require.NoError(t, bot.Close())
	assert.ErrorIs(t, bot.Send(context.Background(), nil), ErrChannelError)
}

func TestMessageQueuePushPop(t *testing.T) {
	fake := newFakeRedis()
	q := &MessageQueue{client: fake, key: "lobby"}

	type payload struct {
		X int `json:"x"`
	}
	require.NoError(t, q.Push(context.Background(), payload{X: 7}))

	raw, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)

	var got payload
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 7, got.X)
}

func TestMessageQueuePopEmptyTimesOut(t *testing.T) {
	fake := newFakeRedis()
	q := &MessageQueue{client: fake, key: "lobby"}

	_, err := q.Pop(context.Background(), 20*time.Millisecond)
	assert.True(t, errors.Is(err, ErrMessageTimeout))
}
