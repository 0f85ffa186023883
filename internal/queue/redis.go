package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on top of a single go-redis client, mirroring
// the connect/xadd/xread/publish/subscribe surface of a typical Python
// redis.asyncio wrapper: one client, JSON-free field maps for XADD, and a
// best-effort approximate trim rather than an exact one.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue dials addr and verifies connectivity with PING.
func NewRedisQueue(ctx context.Context, addr string, db int) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("queue: redis ping: %w", err)
	}
	return &RedisQueue{client: client}, nil
}

// Add implements Streams.
func (q *RedisQueue) Add(ctx context.Context, stream string, fields map[string]string, maxlen int64) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: fields,
	}
	if maxlen > 0 {
		args.MaxLen = maxlen
		args.Approx = true
	}
	id, err := q.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("queue: xadd %s: %w", stream, err)
	}
	return id, nil
}

// Read implements Streams.
func (q *RedisQueue) Read(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]Message, error) {
	res, err := q.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: xread %s: %w", stream, err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	msgs := make([]Message, 0, len(res[0].Messages))
	for _, m := range res[0].Messages {
		fields := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			if s, ok := v.(string); ok {
				fields[k] = s
			} else {
				fields[k] = fmt.Sprintf("%v", v)
			}
		}
		msgs = append(msgs, Message{ID: m.ID, Fields: fields})
	}
	return msgs, nil
}

// Publish implements PubSub.
func (q *RedisQueue) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := q.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("queue: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe implements PubSub.
func (q *RedisQueue) Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error) {
	sub := q.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("queue: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close, nil
}

// Close implements Streams.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Client returns the underlying go-redis client, for components (e.g. the
// alert throttle) that need direct Redis access beyond the Streams/PubSub
// surface.
func (q *RedisQueue) Client() *redis.Client {
	return q.client
}
