package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the lock key only when it still holds the
// token we set, so an expired-and-reacquired lock is never released by
// the previous holder.
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisFactory hands out queues backed by Redis streams.
type RedisFactory struct {
	client *redis.Client
}

func NewRedisFactory(client *redis.Client) *RedisFactory {
	return &RedisFactory{client: client}
}

func (f *RedisFactory) Queue(name string) Queue {
	return &RedisQueue{client: f.client, stream: name}
}

// RedisQueue stores entries in a single Redis stream under the field
// "data". Pop uses a SET NX advisory lock scoped to the stream so that
// concurrent consumers across processes never double-deliver.
type RedisQueue struct {
	client *redis.Client
	stream string
}

func NewRedisQueue(client *redis.Client, stream string) *RedisQueue {
	return &RedisQueue{client: client, stream: stream}
}

func (q *RedisQueue) Put(ctx context.Context, payload string) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{"data": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", q.stream, err)
	}
	return id, nil
}

func (q *RedisQueue) Tail(ctx context.Context, afterID string, block time.Duration) (string, string, error) {
	if afterID == "" {
		afterID = "0"
	}

	if block <= 0 {
		// Non-blocking read of the first entry strictly after afterID.
		entries, err := q.client.XRangeN(ctx, q.stream, "("+afterID, "+", 1).Result()
		if err != nil {
			return "", "", fmt.Errorf("xrange %s: %w", q.stream, err)
		}
		if len(entries) == 0 {
			return "", "", nil
		}
		return entries[0].ID, entryData(entries[0]), nil
	}

	streams, err := q.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{q.stream, afterID},
		Count:   1,
		Block:   block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("xread %s: %w", q.stream, err)
	}
	for _, s := range streams {
		for _, e := range s.Messages {
			return e.ID, entryData(e), nil
		}
	}
	return "", "", nil
}

func (q *RedisQueue) Pop(ctx context.Context) (string, string, error) {
	token, ok, err := q.acquirePopLock(ctx)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", nil
	}
	defer q.releasePopLock(ctx, token)

	entries, err := q.client.XRangeN(ctx, q.stream, "-", "+", 1).Result()
	if err != nil {
		return "", "", fmt.Errorf("xrange %s: %w", q.stream, err)
	}
	if len(entries) == 0 {
		return "", "", nil
	}
	head := entries[0]
	if err := q.client.XDel(ctx, q.stream, head.ID).Err(); err != nil {
		return "", "", fmt.Errorf("xdel %s: %w", q.stream, err)
	}
	return head.ID, entryData(head), nil
}

func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("xlen %s: %w", q.stream, err)
	}
	return n, nil
}

func (q *RedisQueue) Clear(ctx context.Context) error {
	if err := q.client.XTrimMaxLen(ctx, q.stream, 0).Err(); err != nil {
		return fmt.Errorf("xtrim %s: %w", q.stream, err)
	}
	return nil
}

func (q *RedisQueue) Delete(ctx context.Context, id string) error {
	if err := q.client.XDel(ctx, q.stream, id).Err(); err != nil {
		return fmt.Errorf("xdel %s: %w", q.stream, err)
	}
	return nil
}

func (q *RedisQueue) LatestID(ctx context.Context) (string, error) {
	entries, err := q.client.XRevRangeN(ctx, q.stream, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("xrevrange %s: %w", q.stream, err)
	}
	if len(entries) == 0 {
		return "0", nil
	}
	return entries[0].ID, nil
}

// acquirePopLock polls SET NX until it wins the lock or the bounded
// acquire window elapses. The returned token identifies this holder.
func (q *RedisQueue) acquirePopLock(ctx context.Context) (token string, ok bool, err error) {
	key := "lock:" + q.stream + ":pop"
	token = uuid.NewString()
	deadline := time.Now().Add(popLockAcquire)
	for {
		got, err := q.client.SetNX(ctx, key, token, popLockExpiry).Result()
		if err != nil {
			return "", false, fmt.Errorf("lock %s: %w", key, err)
		}
		if got {
			return token, true, nil
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(popLockRetry):
		}
	}
}

func (q *RedisQueue) releasePopLock(ctx context.Context, token string) {
	key := "lock:" + q.stream + ":pop"
	// Best effort: the expiry reclaims the lock if the release is lost.
	_ = releaseLockScript.Run(ctx, q.client, []string{key}, token).Err()
}

func entryData(e redis.XMessage) string {
	if v, ok := e.Values["data"].(string); ok {
		return v
	}
	return ""
}
