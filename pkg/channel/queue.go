package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue layout in the broker namespace. Frames are list elements with
// a one-byte discriminator so a data payload can never be mistaken for
// the end-of-stream marker.
const (
	frameData = 'D'
	frameEOF  = 'E'

	keyPrefix = "couplet:q:"

	// MaxPending bounds how many frames a producer may have in flight
	// on one queue before Send starts waiting for capacity.
	MaxPending = 1024

	capacityPoll = 10 * time.Millisecond
)

func queueKey(q string) string     { return keyPrefix + q }
func closedKey(q string) string    { return keyPrefix + q + ":closed" }
func consumersKey(q string) string { return keyPrefix + q + ":consumers" }

// RegisterConsumer records one consumer on a queue. The runtime calls
// this during binding so that queue closure can fan one EOF frame out
// to every reader.
func RegisterConsumer(ctx context.Context, rdb *redis.Client, queue string) error {
	if err := rdb.Incr(ctx, consumersKey(queue)).Err(); err != nil {
		return fmt.Errorf("register consumer on %q: %w", queue, err)
	}
	return nil
}

// CloseQueue marks a queue closed and, on the first close, appends one
// EOF frame per registered consumer. Safe to call from both the client
// library and the runtime; only the first caller emits the markers.
func CloseQueue(ctx context.Context, rdb *redis.Client, queue string) error {
	first, err := rdb.SetNX(ctx, closedKey(queue), "1", 0).Result()
	if err != nil {
		return fmt.Errorf("close queue %q: %w", queue, err)
	}
	if !first {
		return nil
	}
	n, err := rdb.Get(ctx, consumersKey(queue)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("close queue %q: %w", queue, err)
	}
	if n < 1 {
		n = 1
	}
	frames := make([]any, n)
	for i := range frames {
		frames[i] = string(frameEOF)
	}
	if err := rdb.RPush(ctx, queueKey(queue), frames...).Err(); err != nil {
		return fmt.Errorf("close queue %q: %w", queue, err)
	}
	return nil
}

// QueueClosed reports whether a queue has been marked closed.
func QueueClosed(ctx context.Context, rdb *redis.Client, queue string) (bool, error) {
	n, err := rdb.Exists(ctx, closedKey(queue)).Result()
	if err != nil {
		return false, fmt.Errorf("check queue %q: %w", queue, err)
	}
	return n > 0, nil
}

// PushFrame appends one data frame, waiting up to timeout for the
// queue to drop below MaxPending. Returns ErrClosed once the queue has
// been closed and ErrTimeout when capacity never frees up.
func PushFrame(ctx context.Context, rdb *redis.Client, queue string, frame []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		closed, err := QueueClosed(ctx, rdb, queue)
		if err != nil {
			return err
		}
		if closed {
			return ErrClosed
		}
		n, err := rdb.LLen(ctx, queueKey(queue)).Result()
		if err != nil {
			return fmt.Errorf("push to %q: %w", queue, err)
		}
		if n < MaxPending {
			break
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(capacityPoll):
		}
	}

	payload := make([]byte, 0, len(frame)+1)
	payload = append(payload, frameData)
	payload = append(payload, frame...)
	if err := rdb.RPush(ctx, queueKey(queue), payload).Err(); err != nil {
		return fmt.Errorf("push to %q: %w", queue, err)
	}
	return nil
}

// PopFrame blocks for one frame. It returns ErrTimeout when nothing
// arrives in time and ErrClosed when the stream's EOF marker is
// reached.
func PopFrame(ctx context.Context, rdb *redis.Client, queue string, timeout time.Duration) ([]byte, error) {
	res, err := rdb.BLPop(ctx, timeout, queueKey(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("pop from %q: %w", queue, err)
	}
	// BLPop returns [key, value].
	if len(res) != 2 || len(res[1]) == 0 {
		return nil, fmt.Errorf("pop from %q: malformed frame", queue)
	}
	payload := res[1]
	switch payload[0] {
	case frameEOF:
		return nil, ErrClosed
	case frameData:
		return []byte(payload[1:]), nil
	}
	return nil, fmt.Errorf("pop from %q: unknown frame discriminator %q", queue, payload[0])
}
