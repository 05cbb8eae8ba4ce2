package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	radix "github.com/mediocregopher/radix/v3"
)

const keyPrefix = "penpal:lock:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = radix.NewEvalScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis leases keys with SET NX PX. A lease expires after ttl even if the
// holder dies, so ttl must comfortably exceed one store round trip.
type Redis struct {
	client radix.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis builds a locker on an existing radix client.
func NewRedis(client radix.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Redis{client: client, ttl: ttl, retry: 25 * time.Millisecond}
}

// DialRedis opens a small pool for the locker.
func DialRedis(addr string, ttl time.Duration) (*Redis, error) {
	pool, err := radix.NewPool("tcp", addr, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return NewRedis(pool, ttl), nil
}

func (l *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	key = keyPrefix + key
	token := uuid.NewString()

	for {
		var reply radix.MaybeNil
		var ok string
		reply.Rcv = &ok
		err := l.client.Do(radix.FlatCmd(&reply, "SET", key, token, "NX", "PX", l.ttl.Milliseconds()))
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if !reply.Nil {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ErrBusy
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = l.client.Do(releaseScript.Cmd(nil, key, token))
		})
	}, nil
}

// Close releases the underlying pool.
func (l *Redis) Close() error {
	return l.client.Close()
}
