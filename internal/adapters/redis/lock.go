// Package redis implements the poller's leader-election lock so only one
// replica walks a given poller name's window at a time, coordinating
// through Redis rather than shared in-memory state across replicas.
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shiftpay/usdt-gateway/pkg/mredis"
)

// Locker acquires and releases the poller's distributed lock.
type Locker struct {
	conn *mredis.RedisConnection
}

// NewLocker returns a Locker backed by conn.
func NewLocker(conn *mredis.RedisConnection) *Locker {
	return &Locker{conn: conn}
}

// TryAcquire attempts to take the named lock for ttl, returning a token to
// release it with and true on success, or false if another replica holds
// it.
func (l *Locker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	client, err := l.conn.GetClient(ctx)
	if err != nil {
		return "", false, err
	}

	token := uuid.New().String()

	ok, err := client.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}

	return token, ok, nil
}

// Release drops the lock if token still matches the current holder,
// avoiding releasing a lock acquired by a different replica after this
// one's TTL expired.
func (l *Locker) Release(ctx context.Context, name, token string) error {
	client, err := l.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	const releaseScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0`

	return client.Eval(ctx, releaseScript, []string{lockKey(name)}, token).Err()
}

func lockKey(name string) string {
	return "poller:lock:" + name
}
