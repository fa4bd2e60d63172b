// Package mredis owns the Redis connection used for the poller's
// leader-election lock, the same role common/mredis plays for the
// teacher's services.
package mredis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

// RedisConnection is a hub for the service's Redis connection.
type RedisConnection struct {
	ConnectionStringSource string
	Logger                 mlog.Logger

	client    *redis.Client
	Connected bool
}

// Connect parses the connection URL, opens a client and pings it.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	if rc.Logger == nil {
		rc.Logger = mlog.NoneLogger{}
	}

	rc.Logger.Info("connecting to redis...")

	opts, err := redis.ParseURL(rc.ConnectionStringSource)
	if err != nil {
		return err
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return err
	}

	rc.client = client
	rc.Connected = true

	rc.Logger.Info("connected to redis")

	return nil
}

// GetClient returns the redis client, connecting lazily if necessary.
func (rc *RedisConnection) GetClient(ctx context.Context) (*redis.Client, error) {
	if rc.client == nil {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.client, nil
}
