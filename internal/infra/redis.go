package infra

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects the client backing the group cache and the import job
// queues. The startup ping fails fast so a wrong REDIS_URL surfaces at boot
// rather than on the first upload.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}
