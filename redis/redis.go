// Package redis caches post aggregates in Redis. Entries expire on a TTL
// and are removed explicitly whenever the post is mutated, so a hit is
// never staler than the last write through this process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devconnecthq/devconnect/feed"
)

// Redis provides caching in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings it to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

const (
	postPrefix = "post"
	postTTL    = 5 * time.Minute
)

func postKey(id string) string {
	return fmt.Sprintf("%s:%s", postPrefix, id)
}

// GetPost returns the cached aggregate and whether it was present.
func (r *Redis) GetPost(ctx context.Context, id string) (feed.Post, bool, error) {
	val, err := r.cli.Get(ctx, postKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return feed.Post{}, false, nil
	}
	if err != nil {
		return feed.Post{}, false, fmt.Errorf("get: %w", err)
	}
	var p post
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return feed.Post{}, false, fmt.Errorf("unmarshal: %w", err)
	}
	return p.feedPost(), true, nil
}

// InsertPost caches the aggregate under post:POST_ID with a TTL.
func (r *Redis) InsertPost(ctx context.Context, fp feed.Post) error {
	b, err := json.Marshal(cachePost(fp))
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := r.cli.Set(ctx, postKey(fp.ID), b, postTTL).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

// RemovePost drops the aggregate from the cache. Removing an uncached post
// is not an error.
func (r *Redis) RemovePost(ctx context.Context, id string) error {
	if err := r.cli.Del(ctx, postKey(id)).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}
