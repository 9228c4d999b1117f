package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/c12qe/c12sim-go/internal/repository"
)

var _ repository.ResultCache = (*redisResultCache)(nil)

const (
	resultKeyPrefix = "c12sim:result:"
	watchKeyPrefix  = "c12sim:watch:"
	resultTTL       = 24 * time.Hour
	watchTTL        = 10 * time.Minute
)

// The watch lock value is the owner token; both scripts only touch a key
// the caller still owns.
var (
	extendWatchScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseWatchScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type redisResultCache struct {
	client *goredis.Client
}

// NewRedisResultCache creates a Redis-backed result cache and watch lock.
func NewRedisResultCache(client *goredis.Client) repository.ResultCache {
	return &redisResultCache{client: client}
}

func (r *redisResultCache) Get(ctx context.Context, id uuid.UUID) (json.RawMessage, bool, error) {
	raw, err := r.client.Get(ctx, resultKeyPrefix+id.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get result: %w", err)
	}
	return raw, true, nil
}

func (r *redisResultCache) Put(ctx context.Context, id uuid.UUID, payload json.RawMessage) error {
	if err := r.client.Set(ctx, resultKeyPrefix+id.String(), []byte(payload), resultTTL).Err(); err != nil {
		return fmt.Errorf("redis: put result: %w", err)
	}
	return nil
}

// AcquireWatch uses SETNX so only one watcher polls a job at a time.
func (r *redisResultCache) AcquireWatch(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	ok, err := r.client.SetNX(ctx, watchKeyPrefix+id.String(), owner, watchTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire watch: %w", err)
	}
	return ok, nil
}

func (r *redisResultCache) ExtendWatch(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	n, err := extendWatchScript.Run(ctx, r.client, []string{watchKeyPrefix + id.String()}, owner, watchTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis: extend watch: %w", err)
	}
	return n == 1, nil
}

func (r *redisResultCache) ReleaseWatch(ctx context.Context, id uuid.UUID, owner string) error {
	if err := releaseWatchScript.Run(ctx, r.client, []string{watchKeyPrefix + id.String()}, owner).Err(); err != nil {
		return fmt.Errorf("redis: release watch: %w", err)
	}
	return nil
}
