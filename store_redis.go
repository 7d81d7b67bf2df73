package newscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.UniversalClient used by the
// store and the hot-key ranking. Both *redis.Client and *redis.ClusterClient
// satisfy it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	FlushAll(ctx context.Context) *redis.StatusCmd
	ZIncrBy(ctx context.Context, key string, increment float64, member string) *redis.FloatCmd
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
}

// masterIterator is implemented by cluster clients.
type masterIterator interface {
	ForEachMaster(ctx context.Context, fn func(ctx context.Context, client *redis.Client) error) error
}

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
const compareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

var errRedisUnavailable = errors.New("redis cache client unavailable")

type redisStore struct {
	client     RedisClient
	defaultTTL time.Duration
	prefix     string
}

func newRedisStore(client RedisClient, defaultTTL time.Duration, prefix string) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	return &redisStore{
		client:     client,
		defaultTTL: defaultTTL,
		prefix:     prefix,
	}
}

func (s *redisStore) Driver() Driver {
	return DriverRedis
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, errRedisUnavailable
	}
	value, err := s.client.Get(ctx, s.cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.cacheKey(key), value, ttl).Err()
}

func (s *redisStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.client == nil {
		return false, errRedisUnavailable
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	created, err := s.client.SetNX(ctx, s.cacheKey(key), value, ttl).Result()
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) (bool, error) {
	if s.client == nil {
		return false, errRedisUnavailable
	}
	n, err := s.client.Del(ctx, s.cacheKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteMany issues one DEL per key since keys may hash to different
// cluster slots.
func (s *redisStore) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	if s.client == nil {
		return 0, errRedisUnavailable
	}
	var total int64
	for _, key := range keys {
		n, err := s.client.Del(ctx, s.cacheKey(key)).Result()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *redisStore) DeleteIfEquals(ctx context.Context, key string, expected []byte) (bool, error) {
	if s.client == nil {
		return false, errRedisUnavailable
	}
	n, err := s.client.Eval(ctx, compareAndDelete, []string{s.cacheKey(key)}, expected).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.client == nil {
		return false, errRedisUnavailable
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Expire(ctx, s.cacheKey(key), ttl).Result()
}

func (s *redisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	if s.client == nil {
		return 0, false, errRedisUnavailable
	}
	d, err := s.client.TTL(ctx, s.cacheKey(key)).Result()
	if err != nil {
		return 0, false, err
	}
	switch d {
	case -2:
		return 0, false, nil
	case -1:
		return -1, true, nil
	}
	return d, true, nil
}

// Flush clears the prefix scope, or the whole keyspace when unprefixed. On
// a cluster every master is visited.
func (s *redisStore) Flush(ctx context.Context) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	if cluster, ok := s.client.(masterIterator); ok {
		return cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return flushNode(ctx, node, s.prefix)
		})
	}
	return flushNode(ctx, s.client, s.prefix)
}

func flushNode(ctx context.Context, client RedisClient, prefix string) error {
	if prefix == "" {
		return client.FlushAll(ctx).Err()
	}
	pattern := prefix + ":*"
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := client.Del(ctx, key).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *redisStore) cacheKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
