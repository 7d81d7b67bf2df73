package newscache

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// stubRedisClient is an in-memory RedisClient with injectable failures.
type stubRedisClient struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttl    map[string]time.Time
	zsets  map[string]map[string]float64
	evals  int
	flushd int

	getErr    error
	setErr    error
	setNXErr  error
	delErr    error
	evalErr   error
	expireErr error
	ttlErr    error
	scanErr   error
	flushErr  error
	zsetErr   error
}

var _ RedisClient = (*stubRedisClient)(nil)

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{
		data:  make(map[string][]byte),
		ttl:   make(map[string]time.Time),
		zsets: make(map[string]map[string]float64),
	}
}

// live drops key when its expiry passed. Callers hold mu.
func (c *stubRedisClient) live(key string) bool {
	if exp, ok := c.ttl[key]; ok && time.Now().After(exp) {
		delete(c.data, key)
		delete(c.ttl, key)
	}
	_, ok := c.data[key]
	return ok
}

func toBytes(v interface{}) []byte {
	switch t := v.(type) {
	case []byte:
		return append([]byte(nil), t...)
	case string:
		return []byte(t)
	default:
		return []byte(fmt.Sprint(t))
	}
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if c.getErr != nil {
		cmd.SetErr(c.getErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(key) {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(c.data[key]))
	return cmd
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if c.setErr != nil {
		cmd.SetErr(c.setErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = toBytes(value)
	if expiration > 0 {
		c.ttl[key] = time.Now().Add(expiration)
	} else {
		delete(c.ttl, key)
	}
	cmd.SetVal("OK")
	return cmd
}

func (c *stubRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "setnx", key)
	if c.setNXErr != nil {
		cmd.SetErr(c.setNXErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live(key) {
		cmd.SetVal(false)
		return cmd
	}
	c.data[key] = toBytes(value)
	if expiration > 0 {
		c.ttl[key] = time.Now().Add(expiration)
	}
	cmd.SetVal(true)
	return cmd
}

func (c *stubRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "expire", key)
	if c.expireErr != nil {
		cmd.SetErr(c.expireErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(key) {
		cmd.SetVal(false)
		return cmd
	}
	c.ttl[key] = time.Now().Add(expiration)
	cmd.SetVal(true)
	return cmd
}

func (c *stubRedisClient) TTL(ctx context.Context, key string) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(ctx, time.Second, "ttl", key)
	if c.ttlErr != nil {
		cmd.SetErr(c.ttlErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(key) {
		cmd.SetVal(-2)
		return cmd
	}
	exp, ok := c.ttl[key]
	if !ok {
		cmd.SetVal(-1)
		return cmd
	}
	cmd.SetVal(time.Until(exp).Truncate(time.Second))
	return cmd
}

func (c *stubRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	if c.delErr != nil {
		cmd.SetErr(c.delErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, key := range keys {
		if c.live(key) {
			n++
		}
		delete(c.data, key)
		delete(c.ttl, key)
	}
	cmd.SetVal(n)
	return cmd
}

// Eval only understands the compare-and-delete script.
func (c *stubRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx, "eval")
	if c.evalErr != nil {
		cmd.SetErr(c.evalErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evals++
	if script != compareAndDelete || len(keys) != 1 || len(args) != 1 {
		cmd.SetErr(fmt.Errorf("unsupported script"))
		return cmd
	}
	key := keys[0]
	if c.live(key) && bytes.Equal(c.data[key], toBytes(args[0])) {
		delete(c.data, key)
		delete(c.ttl, key)
		cmd.SetVal(int64(1))
		return cmd
	}
	cmd.SetVal(int64(0))
	return cmd
}

func (c *stubRedisClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	cmd := redis.NewScanCmd(ctx, nil, "scan")
	if c.scanErr != nil {
		cmd.SetErr(c.scanErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for key := range c.data {
		if ok, _ := path.Match(match, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	cmd.SetVal(keys, 0)
	return cmd
}

func (c *stubRedisClient) FlushAll(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "flushall")
	if c.flushErr != nil {
		cmd.SetErr(c.flushErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushd++
	c.data = make(map[string][]byte)
	c.ttl = make(map[string]time.Time)
	c.zsets = make(map[string]map[string]float64)
	cmd.SetVal("OK")
	return cmd
}

func (c *stubRedisClient) ZIncrBy(ctx context.Context, key string, increment float64, member string) *redis.FloatCmd {
	cmd := redis.NewFloatCmd(ctx, "zincrby", key)
	if c.zsetErr != nil {
		cmd.SetErr(c.zsetErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zsets[key] == nil {
		c.zsets[key] = make(map[string]float64)
	}
	c.zsets[key][member] += increment
	cmd.SetVal(c.zsets[key][member])
	return cmd
}

func (c *stubRedisClient) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd {
	cmd := redis.NewZSliceCmd(ctx, "zrevrange", key)
	if c.zsetErr != nil {
		cmd.SetErr(c.zsetErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var zs []redis.Z
	for m, s := range c.zsets[key] {
		zs = append(zs, redis.Z{Member: m, Score: s})
	}
	sort.Slice(zs, func(i, j int) bool {
		if zs[i].Score != zs[j].Score {
			return zs[i].Score > zs[j].Score
		}
		return zs[i].Member.(string) > zs[j].Member.(string)
	})
	if start >= int64(len(zs)) {
		cmd.SetVal(nil)
		return cmd
	}
	if stop >= int64(len(zs)) || stop < 0 {
		stop = int64(len(zs)) - 1
	}
	cmd.SetVal(zs[start : stop+1])
	return cmd
}
