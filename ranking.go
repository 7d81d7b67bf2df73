package newscache

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// RankEntry is one member of the hot-key ranking.
type RankEntry struct {
	Member string
	Score  float64
}

// Ranking counts keyword lookups and reports the hottest keywords.
type Ranking interface {
	Increment(ctx context.Context, member string, delta float64) (float64, error)
	Top(ctx context.Context, n int) ([]RankEntry, error)
}

type redisRanking struct {
	client RedisClient
	key    string
}

func newRedisRanking(client RedisClient, key string) Ranking {
	return &redisRanking{client: client, key: key}
}

func (r *redisRanking) Increment(ctx context.Context, member string, delta float64) (float64, error) {
	score, err := r.client.ZIncrBy(ctx, r.key, delta, member).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: zincrby %s: %w", ErrCacheUnavailable, r.key, err)
	}
	return score, nil
}

func (r *redisRanking) Top(ctx context.Context, n int) ([]RankEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := r.client.ZRevRangeWithScores(ctx, r.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: zrevrange %s: %w", ErrCacheUnavailable, r.key, err)
	}
	out := make([]RankEntry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		out = append(out, RankEntry{Member: member, Score: z.Score})
	}
	return out, nil
}

type memoryRanking struct {
	mu     sync.Mutex
	scores map[string]float64
}

func newMemoryRanking() Ranking {
	return &memoryRanking{scores: make(map[string]float64)}
}

func (r *memoryRanking) Increment(_ context.Context, member string, delta float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[member] += delta
	return r.scores[member], nil
}

// Top orders by score descending and breaks ties by member descending, as
// ZREVRANGE does.
func (r *memoryRanking) Top(_ context.Context, n int) ([]RankEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	r.mu.Lock()
	out := make([]RankEntry, 0, len(r.scores))
	for m, s := range r.scores {
		out = append(out, RankEntry{Member: m, Score: s})
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member > out[j].Member
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
