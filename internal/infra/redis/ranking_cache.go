package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-results-service/internal/domain"
)

const rankingKey = "quiz:ranking"

// RankingSource loads the unbounded ranking from the backing store.
type RankingSource interface {
	ListRanking(ctx context.Context, limit int) ([]domain.RankingEntry, error)
}

// RankingCache caches the unbounded leaderboard as a JSON value with TTL
// and falls back to the store on cache miss. Bounded requests slice a
// prefix of the cached view, so a limited result is always a prefix of the
// unbounded one.
type RankingCache struct {
	client *redis.Client
	source RankingSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewRankingCache(client *redis.Client, source RankingSource, ttl time.Duration) *RankingCache {
	return &RankingCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RankingCache) Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	if cached, ok := c.cached(ctx); ok {
		return bounded(cached, limit), nil
	}

	result, err, _ := c.sf.Do(rankingKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if cached, ok := c.cached(ctx); ok {
			return cached, nil
		}

		entries, err := c.source.ListRanking(ctx, 0)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(entries); err == nil {
			// best-effort: a failed cache write only costs the next read
			_ = c.client.Set(ctx, rankingKey, data, c.ttlWithJitter()).Err()
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return bounded(result.([]domain.RankingEntry), limit), nil
}

// Invalidate drops the cached view after a score-affecting write.
func (c *RankingCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, rankingKey).Err()
}

func (c *RankingCache) cached(ctx context.Context) ([]domain.RankingEntry, bool) {
	data, err := c.client.Get(ctx, rankingKey).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []domain.RankingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func bounded(entries []domain.RankingEntry, limit int) []domain.RankingEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

func (c *RankingCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
