package redis

import (
	"context"
	"encoding/json"
	"time"

	"streamgate/internal/infra/metrics"
	"streamgate/internal/usecase"
)

var _ usecase.StatsCache = (*StatsCache)(nil)

// StatsCache keeps recently computed log aggregations with a short TTL, so
// dashboard polling does not rescan the log table on every refresh.
type StatsCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewStatsCache(client RedisClient, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsCache{client: client, ttl: ttl}
}

func (c *StatsCache) GetStats(ctx context.Context, key string) (*usecase.Aggregations, bool) {
	data, err := c.client.Get(ctx, "log_stats:"+key)
	if err != nil {
		metrics.IncStatsCache("miss")
		return nil, false
	}
	var aggs usecase.Aggregations
	if err := json.Unmarshal([]byte(data), &aggs); err != nil {
		metrics.IncStatsCache("miss")
		return nil, false
	}
	metrics.IncStatsCache("hit")
	return &aggs, true
}

// StoreStats is best effort; a failed write only costs a recompute.
func (c *StatsCache) StoreStats(ctx context.Context, key string, aggs *usecase.Aggregations) {
	data, err := json.Marshal(aggs)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, "log_stats:"+key, data, c.ttl)
}
