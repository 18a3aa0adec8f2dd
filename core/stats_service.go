package core

import (
	"context"
	"strconv"
	"strings"
)

// Redis keys for storefront counters.
const (
	productViewKeyPrefix = "stats:views:product:"
	rateLimitedKey       = "stats:ratelimit:blocked"
)

// StatsOverview aggregates the storefront counters for the admin dashboard.
type StatsOverview struct {
	TotalViews   int64           `json:"total_views"`
	ProductViews map[int64]int64 `json:"product_views"`
	RateLimited  int64           `json:"rate_limited"`
}

// StatsService reads and writes storefront counters in Redis. Counters are
// best-effort: recording failures are ignored so they never break a request.
type StatsService struct {
	redis RedisClientRaw
}

func NewStatsService(redis RedisClientRaw) *StatsService {
	return &StatsService{redis: redis}
}

// RecordProductView bumps the view counter for a product.
func (s *StatsService) RecordProductView(ctx context.Context, productID int64) {
	_ = s.redis.Incr(ctx, productViewKeyPrefix+strconv.FormatInt(productID, 10)).Err()
}

// RecordRateLimited bumps the rejected-request counter.
func (s *StatsService) RecordRateLimited(ctx context.Context) {
	_ = s.redis.Incr(ctx, rateLimitedKey).Err()
}

// Overview scans all counters and returns the aggregate.
func (s *StatsService) Overview(ctx context.Context) (StatsOverview, error) {
	out := StatsOverview{ProductViews: map[int64]int64{}}

	iter := s.redis.Scan(ctx, 0, productViewKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := s.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		count, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(key, productViewKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		out.ProductViews[id] = count
		out.TotalViews += count
	}
	if err := iter.Err(); err != nil {
		return StatsOverview{}, err
	}

	if val, err := s.redis.Get(ctx, rateLimitedKey).Result(); err == nil {
		out.RateLimited, _ = strconv.ParseInt(val, 10, 64)
	}
	return out, nil
}
