package core

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStats(t *testing.T) *StatsService {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatsService(client)
}

func TestStatsServiceCounters(t *testing.T) {
	ctx := context.Background()
	stats := newTestStats(t)

	stats.RecordProductView(ctx, 1)
	stats.RecordProductView(ctx, 1)
	stats.RecordProductView(ctx, 2)
	stats.RecordRateLimited(ctx)

	overview, err := stats.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview error: %v", err)
	}
	if overview.TotalViews != 3 {
		t.Fatalf("total views = %d, want 3", overview.TotalViews)
	}
	if overview.ProductViews[1] != 2 || overview.ProductViews[2] != 1 {
		t.Fatalf("product views = %v", overview.ProductViews)
	}
	if overview.RateLimited != 1 {
		t.Fatalf("rate limited = %d, want 1", overview.RateLimited)
	}
}

func TestStatsServiceEmptyOverview(t *testing.T) {
	overview, err := newTestStats(t).Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview error: %v", err)
	}
	if overview.TotalViews != 0 || overview.RateLimited != 0 || len(overview.ProductViews) != 0 {
		t.Fatalf("overview = %+v, want zeros", overview)
	}
}
