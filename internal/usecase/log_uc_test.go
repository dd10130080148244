//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
)

func newTestLogUC(cache StatsCache) (*logUC, *memLogRepo) {
	logs := newMemLogRepo()
	logger := zerolog.Nop()
	return NewLogUseCase(logs, cache, &logger), logs
}

func seedEntries(t *testing.T, logs *memLogRepo, entries ...*model.UsageLog) {
	t.Helper()
	for _, e := range entries {
		require.NoError(t, logs.Append(context.Background(), repository.NoTX, e))
	}
}

func TestLogQuery(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	uc, logs := newTestLogUC(nil)
	for i := 0; i < 120; i++ {
		seedEntries(t, logs, &model.UsageLog{
			ID:        fmt.Sprintf("log-%03d", i),
			Code:      fmt.Sprintf("CODE-%02d", i%4),
			Action:    model.ActionUsed,
			Outcome:   model.OutcomeSuccess,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}

	t.Run("pages cover the set without overlap", func(t *testing.T) {
		seen := make(map[string]bool)
		for page := 1; ; page++ {
			entries, meta, err := uc.Query(ctx, model.LogFilter{}, model.LogSort{}, model.Page{Number: page, Limit: 50})
			require.NoError(t, err)
			assert.Equal(t, 120, meta.Total)
			for _, e := range entries {
				assert.False(t, seen[e.ID], "entry %s repeated across pages", e.ID)
				seen[e.ID] = true
			}
			if !meta.HasNextPage {
				break
			}
		}
		assert.Len(t, seen, 120)
	})

	t.Run("default sort is timestamp descending", func(t *testing.T) {
		entries, _, err := uc.Query(ctx, model.LogFilter{}, model.LogSort{}, model.Page{Number: 1, Limit: 10})
		require.NoError(t, err)
		for i := 1; i < len(entries); i++ {
			assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp), "entries out of order")
		}
	})

	t.Run("code filter narrows the total", func(t *testing.T) {
		_, meta, err := uc.Query(ctx, model.LogFilter{Codes: []string{"code-01"}}, model.LogSort{}, model.Page{})
		require.NoError(t, err)
		assert.Equal(t, 30, meta.Total)
	})

	t.Run("search delegates to the free-text dimension", func(t *testing.T) {
		entries, meta, err := uc.Search(ctx, "CODE-02", model.LogFilter{}, model.Page{Number: 1, Limit: 500})
		require.NoError(t, err)
		assert.Equal(t, 30, meta.Total)
		for _, e := range entries {
			assert.Equal(t, "CODE-02", e.Code)
		}
	})
}

func TestAggregateEntries(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	mk := func(action model.LogAction, outcome model.LogOutcome, at time.Time, user, ip string) *model.UsageLog {
		return &model.UsageLog{
			ID: fmt.Sprintf("%s-%s-%d", action, outcome, at.UnixNano()),
			Code: "AAAA-BBBB-CCCC", Action: action, Outcome: outcome,
			Timestamp: at, User: user, IPAddress: ip,
		}
	}

	entries := []*model.UsageLog{
		mk(model.ActionGenerated, model.OutcomeSuccess, base, "admin", "10.0.0.1"),
		mk(model.ActionUsed, model.OutcomeSuccess, base.Add(time.Minute), "alice", "10.0.0.2"),
		mk(model.ActionUsed, model.OutcomeSuccess, base.Add(2*time.Minute), "bob", "10.0.0.3"),
		mk(model.ActionUsed, model.OutcomeExpired, base.Add(3*time.Minute), "carol", "10.0.0.4"),
		mk(model.ActionUsed, model.OutcomeInvalid, base.Add(25*time.Hour), "", "10.0.0.4"),
		mk(model.ActionRevoked, model.OutcomeSuccess, base.Add(26*time.Hour), "admin", "10.0.0.1"),
	}

	aggs := AggregateEntries(entries)

	assert.Equal(t, 6, aggs.Total)
	assert.Equal(t, map[string]int{"generated": 1, "used": 4, "revoked": 1}, aggs.ByAction)
	assert.Equal(t, 4, aggs.ByDate["2026-04-01"])
	assert.Equal(t, 2, aggs.ByDate["2026-04-02"])
	assert.Equal(t, 2, aggs.ByUser["admin"])
	assert.Equal(t, 2, aggs.ByIP["10.0.0.4"])

	// 4 validation attempts, 2 successful. Generated/revoked entries are not
	// attempts and must not dilute the rate.
	assert.InDelta(t, 0.5, aggs.SuccessRate, 1e-9)

	// Hour 9 holds four entries; the rest hold one each.
	assert.Equal(t, 9, aggs.PeakHour)
	assert.Equal(t, 4, aggs.HourHistogram[9])
}

func TestAggregatePeakHourTieBreak(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	entries := []*model.UsageLog{
		{ID: "a", Action: model.ActionUsed, Outcome: model.OutcomeSuccess, Timestamp: base.Add(17 * time.Hour)},
		{ID: "b", Action: model.ActionUsed, Outcome: model.OutcomeSuccess, Timestamp: base.Add(5 * time.Hour)},
	}
	assert.Equal(t, 5, AggregateEntries(entries).PeakHour, "ties break toward the lowest hour")
}

func TestAggregateEmptySet(t *testing.T) {
	aggs := AggregateEntries(nil)
	assert.Zero(t, aggs.Total)
	assert.Zero(t, aggs.SuccessRate)
	assert.Zero(t, aggs.PeakHour)
}

// fakeStatsCache records interactions for cache-path assertions.
type fakeStatsCache struct {
	stored map[string]*Aggregations
	hits   int
}

func (c *fakeStatsCache) GetStats(_ context.Context, key string) (*Aggregations, bool) {
	aggs, ok := c.stored[key]
	if ok {
		c.hits++
	}
	return aggs, ok
}

func (c *fakeStatsCache) StoreStats(_ context.Context, key string, aggs *Aggregations) {
	c.stored[key] = aggs
}

func TestAggregateUsesCache(t *testing.T) {
	ctx := context.Background()
	cache := &fakeStatsCache{stored: make(map[string]*Aggregations)}
	uc, logs := newTestLogUC(cache)
	seedEntries(t, logs, &model.UsageLog{ID: "x", Action: model.ActionUsed, Outcome: model.OutcomeSuccess, Timestamp: time.Now().UTC()})

	first, err := uc.Aggregate(ctx, model.LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)

	second, err := uc.Aggregate(ctx, model.LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)

	// A different filter hashes to a different key and misses.
	_, err = uc.Aggregate(ctx, model.LogFilter{Search: "other"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}

func TestBulkMaintenance(t *testing.T) {
	ctx := context.Background()
	uc, logs := newTestLogUC(nil)
	now := time.Now().UTC()
	seedEntries(t, logs,
		&model.UsageLog{ID: "keep", Action: model.ActionUsed, Outcome: model.OutcomeSuccess, Timestamp: now},
		&model.UsageLog{ID: "drop-1", Action: model.ActionUsed, Outcome: model.OutcomeInvalid, Timestamp: now},
		&model.UsageLog{ID: "drop-2", Action: model.ActionUsed, Outcome: model.OutcomeInvalid, Timestamp: now},
	)

	t.Run("empty id list is rejected", func(t *testing.T) {
		_, err := uc.BulkDelete(ctx, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
		_, err = uc.BulkUpdate(ctx, nil, repository.LogUpdate{})
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	})

	t.Run("empty patch is rejected", func(t *testing.T) {
		_, err := uc.BulkUpdate(ctx, []string{"keep"}, repository.LogUpdate{})
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	})

	t.Run("update patches details and merges metadata", func(t *testing.T) {
		note := "reviewed"
		n, err := uc.BulkUpdate(ctx, []string{"keep", "ghost"}, repository.LogUpdate{
			Details:  &note,
			Metadata: map[string]string{"reviewer": "admin"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n, "unknown ids are skipped, not errors")

		entries, err := logs.ListMatching(ctx, repository.NoTX, model.LogFilter{Search: "reviewed"}, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "admin", entries[0].Metadata["reviewer"])
	})

	t.Run("delete removes only the named entries", func(t *testing.T) {
		n, err := uc.BulkDelete(ctx, []string{"drop-1", "drop-2"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, meta, err := uc.Query(ctx, model.LogFilter{}, model.LogSort{}, model.Page{})
		require.NoError(t, err)
		assert.Equal(t, 1, meta.Total)
	})
}
