package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
)

// Aggregations is the analytics block computed over a filtered log set.
type Aggregations struct {
	Total         int            `json:"total"`
	ByAction      map[string]int `json:"by_action"`
	ByDate        map[string]int `json:"by_date"`
	ByUser        map[string]int `json:"by_user"`
	ByIP          map[string]int `json:"by_ip"`
	SuccessRate   float64        `json:"success_rate"`
	PeakHour      int            `json:"peak_hour"`
	HourHistogram map[int]int    `json:"hour_histogram"`
}

// StatsCache is a TTL cache for aggregation results, keyed by filter hash.
// Implementations must tolerate misses cheaply; a nil cache disables caching.
type StatsCache interface {
	GetStats(ctx context.Context, key string) (*Aggregations, bool)
	StoreStats(ctx context.Context, key string, aggs *Aggregations)
}

// aggregationScanCap bounds how many rows one aggregation or export pass
// will pull from the store.
const aggregationScanCap = 10000

// LogUseCase implements the activity-log query engine: filter, sort,
// paginate, aggregate, export and admin bulk maintenance.
type LogUseCase interface {
	Query(ctx context.Context, filter model.LogFilter, sortBy model.LogSort, page model.Page) ([]*model.UsageLog, model.PageMeta, error)
	Search(ctx context.Context, term string, filter model.LogFilter, page model.Page) ([]*model.UsageLog, model.PageMeta, error)
	Aggregate(ctx context.Context, filter model.LogFilter) (*Aggregations, error)
	Export(ctx context.Context, filter model.LogFilter, format model.ExportFormat, maxRows int) (*ExportResult, error)
	BulkDelete(ctx context.Context, ids []string) (int, error)
	BulkUpdate(ctx context.Context, ids []string, patch repository.LogUpdate) (int, error)
}

var _ LogUseCase = (*logUC)(nil)

type logUC struct {
	logs  repository.UsageLogRepository
	cache StatsCache
	log   *zerolog.Logger
}

func NewLogUseCase(logs repository.UsageLogRepository, cache StatsCache, logger *zerolog.Logger) *logUC {
	return &logUC{logs: logs, cache: cache, log: logger}
}

func (uc *logUC) Query(ctx context.Context, filter model.LogFilter, sortBy model.LogSort, page model.Page) ([]*model.UsageLog, model.PageMeta, error) {
	sortBy = sortBy.Normalize()
	page = page.Normalize()
	entries, total, err := uc.logs.Query(ctx, repository.NoTX, filter, sortBy, page)
	if err != nil {
		return nil, model.PageMeta{}, err
	}
	return entries, model.NewPageMeta(page, total), nil
}

func (uc *logUC) Search(ctx context.Context, term string, filter model.LogFilter, page model.Page) ([]*model.UsageLog, model.PageMeta, error) {
	filter.Search = term
	return uc.Query(ctx, filter, model.LogSort{}, page)
}

// Aggregate computes counts by action, day bucket, user and IP, the success
// rate over validation attempts (structured outcomes, no detail-string
// sniffing) and the peak hour of day, ties broken by the lowest hour index.
func (uc *logUC) Aggregate(ctx context.Context, filter model.LogFilter) (*Aggregations, error) {
	key := filterHash(filter)
	if uc.cache != nil {
		if aggs, ok := uc.cache.GetStats(ctx, key); ok {
			return aggs, nil
		}
	}

	entries, err := uc.logs.ListMatching(ctx, repository.NoTX, filter, aggregationScanCap)
	if err != nil {
		return nil, err
	}
	aggs := AggregateEntries(entries)

	if uc.cache != nil {
		uc.cache.StoreStats(ctx, key, aggs)
	}
	return aggs, nil
}

// AggregateEntries computes the analytics block over an already-filtered set.
func AggregateEntries(entries []*model.UsageLog) *Aggregations {
	aggs := &Aggregations{
		Total:         len(entries),
		ByAction:      make(map[string]int),
		ByDate:        make(map[string]int),
		ByUser:        make(map[string]int),
		ByIP:          make(map[string]int),
		HourHistogram: make(map[int]int),
	}

	attempts, successes := 0, 0
	for _, e := range entries {
		aggs.ByAction[string(e.Action)]++
		aggs.ByDate[e.Timestamp.UTC().Format("2006-01-02")]++
		if e.User != "" {
			aggs.ByUser[e.User]++
		}
		if e.IPAddress != "" {
			aggs.ByIP[e.IPAddress]++
		}
		aggs.HourHistogram[e.Timestamp.UTC().Hour()]++
		if e.ValidationAttempt() {
			attempts++
			if e.Succeeded() {
				successes++
			}
		}
	}

	if attempts > 0 {
		aggs.SuccessRate = float64(successes) / float64(attempts)
	}
	aggs.PeakHour = peakHour(aggs.HourHistogram)
	return aggs
}

// peakHour returns the mode of the hour histogram, lowest hour on ties.
func peakHour(hist map[int]int) int {
	hours := make([]int, 0, len(hist))
	for h := range hist {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	peak, best := 0, 0
	for _, h := range hours {
		if hist[h] > best {
			peak, best = h, hist[h]
		}
	}
	return peak
}

func (uc *logUC) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, domain.ErrInvalidArgument
	}
	n, err := uc.logs.DeleteByIDs(ctx, repository.NoTX, ids)
	if err != nil {
		return 0, err
	}
	uc.log.Info().Int("deleted", n).Msg("bulk delete of usage logs")
	return n, nil
}

func (uc *logUC) BulkUpdate(ctx context.Context, ids []string, patch repository.LogUpdate) (int, error) {
	if len(ids) == 0 || (patch.Details == nil && len(patch.Metadata) == 0) {
		return 0, domain.ErrInvalidArgument
	}
	n, err := uc.logs.UpdateByIDs(ctx, repository.NoTX, ids, patch)
	if err != nil {
		return 0, err
	}
	uc.log.Info().Int("updated", n).Msg("bulk update of usage logs")
	return n, nil
}

// filterHash derives a stable cache key from the filter value.
func filterHash(filter model.LogFilter) string {
	b, _ := json.Marshal(filter)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
