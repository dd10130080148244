package repository

import (
	"context"

	"streamgate/internal/domain/model"
)

// LogUpdate is the admin bulk-update patch. Nil fields are left untouched;
// Metadata entries are merged into the existing map.
type LogUpdate struct {
	Details  *string
	Metadata map[string]string
}

// UsageLogRepository is the port for the append-only usage-log collection.
type UsageLogRepository interface {
	// Append inserts one entry.
	Append(ctx context.Context, tx Tx, entry *model.UsageLog) error
	// Query returns one page of entries matching the filter plus the total
	// match count.
	Query(ctx context.Context, tx Tx, filter model.LogFilter, sort model.LogSort, page model.Page) ([]*model.UsageLog, int, error)
	// ListMatching returns up to limit matching entries in timestamp order,
	// for aggregation and export.
	ListMatching(ctx context.Context, tx Tx, filter model.LogFilter, limit int) ([]*model.UsageLog, error)
	// DeleteByIDs removes entries by id, returning the affected count.
	DeleteByIDs(ctx context.Context, tx Tx, ids []string) (int, error)
	// UpdateByIDs applies the patch to entries by id, returning the affected
	// count.
	UpdateByIDs(ctx context.Context, tx Tx, ids []string, patch LogUpdate) (int, error)
}
