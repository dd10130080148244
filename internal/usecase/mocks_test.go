//go:build !integration

package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
)

// noTxManager runs the function directly; unit tests exercise use-case logic,
// not transaction plumbing.
type noTxManager struct{}

func (noTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// memCodeRepo is a mutex-guarded in-memory implementation whose Redeem
// mirrors the conditional single-statement update of the real store.
type memCodeRepo struct {
	mu           sync.Mutex
	store        map[string]*model.AccessCode
	saveErr      error
	saveConflict int
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{store: make(map[string]*model.AccessCode)}
}

func (r *memCodeRepo) Save(_ context.Context, _ repository.Tx, code *model.AccessCode) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveConflict > 0 {
		r.saveConflict--
		return domain.ErrAlreadyExists
	}
	cp := *code
	r.store[code.Code] = &cp
	return nil
}

func (r *memCodeRepo) FindByCode(_ context.Context, _ repository.Tx, code string) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.store[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCodeRepo) Redeem(_ context.Context, _ repository.Tx, code, usedBy string, now time.Time) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.store[code]
	if !ok || !c.Consumable(now) {
		return nil, domain.ErrCodeNotFound
	}
	c.CurrentUses++
	if c.UsedAt == nil {
		u := now
		c.UsedAt = &u
		if usedBy != "" {
			by := usedBy
			c.UsedBy = &by
		}
	}
	cp := *c
	return &cp, nil
}

func (r *memCodeRepo) MarkRevoked(_ context.Context, _ repository.Tx, code string, now time.Time) (bool, *model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.store[code]
	if !ok {
		return false, nil, domain.ErrNotFound
	}
	if c.Revoked {
		cp := *c
		return false, &cp, nil
	}
	c.Revoked = true
	at := now
	c.RevokedAt = &at
	cp := *c
	return true, &cp, nil
}

func (r *memCodeRepo) List(_ context.Context, _ repository.Tx, page model.Page) ([]*model.AccessCode, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*model.AccessCode, 0, len(r.store))
	for _, c := range r.store {
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	page = page.Normalize()
	start := page.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *memCodeRepo) ClaimExpired(_ context.Context, _ repository.Tx, now time.Time, limit int) ([]*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*model.AccessCode
	for _, c := range r.store {
		if len(claimed) >= limit {
			break
		}
		if c.ExpiryLogged || c.Revoked || now.Before(c.ExpiresAt) {
			continue
		}
		c.ExpiryLogged = true
		cp := *c
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

// memLogRepo stores entries in append order.
type memLogRepo struct {
	mu        sync.Mutex
	entries   []*model.UsageLog
	appendErr error
}

func newMemLogRepo() *memLogRepo { return &memLogRepo{} }

func (r *memLogRepo) Append(_ context.Context, _ repository.Tx, entry *model.UsageLog) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memLogRepo) matching(filter model.LogFilter) []*model.UsageLog {
	var out []*model.UsageLog
	for _, e := range r.entries {
		if filter.Matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func (r *memLogRepo) Query(_ context.Context, _ repository.Tx, filter model.LogFilter, sortBy model.LogSort, page model.Page) ([]*model.UsageLog, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.matching(filter)
	sortBy = sortBy.Normalize()
	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		switch sortBy.Field {
		case model.SortByAction:
			less = out[i].Action < out[j].Action
		case model.SortByCode:
			less = out[i].Code < out[j].Code
		case model.SortByIPAddress:
			less = out[i].IPAddress < out[j].IPAddress
		case model.SortByUser:
			less = strings.ToLower(out[i].User) < strings.ToLower(out[j].User)
		default:
			less = out[i].Timestamp.Before(out[j].Timestamp)
		}
		if sortBy.Order == model.SortDesc {
			return !less
		}
		return less
	})
	total := len(out)
	page = page.Normalize()
	start := page.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memLogRepo) ListMatching(_ context.Context, _ repository.Tx, filter model.LogFilter, limit int) ([]*model.UsageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.matching(filter)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLogRepo) DeleteByIDs(_ context.Context, _ repository.Tx, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.entries[:0]
	deleted := 0
	for _, e := range r.entries {
		if drop[e.ID] {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

func (r *memLogRepo) UpdateByIDs(_ context.Context, _ repository.Tx, ids []string, patch repository.LogUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	updated := 0
	for _, e := range r.entries {
		if !want[e.ID] {
			continue
		}
		if patch.Details != nil {
			e.Details = *patch.Details
		}
		if len(patch.Metadata) > 0 {
			if e.Metadata == nil {
				e.Metadata = make(map[string]string, len(patch.Metadata))
			}
			for k, v := range patch.Metadata {
				e.Metadata[k] = v
			}
		}
		updated++
	}
	return updated, nil
}

// byCode returns stored entries for one code, in append order.
func (r *memLogRepo) byCode(code string) []*model.UsageLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.UsageLog
	for _, e := range r.entries {
		if e.Code == code {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

// memReportRepo keeps jobs and runs in maps.
type memReportRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.ReportJob
	runs map[string][]*model.ReportRun
}

func newMemReportRepo() *memReportRepo {
	return &memReportRepo{jobs: make(map[string]*model.ReportJob), runs: make(map[string][]*model.ReportRun)}
}

func (r *memReportRepo) Save(_ context.Context, _ repository.Tx, job *model.ReportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memReportRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.ReportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memReportRepo) List(_ context.Context, _ repository.Tx) ([]*model.ReportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.ReportJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memReportRepo) ListDue(_ context.Context, _ repository.Tx, now time.Time) ([]*model.ReportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*model.ReportJob
	for _, j := range r.jobs {
		if j.Enabled && !j.NextRunAt.After(now) {
			cp := *j
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (r *memReportRepo) Delete(_ context.Context, _ repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.jobs, id)
	delete(r.runs, id)
	return nil
}

func (r *memReportRepo) SaveRun(_ context.Context, _ repository.Tx, run *model.ReportRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.JobID] = append(r.runs[run.JobID], &cp)
	return nil
}

func (r *memReportRepo) LatestRun(_ context.Context, _ repository.Tx, jobID string) (*model.ReportRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := r.runs[jobID]
	if len(runs) == 0 {
		return nil, domain.ErrNotFound
	}
	cp := *runs[len(runs)-1]
	return &cp, nil
}
