package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
)

var _ repository.ReportJobRepository = (*reportJobRepo)(nil)

type reportJobRepo struct {
	pool *pgxpool.Pool
}

func NewReportJobRepo(pool *pgxpool.Pool) repository.ReportJobRepository {
	return &reportJobRepo{pool: pool}
}

func (r *reportJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.ReportJob) error {
	filter, err := json.Marshal(job.Filter)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO report_jobs (id, name, filter, format, interval_minutes, enabled, created_at, last_run_at, next_run_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  filter = EXCLUDED.filter,
  format = EXCLUDED.format,
  interval_minutes = EXCLUDED.interval_minutes,
  enabled = EXCLUDED.enabled,
  last_run_at = EXCLUDED.last_run_at,
  next_run_at = EXCLUDED.next_run_at;
`
	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.Name, filter, string(job.Format), job.IntervalMinutes,
		job.Enabled, job.CreatedAt, job.LastRunAt, job.NextRunAt,
	)
	return err
}

const reportJobColumns = `
id, name, filter, format, interval_minutes, enabled, created_at, last_run_at, next_run_at`

func (r *reportJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ReportJob, error) {
	const q = `SELECT ` + reportJobColumns + ` FROM report_jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanReportJob(row)
}

func (r *reportJobRepo) List(ctx context.Context, tx repository.Tx) ([]*model.ReportJob, error) {
	const q = `SELECT ` + reportJobColumns + ` FROM report_jobs ORDER BY created_at;`
	return r.queryJobs(ctx, tx, q)
}

func (r *reportJobRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.ReportJob, error) {
	const q = `SELECT ` + reportJobColumns + ` FROM report_jobs WHERE enabled AND next_run_at <= $1 ORDER BY next_run_at;`
	return r.queryJobs(ctx, tx, q, now)
}

func (r *reportJobRepo) queryJobs(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.ReportJob, error) {
	rows, err := pickRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.ReportJob
	for rows.Next() {
		job, err := scanReportJobValues(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *reportJobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	// report_runs rows go with the job via ON DELETE CASCADE.
	const q = `DELETE FROM report_jobs WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *reportJobRepo) SaveRun(ctx context.Context, tx repository.Tx, run *model.ReportRun) error {
	const q = `
INSERT INTO report_runs (id, job_id, ran_at, format, content_type, filename, row_count, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		run.ID, run.JobID, run.RanAt, string(run.Format), run.ContentType,
		run.Filename, run.RowCount, run.Payload,
	)
	return err
}

func (r *reportJobRepo) LatestRun(ctx context.Context, tx repository.Tx, jobID string) (*model.ReportRun, error) {
	const q = `
SELECT id, job_id, ran_at, format, content_type, filename, row_count, payload
  FROM report_runs
 WHERE job_id = $1
 ORDER BY ran_at DESC
 LIMIT 1;
`
	row, err := pickRow(ctx, r.pool, tx, q, jobID)
	if err != nil {
		return nil, err
	}
	var run model.ReportRun
	var format string
	err = row.Scan(&run.ID, &run.JobID, &run.RanAt, &format, &run.ContentType,
		&run.Filename, &run.RowCount, &run.Payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	run.Format = model.ExportFormat(format)
	return &run, nil
}

func scanReportJob(row pgx.Row) (*model.ReportJob, error) {
	var (
		job    model.ReportJob
		filter []byte
		format string
	)
	err := row.Scan(&job.ID, &job.Name, &filter, &format, &job.IntervalMinutes,
		&job.Enabled, &job.CreatedAt, &job.LastRunAt, &job.NextRunAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(filter, &job.Filter); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	job.Format = model.ExportFormat(format)
	return &job, nil
}

func scanReportJobValues(rows pgx.Rows) (*model.ReportJob, error) {
	var (
		job    model.ReportJob
		filter []byte
		format string
	)
	err := rows.Scan(&job.ID, &job.Name, &filter, &format, &job.IntervalMinutes,
		&job.Enabled, &job.CreatedAt, &job.LastRunAt, &job.NextRunAt)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(filter, &job.Filter); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	job.Format = model.ExportFormat(format)
	return &job, nil
}
