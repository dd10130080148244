package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
)

// ReportUseCase manages persisted scheduled exports of the usage-log
// collection. Jobs live in the database, so schedules survive restarts.
type ReportUseCase interface {
	Schedule(ctx context.Context, name string, filter model.LogFilter, format model.ExportFormat, intervalMinutes int) (*model.ReportJob, error)
	List(ctx context.Context) ([]*model.ReportJob, error)
	Get(ctx context.Context, id string) (*model.ReportJob, error)
	Delete(ctx context.Context, id string) error
	LatestRun(ctx context.Context, id string) (*model.ReportRun, error)
	RunDue(ctx context.Context, now time.Time) (int, error)
}

var _ ReportUseCase = (*reportUC)(nil)

type reportUC struct {
	jobs    repository.ReportJobRepository
	exports LogUseCase
	log     *zerolog.Logger
}

func NewReportUseCase(jobs repository.ReportJobRepository, exports LogUseCase, logger *zerolog.Logger) *reportUC {
	return &reportUC{jobs: jobs, exports: exports, log: logger}
}

func (uc *reportUC) Schedule(ctx context.Context, name string, filter model.LogFilter, format model.ExportFormat, intervalMinutes int) (*model.ReportJob, error) {
	job, err := model.NewReportJob(uuid.NewString(), name, filter, format, intervalMinutes, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := uc.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	uc.log.Info().Str("report_id", job.ID).Str("name", name).Int("interval_minutes", intervalMinutes).Msg("report scheduled")
	return job, nil
}

func (uc *reportUC) List(ctx context.Context) ([]*model.ReportJob, error) {
	return uc.jobs.List(ctx, repository.NoTX)
}

func (uc *reportUC) Get(ctx context.Context, id string) (*model.ReportJob, error) {
	return uc.jobs.FindByID(ctx, repository.NoTX, id)
}

func (uc *reportUC) Delete(ctx context.Context, id string) error {
	return uc.jobs.Delete(ctx, repository.NoTX, id)
}

func (uc *reportUC) LatestRun(ctx context.Context, id string) (*model.ReportRun, error) {
	if _, err := uc.jobs.FindByID(ctx, repository.NoTX, id); err != nil {
		return nil, err
	}
	return uc.jobs.LatestRun(ctx, repository.NoTX, id)
}

// RunDue executes every job due at instant now and stores the artifacts.
// A failing job is logged and skipped; it retries on its next tick.
func (uc *reportUC) RunDue(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.jobs.ListDue(ctx, repository.NoTX, now)
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, job := range due {
		result, err := uc.exports.Export(ctx, job.Filter, job.Format, DefaultExportMaxRows)
		if err != nil {
			uc.log.Error().Err(err).Str("report_id", job.ID).Msg("report export failed")
			continue
		}
		run := &model.ReportRun{
			ID:          uuid.NewString(),
			JobID:       job.ID,
			RanAt:       now,
			Format:      result.Format,
			ContentType: result.ContentType,
			Filename:    result.Filename,
			RowCount:    result.RowCount,
			Payload:     result.Data,
		}
		if err := uc.jobs.SaveRun(ctx, repository.NoTX, run); err != nil {
			uc.log.Error().Err(err).Str("report_id", job.ID).Msg("storing report run failed")
			continue
		}
		job.Advance(now)
		if err := uc.jobs.Save(ctx, repository.NoTX, job); err != nil {
			uc.log.Error().Err(err).Str("report_id", job.ID).Msg("advancing report schedule failed")
			continue
		}
		ran++
	}
	return ran, nil
}
