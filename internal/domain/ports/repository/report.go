package repository

import (
	"context"
	"time"

	"streamgate/internal/domain/model"
)

// ReportJobRepository is the port for persisted scheduled exports.
type ReportJobRepository interface {
	// Save creates or updates a job.
	Save(ctx context.Context, tx Tx, job *model.ReportJob) error
	// FindByID returns a job or domain.ErrNotFound.
	FindByID(ctx context.Context, tx Tx, id string) (*model.ReportJob, error)
	// List returns all jobs ordered by creation time.
	List(ctx context.Context, tx Tx) ([]*model.ReportJob, error)
	// ListDue returns enabled jobs with NextRunAt <= now.
	ListDue(ctx context.Context, tx Tx, now time.Time) ([]*model.ReportJob, error)
	// Delete removes a job and its stored runs. Returns domain.ErrNotFound
	// for an unknown id.
	Delete(ctx context.Context, tx Tx, id string) error
	// SaveRun stores a run artifact.
	SaveRun(ctx context.Context, tx Tx, run *model.ReportRun) error
	// LatestRun returns the most recent run of a job or domain.ErrNotFound.
	LatestRun(ctx context.Context, tx Tx, jobID string) (*model.ReportRun, error)
}
