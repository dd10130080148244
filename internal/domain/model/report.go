package model

import (
	"time"

	"streamgate/internal/domain"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatXLSX ExportFormat = "xlsx"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case FormatCSV, FormatJSON, FormatXLSX:
		return ExportFormat(s), nil
	case "":
		return FormatCSV, nil
	}
	return "", domain.ErrInvalidArgument
}

// ReportJob is a persisted, recurring export of the usage-log collection.
// Jobs survive restarts; the report worker picks up whatever is due by
// NextRunAt.
type ReportJob struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Filter          LogFilter    `json:"filter"`
	Format          ExportFormat `json:"format"`
	IntervalMinutes int          `json:"interval_minutes"`
	Enabled         bool         `json:"enabled"`
	CreatedAt       time.Time    `json:"created_at"`
	LastRunAt       *time.Time   `json:"last_run_at,omitempty"`
	NextRunAt       time.Time    `json:"next_run_at"`
}

// NewReportJob validates and constructs a job whose first run is one
// interval from now.
func NewReportJob(id, name string, filter LogFilter, format ExportFormat, intervalMinutes int, now time.Time) (*ReportJob, error) {
	if id == "" || name == "" || intervalMinutes < 1 {
		return nil, domain.ErrInvalidArgument
	}
	parsed, err := ParseExportFormat(string(format))
	if err != nil {
		return nil, err
	}
	return &ReportJob{
		ID:              id,
		Name:            name,
		Filter:          filter,
		Format:          parsed,
		IntervalMinutes: intervalMinutes,
		Enabled:         true,
		CreatedAt:       now,
		NextRunAt:       now.Add(time.Duration(intervalMinutes) * time.Minute),
	}, nil
}

// Advance stamps a completed run and schedules the next one.
func (j *ReportJob) Advance(now time.Time) {
	ran := now
	j.LastRunAt = &ran
	j.NextRunAt = now.Add(time.Duration(j.IntervalMinutes) * time.Minute)
}

// ReportRun is the stored artifact of one job execution.
type ReportRun struct {
	ID          string       `json:"id"`
	JobID       string       `json:"job_id"`
	RanAt       time.Time    `json:"ran_at"`
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"content_type"`
	Filename    string       `json:"filename"`
	RowCount    int          `json:"row_count"`
	Payload     []byte       `json:"-"`
}
