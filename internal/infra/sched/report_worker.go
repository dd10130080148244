package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"streamgate/internal/infra/metrics"
	"streamgate/internal/usecase"
)

// ReportWorker executes due scheduled exports. Schedules live in the
// database, so a restart resumes exactly where the previous process left off.
type ReportWorker struct {
	interval time.Duration
	reports  usecase.ReportUseCase
	log      *zerolog.Logger
}

func NewReportWorker(interval time.Duration, reports usecase.ReportUseCase, logger *zerolog.Logger) *ReportWorker {
	repLog := logger.With().Str("component", "ReportWorker").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReportWorker{interval: interval, reports: reports, log: &repLog}
}

func (w *ReportWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting report worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping report worker")
			return ctx.Err()
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := w.reports.RunDue(runCtx, time.Now().UTC())
			cancel()
			if err != nil {
				metrics.IncReportRun("failed")
				w.log.Error().Err(err).Msg("report tick error")
				continue
			}
			if n > 0 {
				metrics.IncReportRun("completed")
				w.log.Info().Int("count", n).Msg("scheduled reports executed")
			}
		}
	}
}
