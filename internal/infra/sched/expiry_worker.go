package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"streamgate/internal/infra/metrics"
	"streamgate/internal/usecase"
)

// ExpiryWorker periodically sweeps time-expired access codes, appending the
// one-time `expired` usage log for each.
type ExpiryWorker struct {
	interval time.Duration
	batch    int
	codeUC   usecase.CodeUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, batch int, codeUC usecase.CodeUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{
		interval: interval,
		batch:    batch,
		codeUC:   codeUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.codeUC.ExpireDue(ctx, w.batch)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				metrics.IncCodesExpired(n)
				w.log.Info().Int("count", n).Msg("expired access codes logged")
			}
		}
	}
}
