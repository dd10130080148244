package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
	"streamgate/internal/infra/worker"
)

// ClientMeta carries the request attribution recorded on usage logs.
type ClientMeta struct {
	User      string
	IPAddress string
	UserAgent string
}

// CodeUseCase implements the access-code lifecycle: generation, validation
// adjudication, revocation and the time-expiry sweep.
type CodeUseCase interface {
	Generate(ctx context.Context, durationMinutes int, prefix string, autoExpireOnUse bool, maxUses *int, meta ClientMeta) (*model.AccessCode, error)
	Validate(ctx context.Context, code string, meta ClientMeta) (*model.AccessCode, error)
	Revoke(ctx context.Context, code string, meta ClientMeta) error
	ListActive(ctx context.Context, page model.Page) ([]*model.AccessCode, model.PageMeta, error)
	ExpireDue(ctx context.Context, batch int) (int, error)
}

var _ CodeUseCase = (*codeUC)(nil)

type codeUC struct {
	codes repository.AccessCodeRepository
	logs  repository.UsageLogRepository
	txm   repository.TransactionManager
	pool  *worker.Pool
	log   *zerolog.Logger
}

func NewCodeUseCase(
	codes repository.AccessCodeRepository,
	logs repository.UsageLogRepository,
	txm repository.TransactionManager,
	pool *worker.Pool,
	logger *zerolog.Logger,
) *codeUC {
	return &codeUC{codes: codes, logs: logs, txm: txm, pool: pool, log: logger}
}

func newLogID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// generateAttempts bounds retries when a freshly drawn code string collides
// with an existing row.
const generateAttempts = 3

// Generate creates a code valid for durationMinutes and appends the
// `generated` log in the same transaction. A unique-constraint collision on
// the code string draws a fresh one and retries.
func (uc *codeUC) Generate(ctx context.Context, durationMinutes int, prefix string, autoExpireOnUse bool, maxUses *int, meta ClientMeta) (*model.AccessCode, error) {
	for attempt := 0; attempt < generateAttempts; attempt++ {
		codeStr, err := generateCodeString(prefix)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		code, err := model.NewAccessCode(uuid.NewString(), codeStr, prefix, durationMinutes, autoExpireOnUse, maxUses, now)
		if err != nil {
			return nil, err
		}

		err = uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := uc.codes.Save(ctx, tx, code); err != nil {
				return err
			}
			return uc.logs.Append(ctx, tx, &model.UsageLog{
				ID:        newLogID(now),
				Code:      code.Code,
				Action:    model.ActionGenerated,
				Outcome:   model.OutcomeSuccess,
				Timestamp: now,
				Details:   "Access code generated",
				User:      meta.User,
				IPAddress: meta.IPAddress,
				UserAgent: meta.UserAgent,
			})
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			uc.log.Warn().Str("code", code.Code).Msg("code collision, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		uc.log.Info().Str("code", code.Code).Time("expires_at", code.ExpiresAt).Msg("access code generated")
		return code, nil
	}
	return nil, domain.ErrAlreadyExists
}

// Validate adjudicates one redemption attempt. The success path runs the
// conditional atomic redeem plus the `used` log inside one transaction, so
// two racing attempts against a single-use code can never both win. Failed
// attempts are logged off the request path via the worker pool.
func (uc *codeUC) Validate(ctx context.Context, codeStr string, meta ClientMeta) (*model.AccessCode, error) {
	started := time.Now()
	var redeemed *model.AccessCode

	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now().UTC()
		code, err := uc.codes.Redeem(ctx, tx, codeStr, meta.User, now)
		if err != nil {
			return err
		}
		redeemed = code
		elapsed := time.Since(started).Milliseconds()
		return uc.logs.Append(ctx, tx, &model.UsageLog{
			ID:         newLogID(now),
			Code:       code.Code,
			Action:     model.ActionUsed,
			Outcome:    model.OutcomeSuccess,
			Timestamp:  now,
			Details:    "Access code validated",
			User:       meta.User,
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
			DurationMS: &elapsed,
		})
	})
	if err == nil {
		return redeemed, nil
	}
	if !errors.Is(err, domain.ErrCodeNotFound) {
		return nil, err
	}

	// The conditional update matched nothing: either the code does not exist
	// or it is no longer consumable. Re-read to classify the denial.
	denial := uc.classifyDenial(ctx, codeStr)
	uc.logAttemptFailure(codeStr, denial, meta, started)
	return nil, denial
}

func (uc *codeUC) classifyDenial(ctx context.Context, codeStr string) error {
	code, err := uc.codes.FindByCode(ctx, repository.NoTX, codeStr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCodeNotFound) {
			return domain.ErrCodeNotFound
		}
		return err
	}
	if denial := code.DenialError(time.Now().UTC()); denial != nil {
		return denial
	}
	// The code reads consumable now but the redeem lost anyway; a concurrent
	// winner committed between our update and this read.
	return domain.ErrCodeAlreadyUsed
}

func denialOutcome(err error) model.LogOutcome {
	switch {
	case errors.Is(err, domain.ErrCodeExpired):
		return model.OutcomeExpired
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		return model.OutcomeAlreadyUsed
	case errors.Is(err, domain.ErrUsageLimitReached):
		return model.OutcomeLimitReached
	default:
		return model.OutcomeInvalid
	}
}

// logAttemptFailure appends the failed-attempt log asynchronously. Losing an
// attempt record under pool saturation is acceptable; losing the atomicity of
// the success path is not.
func (uc *codeUC) logAttemptFailure(codeStr string, denial error, meta ClientMeta, started time.Time) {
	now := time.Now().UTC()
	elapsed := time.Since(started).Milliseconds()
	entry := &model.UsageLog{
		ID:         newLogID(now),
		Code:       codeStr,
		Action:     model.ActionUsed,
		Outcome:    denialOutcome(denial),
		Timestamp:  now,
		Details:    denial.Error(),
		User:       meta.User,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		DurationMS: &elapsed,
	}
	task := func(ctx context.Context) error {
		return uc.logs.Append(ctx, repository.NoTX, entry)
	}
	if uc.pool == nil {
		_ = task(context.Background())
		return
	}
	if err := uc.pool.Submit(task); err != nil {
		uc.log.Warn().Err(err).Str("code", codeStr).Msg("dropping failed-attempt log")
	}
}

// Revoke marks the code invalid immediately. Revoking an already revoked or
// otherwise terminal code is a no-op success.
func (uc *codeUC) Revoke(ctx context.Context, codeStr string, meta ClientMeta) error {
	return uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now().UTC()
		transitioned, code, err := uc.codes.MarkRevoked(ctx, tx, codeStr, now)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrCodeNotFound
			}
			return err
		}
		if !transitioned {
			return nil
		}
		uc.log.Info().Str("code", code.Code).Msg("access code revoked")
		return uc.logs.Append(ctx, tx, &model.UsageLog{
			ID:        newLogID(now),
			Code:      code.Code,
			Action:    model.ActionRevoked,
			Outcome:   model.OutcomeSuccess,
			Timestamp: now,
			Details:   "Access code revoked by admin",
			User:      meta.User,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
	})
}

func (uc *codeUC) ListActive(ctx context.Context, page model.Page) ([]*model.AccessCode, model.PageMeta, error) {
	page = page.Normalize()
	codes, total, err := uc.codes.List(ctx, repository.NoTX, page)
	if err != nil {
		return nil, model.PageMeta{}, err
	}
	return codes, model.NewPageMeta(page, total), nil
}

// ExpireDue appends the one-time `expired` log for codes whose lifetime ran
// out. The repository claims each code at most once, so restarts and
// overlapping sweeps cannot double-log.
func (uc *codeUC) ExpireDue(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	expired := 0
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now().UTC()
		claimed, err := uc.codes.ClaimExpired(ctx, tx, now, batch)
		if err != nil {
			return err
		}
		for _, code := range claimed {
			entry := &model.UsageLog{
				ID:        newLogID(now),
				Code:      code.Code,
				Action:    model.ActionExpired,
				Outcome:   model.OutcomeSuccess,
				Timestamp: now,
				Details:   "Access code expired",
			}
			if err := uc.logs.Append(ctx, tx, entry); err != nil {
				return err
			}
		}
		expired = len(claimed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}
