package repository

import (
	"context"
	"time"

	"streamgate/internal/domain/model"
)

// AccessCodeRepository is the port for managing access codes.
type AccessCodeRepository interface {
	// Save creates a new access code.
	Save(ctx context.Context, tx Tx, code *model.AccessCode) error
	// FindByCode finds a code by its redeemable string, regardless of state.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.AccessCode, error)
	// Redeem performs the atomic conditional consume: increment CurrentUses
	// and stamp UsedAt/UsedBy on first use, only if the code is consumable at
	// instant now. Returns the updated code, or domain.ErrCodeNotFound when
	// the conditional update matched no consumable row (the caller re-reads
	// to classify the denial).
	Redeem(ctx context.Context, tx Tx, code string, usedBy string, now time.Time) (*model.AccessCode, error)
	// MarkRevoked flags the code revoked. Returns true when this call
	// performed the transition, false when the code was already revoked.
	MarkRevoked(ctx context.Context, tx Tx, code string, now time.Time) (bool, *model.AccessCode, error)
	// List returns codes ordered by creation time descending, with total.
	List(ctx context.Context, tx Tx, page model.Page) ([]*model.AccessCode, int, error)
	// ClaimExpired atomically claims up to limit time-expired codes whose
	// expiry has not been logged yet, flipping their expiry-logged flag.
	ClaimExpired(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.AccessCode, error)
}
