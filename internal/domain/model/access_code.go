package model

import (
	"time"

	"streamgate/internal/domain"
)

// Generation duration bounds, in minutes. The upper bound is one year.
const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 525600
)

type CodeStatus string

const (
	CodeStatusActive    CodeStatus = "active"
	CodeStatusUsed      CodeStatus = "used"
	CodeStatusExhausted CodeStatus = "exhausted"
	CodeStatusExpired   CodeStatus = "expired"
	CodeStatusRevoked   CodeStatus = "revoked"
)

// AccessCode is a short-lived credential string gating access to the
// streaming service. A code starts active and moves to exactly one of the
// absorbing states: used (single-use redeemed), exhausted (usage ceiling
// reached), expired (wall clock passed ExpiresAt) or revoked (admin action).
type AccessCode struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Prefix          string     `json:"prefix,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	UsedBy          *string    `json:"used_by,omitempty"`
	AutoExpireOnUse bool       `json:"auto_expire_on_use"`
	MaxUses         *int       `json:"max_uses,omitempty"`
	CurrentUses     int        `json:"current_uses"`
	Revoked         bool       `json:"revoked"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	// ExpiryLogged marks that the one-time `expired` usage log for this code
	// has been appended by the expiry sweep.
	ExpiryLogged bool `json:"-"`
}

// NewAccessCode validates and constructs a code expiring durationMinutes
// after now.
func NewAccessCode(id, code, prefix string, durationMinutes int, autoExpireOnUse bool, maxUses *int, now time.Time) (*AccessCode, error) {
	if id == "" || code == "" {
		return nil, domain.ErrInvalidArgument
	}
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return nil, domain.ErrInvalidDuration
	}
	if maxUses != nil && *maxUses < 1 {
		return nil, domain.ErrInvalidArgument
	}
	return &AccessCode{
		ID:              id,
		Code:            code,
		Prefix:          prefix,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(durationMinutes) * time.Minute),
		AutoExpireOnUse: autoExpireOnUse,
		MaxUses:         maxUses,
	}, nil
}

// Status derives the lifecycle state at instant now. Revocation wins over
// every other state; time expiry is checked before usage exhaustion so that
// an expired single-use code reads as expired, not used.
func (c *AccessCode) Status(now time.Time) CodeStatus {
	switch {
	case c.Revoked:
		return CodeStatusRevoked
	case !now.Before(c.ExpiresAt):
		return CodeStatusExpired
	case c.AutoExpireOnUse && c.CurrentUses >= 1:
		return CodeStatusUsed
	case c.MaxUses != nil && c.CurrentUses >= *c.MaxUses:
		return CodeStatusExhausted
	default:
		return CodeStatusActive
	}
}

// Consumable reports whether a validation attempt at instant now may succeed.
func (c *AccessCode) Consumable(now time.Time) bool {
	return c.Status(now) == CodeStatusActive
}

// DenialError maps a non-consumable code to the adjudication error a
// redeeming client receives. Returns nil for a consumable code.
func (c *AccessCode) DenialError(now time.Time) error {
	switch c.Status(now) {
	case CodeStatusActive:
		return nil
	case CodeStatusRevoked, CodeStatusExpired:
		return domain.ErrCodeExpired
	case CodeStatusUsed:
		return domain.ErrCodeAlreadyUsed
	default:
		return domain.ErrUsageLimitReached
	}
}
