package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Access-code adjudication errors. The messages are surfaced verbatim to
	// redeeming clients, so keep the wording stable.
	ErrCodeNotFound      = errors.New("Invalid access code")
	ErrCodeExpired       = errors.New("This access code has expired")
	ErrCodeAlreadyUsed   = errors.New("This access code already used")
	ErrUsageLimitReached = errors.New("This access code has reached its usage limit")
	ErrInvalidDuration   = errors.New("duration must be between 1 and 525600 minutes")
	ErrRateLimited       = errors.New("too many validation attempts")
)
