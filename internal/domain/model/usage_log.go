package model

import (
	"time"

	"streamgate/internal/domain"
)

type LogAction string

const (
	ActionGenerated LogAction = "generated"
	ActionUsed      LogAction = "used"
	ActionExpired   LogAction = "expired"
	ActionRevoked   LogAction = "revoked"
)

// ParseLogAction validates a wire-format action string.
func ParseLogAction(s string) (LogAction, error) {
	switch LogAction(s) {
	case ActionGenerated, ActionUsed, ActionExpired, ActionRevoked:
		return LogAction(s), nil
	}
	return "", domain.ErrInvalidArgument
}

// LogOutcome is the structured result of the lifecycle transition that
// produced a log entry. Validation attempts always carry one, so success
// rates never have to be inferred from the free-text details.
type LogOutcome string

const (
	OutcomeSuccess      LogOutcome = "success"
	OutcomeInvalid      LogOutcome = "invalid"
	OutcomeExpired      LogOutcome = "expired"
	OutcomeAlreadyUsed  LogOutcome = "already_used"
	OutcomeLimitReached LogOutcome = "limit_reached"
)

func ParseLogOutcome(s string) (LogOutcome, error) {
	switch LogOutcome(s) {
	case OutcomeSuccess, OutcomeInvalid, OutcomeExpired, OutcomeAlreadyUsed, OutcomeLimitReached:
		return LogOutcome(s), nil
	}
	return "", domain.ErrInvalidArgument
}

// UsageLog is an append-only audit record of one access-code lifecycle
// transition. Entries are never mutated except through explicit admin
// bulk update/delete.
type UsageLog struct {
	ID         string            `json:"id"`
	Code       string            `json:"code"`
	Action     LogAction         `json:"action"`
	Outcome    LogOutcome        `json:"outcome"`
	Timestamp  time.Time         `json:"timestamp"`
	Details    string            `json:"details,omitempty"`
	User       string            `json:"user,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	DurationMS *int64            `json:"duration_ms,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Succeeded reports whether the entry records a successful transition.
func (l *UsageLog) Succeeded() bool { return l.Outcome == OutcomeSuccess }

// ValidationAttempt reports whether the entry records a redemption attempt,
// successful or not. Generated/expired/revoked transitions are not attempts.
func (l *UsageLog) ValidationAttempt() bool { return l.Action == ActionUsed }
