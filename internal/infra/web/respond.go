package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"streamgate/internal/domain"
)

// apiError is the error envelope shared by every endpoint.
type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details interface{}) {
	e := apiError{Success: false}
	switch m := msg.(type) {
	case string:
		e.Error = m
	case error:
		e.Error = m.Error()
	}
	if d, ok := details.(string); ok {
		e.Details = d
	}
	writeJSON(w, status, e)
}

// writeDomainError maps domain sentinels onto the HTTP taxonomy. Unexpected
// errors become a generic 500 with the underlying text kept in details for
// diagnostics.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err, nil)
	case errors.Is(err, domain.ErrCodeNotFound),
		errors.Is(err, domain.ErrCodeExpired),
		errors.Is(err, domain.ErrCodeAlreadyUsed),
		errors.Is(err, domain.ErrUsageLimitReached):
		writeError(w, http.StatusBadRequest, err, nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}
