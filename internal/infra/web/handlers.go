package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/infra/logging"
	"streamgate/internal/infra/metrics"
	"streamgate/internal/usecase"
)

type accessCodeRequest struct {
	Action          string `json:"action"`
	Code            string `json:"code,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Prefix          string `json:"prefix,omitempty"`
	AutoExpireOnUse *bool  `json:"auto_expire_on_use,omitempty"`
	MaxUses         *int   `json:"max_uses,omitempty"`
	User            string `json:"user,omitempty"`
}

func (s *Server) handleAccessCodeAction(w http.ResponseWriter, r *http.Request) {
	var req accessCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	switch req.Action {
	case "generate":
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		s.generateCode(w, r, req)
	case "validate":
		s.validateCode(w, r, req)
	case "revoke":
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		s.revokeCode(w, r, req.Code, req.User)
	default:
		writeError(w, http.StatusBadRequest, "Unknown action", nil)
	}
}

func (s *Server) generateCode(w http.ResponseWriter, r *http.Request, req accessCodeRequest) {
	autoExpire := true
	if req.AutoExpireOnUse != nil {
		autoExpire = *req.AutoExpireOnUse
	}
	code, err := s.codeUC.Generate(r.Context(), req.DurationMinutes, req.Prefix, autoExpire, req.MaxUses, s.clientMeta(r, req.User))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncCodeGenerated()
	writeJSON(w, http.StatusCreated, struct {
		Success bool              `json:"success"`
		Code    *model.AccessCode `json:"code"`
	}{Success: true, Code: code})
}

func (s *Server) validateCode(w http.ResponseWriter, r *http.Request, req accessCodeRequest) {
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Missing code", nil)
		return
	}
	code, err := s.codeUC.Validate(r.Context(), req.Code, s.clientMeta(r, req.User))
	if err != nil {
		outcome := validationOutcome(err)
		if outcome == "" {
			writeDomainError(w, err)
			return
		}
		ctx := logging.WithCode(r.Context(), logging.Redact(req.Code, s.dev))
		logging.With(ctx, s.log).Warn().
			Str("outcome", outcome).
			Msg("validation denied")
		metrics.IncValidation(outcome)
		writeJSON(w, http.StatusBadRequest, struct {
			Valid bool   `json:"valid"`
			Error string `json:"error"`
		}{Valid: false, Error: err.Error()})
		return
	}
	metrics.IncValidation("success")
	writeJSON(w, http.StatusOK, struct {
		Valid bool              `json:"valid"`
		Code  *model.AccessCode `json:"code"`
	}{Valid: true, Code: code})
}

// validationOutcome maps adjudication denials to metric labels; anything
// else is an infrastructure failure, not an adjudication result.
func validationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrCodeNotFound):
		return "invalid"
	case errors.Is(err, domain.ErrCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		return "already_used"
	case errors.Is(err, domain.ErrUsageLimitReached):
		return "limit_reached"
	}
	return ""
}

func (s *Server) revokeCode(w http.ResponseWriter, r *http.Request, code, user string) {
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing code", nil)
		return
	}
	if err := s.codeUC.Revoke(r.Context(), code, s.clientMeta(r, user)); err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncCodeRevoked()
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

// handleAccessCodeAdmin serves the dashboard overview: a page of codes with
// derived status plus the most recent activity.
func (s *Server) handleAccessCodeAdmin(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "admin" {
		writeError(w, http.StatusBadRequest, "Unknown action", nil)
		return
	}
	page := pageFromQuery(r)
	codes, meta, err := s.codeUC.ListActive(r.Context(), page)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	recent, _, err := s.logUC.Query(r.Context(), model.LogFilter{}, model.LogSort{}, model.Page{Number: 1, Limit: 20})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success    bool                `json:"success"`
		Codes      []*model.AccessCode `json:"codes"`
		Pagination model.PageMeta      `json:"pagination"`
		RecentLogs []*model.UsageLog   `json:"recent_logs"`
	}{Success: true, Codes: codes, Pagination: meta, RecentLogs: recent})
}

func (s *Server) handleRevokeCode(w http.ResponseWriter, r *http.Request) {
	s.revokeCode(w, r, chi.URLParam(r, "code"), "")
}

func (s *Server) clientMeta(r *http.Request, user string) usecase.ClientMeta {
	return usecase.ClientMeta{
		User:      user,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func pageFromQuery(r *http.Request) model.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return model.Page{Number: page, Limit: limit}.Normalize()
}
