package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"streamgate/internal/domain/model"
)

type reportCreateRequest struct {
	Name            string          `json:"name"`
	Filter          model.LogFilter `json:"filter"`
	Format          string          `json:"format"`
	IntervalMinutes int             `json:"interval_minutes"`
}

func (s *Server) handleReportCreate(w http.ResponseWriter, r *http.Request) {
	var req reportCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	format, err := model.ParseExportFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown export format", nil)
		return
	}
	job, err := s.reportUC.Schedule(r.Context(), req.Name, req.Filter, format, req.IntervalMinutes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Success bool             `json:"success"`
		Report  *model.ReportJob `json:"report"`
	}{Success: true, Report: job})
}

func (s *Server) handleReportList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.reportUC.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*model.ReportJob{}
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool               `json:"success"`
		Reports []*model.ReportJob `json:"reports"`
	}{Success: true, Reports: jobs})
}

func (s *Server) handleReportGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.reportUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool             `json:"success"`
		Report  *model.ReportJob `json:"report"`
	}{Success: true, Report: job})
}

func (s *Server) handleReportDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.reportUC.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

// handleReportDownload streams the most recent stored artifact of a job.
func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	run, err := s.reportUC.LatestRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", run.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", run.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(run.Payload)
}
