package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
	"streamgate/internal/infra/metrics"
	"streamgate/internal/usecase"
)

type logsResponse struct {
	Success      bool                  `json:"success"`
	Data         []*model.UsageLog     `json:"data"`
	Pagination   model.PageMeta        `json:"pagination"`
	Aggregations *usecase.Aggregations `json:"aggregations,omitempty"`
	Metadata     logsMetadata          `json:"metadata"`
}

type logsMetadata struct {
	SortBy      string    `json:"sortBy"`
	SortOrder   string    `json:"sortOrder"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// handleLogsQuery serves GET /api/v1/activity-logs with typed filter parsing
// at the boundary; malformed values are client errors, never silently
// ignored.
func (s *Server) handleLogsQuery(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	sortBy, err := sortFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	page := pageFromQuery(r)

	entries, meta, err := s.logUC.Query(r.Context(), filter, sortBy, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := logsResponse{
		Success:    true,
		Data:       entries,
		Pagination: meta,
		Metadata: logsMetadata{
			SortBy:      string(sortBy.Normalize().Field),
			SortOrder:   string(sortBy.Normalize().Order),
			GeneratedAt: time.Now().UTC(),
		},
	}
	if entries == nil {
		resp.Data = []*model.UsageLog{}
	}
	if r.URL.Query().Get("includeStats") == "true" {
		aggs, err := s.logUC.Aggregate(r.Context(), filter)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp.Aggregations = aggs
	}
	writeJSON(w, http.StatusOK, resp)
}

type logsActionRequest struct {
	Action   string            `json:"action"`
	Search   string            `json:"search,omitempty"`
	Filter   model.LogFilter   `json:"filter,omitempty"`
	Format   string            `json:"format,omitempty"`
	MaxRows  int               `json:"max_rows,omitempty"`
	IDs      []string          `json:"ids,omitempty"`
	Details  *string           `json:"details,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Page     int               `json:"page,omitempty"`
	Limit    int               `json:"limit,omitempty"`
}

func (s *Server) handleLogsAction(w http.ResponseWriter, r *http.Request) {
	var req logsActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	page := model.Page{Number: req.Page, Limit: req.Limit}.Normalize()

	switch req.Action {
	case "search":
		entries, meta, err := s.logUC.Search(r.Context(), req.Search, req.Filter, page)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, logsResponse{
			Success:    true,
			Data:       entries,
			Pagination: meta,
			Metadata:   logsMetadata{SortBy: "timestamp", SortOrder: "desc", GeneratedAt: time.Now().UTC()},
		})
	case "stats":
		aggs, err := s.logUC.Aggregate(r.Context(), req.Filter)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success bool                  `json:"success"`
			Stats   *usecase.Aggregations `json:"stats"`
		}{Success: true, Stats: aggs})
	case "export":
		s.serveExport(w, r, req.Filter, req.Format, req.MaxRows, false)
	case "bulk_delete":
		n, err := s.logUC.BulkDelete(r.Context(), req.IDs)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeAffected(w, n)
	case "bulk_update":
		patch := repository.LogUpdate{Details: req.Details, Metadata: req.Metadata}
		n, err := s.logUC.BulkUpdate(r.Context(), req.IDs, patch)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeAffected(w, n)
	default:
		writeError(w, http.StatusBadRequest, "Unknown action", nil)
	}
}

func writeAffected(w http.ResponseWriter, n int) {
	writeJSON(w, http.StatusOK, struct {
		Success  bool `json:"success"`
		Affected int  `json:"affected"`
	}{Success: true, Affected: n})
}

func (s *Server) handleLogsBulkDelete(w http.ResponseWriter, r *http.Request) {
	ids := splitParam(r.URL.Query().Get("ids"))
	n, err := s.logUC.BulkDelete(r.Context(), ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeAffected(w, n)
}

func (s *Server) handleLogsExport(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	maxRows, _ := strconv.Atoi(r.URL.Query().Get("maxRows"))
	preview := r.URL.Query().Get("preview") == "true"
	s.serveExport(w, r, filter, r.URL.Query().Get("format"), maxRows, preview)
}

func (s *Server) handleLogsExportPost(w http.ResponseWriter, r *http.Request) {
	var req logsActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	s.serveExport(w, r, req.Filter, req.Format, req.MaxRows, false)
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, filter model.LogFilter, formatStr string, maxRows int, preview bool) {
	format, err := model.ParseExportFormat(formatStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown export format", nil)
		return
	}
	if preview {
		entries, meta, err := s.logUC.Query(r.Context(), filter, model.LogSort{}, model.Page{Number: 1, Limit: 20})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, logsResponse{
			Success:    true,
			Data:       entries,
			Pagination: meta,
			Metadata:   logsMetadata{SortBy: "timestamp", SortOrder: "desc", GeneratedAt: time.Now().UTC()},
		})
		return
	}

	result, err := s.logUC.Export(r.Context(), filter, format, maxRows)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncLogExport(string(result.Format))

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// filterFromQuery builds the typed filter from query parameters. Dates accept
// RFC 3339 or plain YYYY-MM-DD; an end date without a time component covers
// the whole day.
func filterFromQuery(r *http.Request) (model.LogFilter, error) {
	q := r.URL.Query()
	var filter model.LogFilter

	if v := q.Get("startDate"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid startDate: %w", err)
		}
		filter.Start = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid endDate: %w", err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filter.End = &t
	}
	for _, a := range splitParam(q.Get("actions")) {
		action, err := model.ParseLogAction(a)
		if err != nil {
			return filter, fmt.Errorf("invalid action %q", a)
		}
		filter.Actions = append(filter.Actions, action)
	}
	for _, o := range splitParam(q.Get("outcomes")) {
		outcome, err := model.ParseLogOutcome(o)
		if err != nil {
			return filter, fmt.Errorf("invalid outcome %q", o)
		}
		filter.Outcomes = append(filter.Outcomes, outcome)
	}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid success flag %q", v)
		}
		filter.Success = &b
	}
	filter.Search = q.Get("search")
	filter.Users = splitParam(q.Get("users"))
	filter.Codes = splitParam(q.Get("codes"))
	filter.IPAddresses = splitParam(q.Get("ipAddresses"))
	return filter, nil
}

func sortFromQuery(r *http.Request) (model.LogSort, error) {
	field, err := model.ParseSortField(r.URL.Query().Get("sortBy"))
	if err != nil {
		return model.LogSort{}, fmt.Errorf("invalid sortBy %q", r.URL.Query().Get("sortBy"))
	}
	order := model.SortOrder(r.URL.Query().Get("sortOrder"))
	switch order {
	case "", model.SortAsc, model.SortDesc:
	default:
		return model.LogSort{}, fmt.Errorf("invalid sortOrder %q", order)
	}
	return model.LogSort{Field: field, Order: order}.Normalize(), nil
}

func parseDate(v string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse("2006-01-02", v); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date %q", v)
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
