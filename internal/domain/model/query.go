package model

import (
	"strings"
	"time"

	"streamgate/internal/domain"
)

// LogFilter is a request-scoped, fully typed set of predicates over the
// usage-log collection. Dimensions combine with AND; values inside a list
// dimension combine with OR. The zero value matches everything.
type LogFilter struct {
	Start       *time.Time   `json:"start_date,omitempty"`
	End         *time.Time   `json:"end_date,omitempty"`
	Actions     []LogAction  `json:"actions,omitempty"`
	Outcomes    []LogOutcome `json:"outcomes,omitempty"`
	Success     *bool        `json:"success,omitempty"`
	Search      string       `json:"search,omitempty"`
	Users       []string     `json:"users,omitempty"`
	Codes       []string     `json:"codes,omitempty"`
	IPAddresses []string     `json:"ip_addresses,omitempty"`
}

// searchFields are the entry fields the free-text term is matched against.
func (f *LogFilter) searchFields(l *UsageLog) []string {
	return []string{l.Code, l.Details, l.IPAddress, l.UserAgent}
}

// Matches evaluates the filter against a single entry.
func (f *LogFilter) Matches(l *UsageLog) bool {
	if f.Start != nil && l.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && l.Timestamp.After(*f.End) {
		return false
	}
	if len(f.Actions) > 0 && !containsAction(f.Actions, l.Action) {
		return false
	}
	if len(f.Outcomes) > 0 && !containsOutcome(f.Outcomes, l.Outcome) {
		return false
	}
	if f.Success != nil && l.Succeeded() != *f.Success {
		return false
	}
	if len(f.Users) > 0 && !containsFold(f.Users, l.User) {
		return false
	}
	if len(f.Codes) > 0 && !containsFold(f.Codes, l.Code) {
		return false
	}
	if len(f.IPAddresses) > 0 && !containsFold(f.IPAddresses, l.IPAddress) {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		found := false
		for _, field := range f.searchFields(l) {
			if strings.Contains(strings.ToLower(field), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsAction(hay []LogAction, a LogAction) bool {
	for _, h := range hay {
		if h == a {
			return true
		}
	}
	return false
}

func containsOutcome(hay []LogOutcome, o LogOutcome) bool {
	for _, h := range hay {
		if h == o {
			return true
		}
	}
	return false
}

func containsFold(hay []string, s string) bool {
	for _, h := range hay {
		if strings.EqualFold(h, s) {
			return true
		}
	}
	return false
}

type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByAction    SortField = "action"
	SortByCode      SortField = "code"
	SortByIPAddress SortField = "ip_address"
	SortByUser      SortField = "user"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// LogSort selects the order of a query result. The zero value means the
// default: timestamp descending.
type LogSort struct {
	Field SortField `json:"field"`
	Order SortOrder `json:"order"`
}

func (s LogSort) Normalize() LogSort {
	if s.Field == "" {
		s.Field = SortByTimestamp
	}
	if s.Order == "" {
		s.Order = SortDesc
	}
	return s
}

// ParseSortField validates a wire-format sort field.
func ParseSortField(s string) (SortField, error) {
	switch SortField(s) {
	case SortByTimestamp, SortByAction, SortByCode, SortByIPAddress, SortByUser:
		return SortField(s), nil
	case "":
		return SortByTimestamp, nil
	}
	return "", domain.ErrInvalidArgument
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Page is an offset-based pagination request.
type Page struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

// PageMeta is the pagination block returned with every collection response.
type PageMeta struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	Total           int  `json:"total"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewPageMeta computes pagination metadata for total rows viewed through p.
func NewPageMeta(p Page, total int) PageMeta {
	p = p.Normalize()
	totalPages := (total + p.Limit - 1) / p.Limit
	return PageMeta{
		Page:            p.Number,
		Limit:           p.Limit,
		Total:           total,
		TotalPages:      totalPages,
		HasNextPage:     p.Number < totalPages,
		HasPreviousPage: p.Number > 1 && total > 0,
	}
}
