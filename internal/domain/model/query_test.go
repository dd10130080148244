//go:build !integration

package model

import (
	"testing"
	"time"
)

func entry(code string, action LogAction, outcome LogOutcome, ts time.Time) *UsageLog {
	return &UsageLog{
		ID:        code + "-" + string(action),
		Code:      code,
		Action:    action,
		Outcome:   outcome,
		Timestamp: ts,
	}
}

func TestLogFilterMatches(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	t.Run("zero filter matches everything", func(t *testing.T) {
		var f LogFilter
		if !f.Matches(entry("AAAA", ActionUsed, OutcomeSuccess, now)) {
			t.Error("zero filter rejected an entry")
		}
	})

	t.Run("time window is inclusive of both bounds", func(t *testing.T) {
		start, end := now.Add(-time.Hour), now.Add(time.Hour)
		f := LogFilter{Start: &start, End: &end}
		if !f.Matches(entry("A", ActionUsed, OutcomeSuccess, start)) {
			t.Error("entry at window start rejected")
		}
		if !f.Matches(entry("A", ActionUsed, OutcomeSuccess, end)) {
			t.Error("entry at window end rejected")
		}
		if f.Matches(entry("A", ActionUsed, OutcomeSuccess, end.Add(time.Nanosecond))) {
			t.Error("entry past window accepted")
		}
	})

	t.Run("values within a dimension combine with OR", func(t *testing.T) {
		f := LogFilter{Actions: []LogAction{ActionGenerated, ActionRevoked}}
		if !f.Matches(entry("A", ActionRevoked, OutcomeSuccess, now)) {
			t.Error("second listed action rejected")
		}
		if f.Matches(entry("A", ActionUsed, OutcomeSuccess, now)) {
			t.Error("unlisted action accepted")
		}
	})

	t.Run("dimensions combine with AND", func(t *testing.T) {
		ok := true
		f := LogFilter{Actions: []LogAction{ActionUsed}, Success: &ok}
		if f.Matches(entry("A", ActionUsed, OutcomeExpired, now)) {
			t.Error("entry failing one dimension accepted")
		}
		if !f.Matches(entry("A", ActionUsed, OutcomeSuccess, now)) {
			t.Error("entry satisfying both dimensions rejected")
		}
	})

	t.Run("free-text search is case-insensitive across fields", func(t *testing.T) {
		e := entry("VIP-1234-ABCD", ActionUsed, OutcomeSuccess, now)
		e.UserAgent = "Mozilla/5.0 (SmartTV)"
		for _, term := range []string{"vip", "VIP", "smarttv"} {
			f := LogFilter{Search: term}
			if !f.Matches(e) {
				t.Errorf("search %q did not match", term)
			}
		}
		if (&LogFilter{Search: "absent"}).Matches(e) {
			t.Error("non-matching term accepted")
		}
	})

	t.Run("user and ip lists match case-insensitively", func(t *testing.T) {
		e := entry("A", ActionUsed, OutcomeSuccess, now)
		e.User = "Alice"
		e.IPAddress = "10.0.0.7"
		if !(&LogFilter{Users: []string{"alice"}}).Matches(e) {
			t.Error("user fold match failed")
		}
		if (&LogFilter{IPAddresses: []string{"10.0.0.8"}}).Matches(e) {
			t.Error("wrong ip accepted")
		}
	})
}

func TestPageNormalize(t *testing.T) {
	p := Page{Number: 0, Limit: 0}.Normalize()
	if p.Number != 1 || p.Limit != DefaultPageLimit {
		t.Errorf("normalized zero page = %+v", p)
	}
	p = Page{Number: 3, Limit: 9999}.Normalize()
	if p.Limit != MaxPageLimit {
		t.Errorf("limit not clamped: %d", p.Limit)
	}
	if got := p.Offset(); got != 2*MaxPageLimit {
		t.Errorf("offset = %d, want %d", got, 2*MaxPageLimit)
	}
}

func TestNewPageMeta(t *testing.T) {
	cases := []struct {
		name       string
		page       Page
		total      int
		totalPages int
		hasNext    bool
		hasPrev    bool
	}{
		{"empty set", Page{Number: 1, Limit: 50}, 0, 0, false, false},
		{"partial last page counts as a full page", Page{Number: 1, Limit: 50}, 51, 2, true, false},
		{"middle page has both neighbours", Page{Number: 2, Limit: 10}, 35, 4, true, true},
		{"last page has no next", Page{Number: 4, Limit: 10}, 35, 4, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := NewPageMeta(tc.page, tc.total)
			if meta.TotalPages != tc.totalPages {
				t.Errorf("TotalPages = %d, want %d", meta.TotalPages, tc.totalPages)
			}
			if meta.HasNextPage != tc.hasNext {
				t.Errorf("HasNextPage = %v, want %v", meta.HasNextPage, tc.hasNext)
			}
			if meta.HasPreviousPage != tc.hasPrev {
				t.Errorf("HasPreviousPage = %v, want %v", meta.HasPreviousPage, tc.hasPrev)
			}
		})
	}
}

func TestReportJobSchedule(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	job, err := NewReportJob("job-1", "nightly", LogFilter{}, FormatCSV, 60, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := job.NextRunAt, now.Add(time.Hour); !got.Equal(want) {
		t.Errorf("NextRunAt = %v, want %v", got, want)
	}

	ran := now.Add(61 * time.Minute)
	job.Advance(ran)
	if job.LastRunAt == nil || !job.LastRunAt.Equal(ran) {
		t.Errorf("LastRunAt = %v, want %v", job.LastRunAt, ran)
	}
	if got, want := job.NextRunAt, ran.Add(time.Hour); !got.Equal(want) {
		t.Errorf("NextRunAt after advance = %v, want %v", got, want)
	}

	defaulted, err := NewReportJob("job-2", "hourly", LogFilter{}, "", 60, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defaulted.Format != FormatCSV {
		t.Errorf("Format = %q, want %q", defaulted.Format, FormatCSV)
	}

	if _, err := NewReportJob("job-4", "", LogFilter{}, FormatCSV, 60, now); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := NewReportJob("job-3", "bad", LogFilter{}, "pdf", 60, now); err == nil {
		t.Error("expected error for unknown format")
	}
}
