package pipeline

import (
	"testing"
	"time"

	"github.com/idea2impact/grantpilot/internal/harvest"
)

func TestParseDeadline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"iso", "2026-01-16", "2026-01-16", true},
		{"dot is day first", "16.01.2026", "2026-01-16", true},
		{"slash is month first", "01/16/2026", "2026-01-16", true},
		{"slash falls back to day first", "16/01/2026", "2026-01-16", true},
		{"hyphen is day first", "16-01-2026", "2026-01-16", true},
		{"hyphen falls back to month first", "01-16-2026", "2026-01-16", true},
		{"two digit year", "16/01/26", "2026-01-16", true},
		{"day month name year", "16 Jan 2026", "2026-01-16", true},
		{"day full month name", "16 January 2026", "2026-01-16", true},
		{"sept abbreviation", "5 Sept 2026", "2026-09-05", true},
		{"month day comma year", "January 16, 2026", "2026-01-16", true},
		{"embedded in prose", "Last date: 16.01.2026 (extended)", "2026-01-16", true},
		{"not a date", "not a date", "", false},
		{"impossible calendar date", "31/02/2026", "", false},
		{"na marker", "N/A", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDeadline(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseDeadline(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDeadline(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestFilterActiveOpen(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	opps := []harvest.Opportunity{
		{SchemeName: "Past call", LastDateSubmission: "2024-12-31"},
		{SchemeName: "Closes today", LastDateSubmission: "2025-01-01"},
		{SchemeName: "Closes tomorrow", LastDateSubmission: "2025-01-02"},
		{SchemeName: "Future Call (Closed)", LastDateSubmission: "2025-06-30"},
		{SchemeName: "No deadline yet", LastDateSubmission: "N/A"},
	}

	t.Run("include unknown deadlines", func(t *testing.T) {
		kept := FilterActiveOpen(opps, now, true)
		if len(kept) != 2 {
			t.Fatalf("kept %d, want 2: %+v", len(kept), kept)
		}
		if kept[0].SchemeName != "Closes tomorrow" {
			t.Errorf("kept[0] = %q", kept[0].SchemeName)
		}
		if kept[0].DeadlineDateISO != "2025-01-02" {
			t.Errorf("DeadlineDateISO = %q, want 2025-01-02", kept[0].DeadlineDateISO)
		}
		if kept[1].SchemeName != "No deadline yet" {
			t.Errorf("kept[1] = %q", kept[1].SchemeName)
		}
		if kept[1].DeadlineDateISO != "" {
			t.Errorf("unknown deadline got ISO %q", kept[1].DeadlineDateISO)
		}
	})

	t.Run("exclude unknown deadlines", func(t *testing.T) {
		kept := FilterActiveOpen(opps, now, false)
		if len(kept) != 1 {
			t.Fatalf("kept %d, want 1: %+v", len(kept), kept)
		}
		if kept[0].SchemeName != "Closes tomorrow" {
			t.Errorf("kept[0] = %q", kept[0].SchemeName)
		}
	})

	t.Run("input untouched", func(t *testing.T) {
		FilterActiveOpen(opps, now, true)
		if opps[2].DeadlineDateISO != "" {
			t.Errorf("input slice mutated: %q", opps[2].DeadlineDateISO)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if kept := FilterActiveOpen(nil, now, true); kept != nil {
			t.Errorf("got %v, want nil", kept)
		}
	})
}
