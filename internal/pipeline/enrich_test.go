package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/idea2impact/grantpilot/internal/harvest"
)

type fakeFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*harvest.FetchedDocument, error) {
	f.fetched = append(f.fetched, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, errors.New("no such page")
	}
	return &harvest.FetchedDocument{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(body),
	}, nil
}

func TestExtractDeadlineFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"keyword line with date",
			"Applications are invited.\nLast date of submission: 16.01.2026\nApply online.",
			"16.01.2026",
		},
		{
			"date within following lines",
			"Submission deadline\nfor all categories\nis 16 January 2026\nno extensions.",
			"16 January 2026",
		},
		{
			"iso preferred over other shapes in window",
			"Deadline: 2026-01-16 or 16/01/2026",
			"2026-01-16",
		},
		{
			"closing date keyword",
			"Closing date: January 16, 2026",
			"January 16, 2026",
		},
		{
			"fallback to first date anywhere",
			"Launch event on 05/03/2026 in New Delhi.",
			"05/03/2026",
		},
		{
			"hyphen separated date",
			"Due date: 16-01-2026",
			"16-01-2026",
		},
		{"no date", "Applications are invited for the scheme.", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDeadlineFromText(tt.text); got != tt.want {
				t.Errorf("extractDeadlineFromText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestHTMLToText(t *testing.T) {
	page := []byte(`<html><head><script>nav()</script></head><body>
		<nav>Menu items here</nav>
		<main><h1>Call for Proposals</h1><p>Last date: 16.01.2026</p></main>
	</body></html>`)
	text, err := htmlToText(page)
	if err != nil {
		t.Fatalf("htmlToText: %v", err)
	}
	if got := extractDeadlineFromText(text); got != "16.01.2026" {
		t.Errorf("deadline from main content = %q", got)
	}
	if strings.Contains(text, "Menu items here") {
		t.Errorf("text should prefer main content, got %q", text)
	}
}

func TestEnrichDeadlines(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://a.example/call": "<html><body>Last date of submission: 16.01.2026</body></html>",
		"https://b.example/call": "<html><body>No dates mentioned here.</body></html>",
	}}
	opps := []harvest.Opportunity{
		{SchemeName: "A", SourceURL: "https://a.example/call", LastDateSubmission: "N/A"},
		{SchemeName: "B", SourceURL: "https://b.example/call", LastDateSubmission: "N/A"},
		{SchemeName: "C", SourceURL: "https://c.example/call", LastDateSubmission: "2026-03-01"},
		{SchemeName: "D", LastDateSubmission: "N/A"},
	}

	cache := NewDeadlineCache()
	out := EnrichDeadlines(context.Background(), f, opps, cache, 10)

	if out[0].LastDateSubmission != "16.01.2026" {
		t.Errorf("A deadline = %q", out[0].LastDateSubmission)
	}
	if out[1].LastDateSubmission != "N/A" {
		t.Errorf("B deadline = %q, want untouched N/A", out[1].LastDateSubmission)
	}
	if out[2].LastDateSubmission != "2026-03-01" {
		t.Errorf("C deadline = %q, want untouched", out[2].LastDateSubmission)
	}
	if len(f.fetched) != 2 {
		t.Errorf("fetched %d urls, want 2 (no fetch for filled or url-less entries)", len(f.fetched))
	}

	// Input slice untouched.
	if opps[0].LastDateSubmission != "N/A" {
		t.Errorf("input mutated: %q", opps[0].LastDateSubmission)
	}

	t.Run("cache hit skips fetch", func(t *testing.T) {
		f2 := &fakeFetcher{pages: f.pages}
		again := EnrichDeadlines(context.Background(), f2, opps[:1], cache, 10)
		if again[0].LastDateSubmission != "16.01.2026" {
			t.Errorf("cached deadline = %q", again[0].LastDateSubmission)
		}
		if len(f2.fetched) != 0 {
			t.Errorf("fetched %d urls, want 0 on cache hit", len(f2.fetched))
		}
	})

	t.Run("negative result not cached", func(t *testing.T) {
		f3 := &fakeFetcher{pages: f.pages}
		EnrichDeadlines(context.Background(), f3, opps[1:2], cache, 10)
		if len(f3.fetched) != 1 {
			t.Errorf("fetched %d urls, want 1 retry for uncached miss", len(f3.fetched))
		}
	})

	t.Run("budget counts fetches only", func(t *testing.T) {
		f4 := &fakeFetcher{pages: f.pages}
		budget := EnrichDeadlines(context.Background(), f4, []harvest.Opportunity{
			{SchemeName: "A", SourceURL: "https://a.example/call", LastDateSubmission: "N/A"},
			{SchemeName: "B", SourceURL: "https://b.example/call", LastDateSubmission: "N/A"},
		}, cache, 1)
		// A resolves from cache for free; the single budgeted fetch goes to B.
		if budget[0].LastDateSubmission != "16.01.2026" {
			t.Errorf("A = %q", budget[0].LastDateSubmission)
		}
		if len(f4.fetched) != 1 || f4.fetched[0] != "https://b.example/call" {
			t.Errorf("fetched = %v", f4.fetched)
		}
	})
}
