package harvest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubFetcher struct {
	doc *FetchedDocument
	err error
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*FetchedDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	d := *s.doc
	d.URL = url
	return &d, nil
}

func testSource(strategy, url string) SourceConfig {
	return SourceConfig{
		ID:       "test_" + strategy,
		Name:     "Test " + strategy,
		Strategy: strategy,
		URL:      url,
		Agency:   "Test Agency",
	}
}

func TestKeepAnnouncementLink(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		want  bool
	}{
		{"valid announcement", "Call for Proposals under NGP 2026", "https://dst.gov.in/call-for-proposals", true},
		{"social link", "Follow us for updates here", "https://facebook.com/dst", false},
		{"sitemap link", "Complete site overview page", "https://dst.gov.in/sitemap", false},
		{"contact page", "Reach the department office", "https://dst.gov.in/contact", false},
		{"short title", "Home", "https://dst.gov.in/home", false},
		{"empty title", "", "https://dst.gov.in/x", false},
		{"pdf attachment", "Advertisement for INSPIRE Faculty Fellowship", "https://dst.gov.in/sites/default/ad.pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keepAnnouncementLink(tt.title, tt.url); got != tt.want {
				t.Errorf("keepAnnouncementLink(%q, %q) = %v, want %v", tt.title, tt.url, got, tt.want)
			}
		})
	}
}

func TestKeepNewsLink(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		want  bool
	}{
		{"call keyword", "Call for proposals in quantum tech", "https://www.indiascienceandtechnology.gov.in/calls/q1", true},
		{"fellowship plural via substring", "New fellowships announced for 2026", "https://www.indiascienceandtechnology.gov.in/fellow", true},
		{"off-site link", "Call for proposals in quantum tech", "https://example.com/calls/q1", false},
		{"no opportunity word", "Minister visits research facility", "https://www.indiascienceandtechnology.gov.in/news/1", false},
		{"short title", "Grants", "https://www.indiascienceandtechnology.gov.in/grants", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keepNewsLink(tt.title, tt.url); got != tt.want {
				t.Errorf("keepNewsLink(%q, %q) = %v, want %v", tt.title, tt.url, got, tt.want)
			}
		})
	}
}

func TestHarvestAnnouncementsDeduplicatesLinks(t *testing.T) {
	page := `<html><body>
		<a href="/call-one">Call for Proposals: Clean Energy</a>
		<a href="/call-one">Call for Proposals: Clean Energy</a>
		<a href="https://facebook.com/dst">Follow the department on Facebook</a>
		<a href="/contact">Contact the department office</a>
		<a href="/call-two">INSPIRE Faculty Fellowship 2026</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	cfg := testSource("announcements", srv.URL)
	cfg.TimeoutSeconds = 5
	items, err := HarvestAnnouncements(context.Background(), cfg)
	if err != nil {
		t.Fatalf("HarvestAnnouncements: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	first := items[0]
	if first.SchemeName != "Call for Proposals: Clean Energy" {
		t.Errorf("scheme name = %q", first.SchemeName)
	}
	if first.FundingAgency != "Test Agency" {
		t.Errorf("funding agency = %q", first.FundingAgency)
	}
	if first.LastDateSubmission != "N/A" {
		t.Errorf("last date = %q, want N/A", first.LastDateSubmission)
	}
	if !strings.HasPrefix(first.Description, "Source: ") {
		t.Errorf("description = %q", first.Description)
	}
	if !strings.Contains(first.FullTextContent, first.SourceURL) {
		t.Errorf("full text %q missing url %q", first.FullTextContent, first.SourceURL)
	}
}

func TestHarvestNewsSyntheticFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/about">About this portal page</a></body></html>`))
	}))
	defer srv.Close()

	cfg := testSource("news", srv.URL)
	cfg.TimeoutSeconds = 5
	items, err := HarvestNews(context.Background(), cfg)
	if err != nil {
		t.Fatalf("HarvestNews: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 synthetic entry", len(items))
	}
	if items[0].SchemeName != "India Science & Technology - Latest Updates" {
		t.Errorf("scheme name = %q", items[0].SchemeName)
	}
	if items[0].SourceURL != srv.URL {
		t.Errorf("source url = %q, want %q", items[0].SourceURL, srv.URL)
	}
}

func TestParsePortalPage(t *testing.T) {
	cfg := testSource("portal", "https://www.anrfonline.in/ANRF/HomePage")
	page := []byte(`<html><body>
		<a href="/ANRF/Calls">Open Calls for Proposals</a>
		<a href="/ANRF/Login">Login here</a>
		<a href="https://www.anrfonline.in/ANRF/Prime">Prime Minister Early Career Research Grant</a>
		<a href="https://example.org/grants">External grants directory</a>
	</body></html>`)

	items, err := parsePortalPage(page, cfg)
	if err != nil {
		t.Fatalf("parsePortalPage: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].SourceURL != "https://www.anrfonline.in/ANRF/Calls" {
		t.Errorf("resolved url = %q", items[0].SourceURL)
	}
}

func TestParsePortalPageFallbackEntry(t *testing.T) {
	cfg := testSource("portal", "https://www.anrfonline.in/ANRF/HomePage")
	items, err := parsePortalPage([]byte(`<html><body><script>app()</script></body></html>`), cfg)
	if err != nil {
		t.Fatalf("parsePortalPage: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 fallback entry", len(items))
	}
	if items[0].SchemeName != "ANRF Portal - Programs / Calls" {
		t.Errorf("scheme name = %q", items[0].SchemeName)
	}
}

func TestFindColumn(t *testing.T) {
	header := []string{"S.No", "Programme Title", "Funding Agency Name", "Last Date of Submission", "Web Link"}
	tests := []struct {
		name       string
		candidates []string
		want       int
	}{
		{"exact match wins", []string{"Last Date of Submission"}, 3},
		{"substring match", sheetNameColumns, 1},
		{"agency by substring", sheetAgencyColumns, 2},
		{"url by substring", sheetURLColumns, 4},
		{"no match", []string{"Budget"}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findColumn(header, tt.candidates); got != tt.want {
				t.Errorf("findColumn = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseSheetCSV(t *testing.T) {
	csvData := `S.No,Programme Title,Funding Agency,Last Date of Submission,Description,Link
1,Quantum Mission Call,DST,16.01.2026,Quantum computing proposals,https://dst.gov.in/quantum
2,,DST,01/02/2026,Row without a name,https://dst.gov.in/skip
3,Biotech Ignition Grant,BIRAC,N/A,See https://birac.nic.in/big for details,
,,,,,
`
	items, err := parseSheetCSV(strings.NewReader(csvData), "https://docs.google.com/fallback")
	if err != nil {
		t.Fatalf("parseSheetCSV: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	first := items[0]
	if first.SchemeName != "Quantum Mission Call" {
		t.Errorf("scheme name = %q", first.SchemeName)
	}
	if first.LastDateSubmission != "16.01.2026" {
		t.Errorf("last date = %q", first.LastDateSubmission)
	}
	if first.SourceURL != "https://dst.gov.in/quantum" {
		t.Errorf("source url = %q", first.SourceURL)
	}
	if !strings.Contains(first.FullTextContent, "Quantum Mission Call | DST") {
		t.Errorf("full text = %q", first.FullTextContent)
	}

	// Second kept row has an empty URL column; the first http-bearing cell
	// (the description) is used whole.
	second := items[1]
	if !strings.Contains(second.SourceURL, "birac.nic.in") {
		t.Errorf("source url = %q", second.SourceURL)
	}
}

func TestParseSheetCSVHeaderOnly(t *testing.T) {
	items, err := parseSheetCSV(strings.NewReader("Title,Agency\n"), "https://fallback")
	if err != nil {
		t.Fatalf("parseSheetCSV: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items, want 0", len(items))
	}
}

func TestHarvestSheetNotPublic(t *testing.T) {
	cfg := testSource("sheet", "")
	cfg.SheetID = "abc"
	cfg.SheetGID = "0"

	t.Run("http error status", func(t *testing.T) {
		f := &stubFetcher{err: &StatusError{Code: 403, URL: "x"}}
		_, err := HarvestSheet(context.Background(), f, cfg)
		if !errors.Is(err, ErrSheetNotPublic) {
			t.Fatalf("err = %v, want ErrSheetNotPublic", err)
		}
	})

	t.Run("html interstitial", func(t *testing.T) {
		f := &stubFetcher{doc: &FetchedDocument{
			StatusCode: 200,
			Body:       []byte(`<html><head><title>Google Sheets</title></head></html>`),
		}}
		_, err := HarvestSheet(context.Background(), f, cfg)
		if !errors.Is(err, ErrSheetNotPublic) {
			t.Fatalf("err = %v, want ErrSheetNotPublic", err)
		}
	})
}

func TestSheetCSVExportURL(t *testing.T) {
	got := SheetCSVExportURL("SHEET123", "42")
	want := "https://docs.google.com/spreadsheets/d/SHEET123/export?format=csv&gid=42"
	if got != want {
		t.Errorf("SheetCSVExportURL = %q, want %q", got, want)
	}
}

func TestHTTPFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	// The production constructor refuses loopback dials, so wire the test
	// server's client in directly.
	f := &HTTPFetcher{client: srv.Client(), userAgent: defaultUserAgent}
	_, err := f.Fetch(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", se.Code)
	}
}

func TestLoadSourcesEmbedded(t *testing.T) {
	sources, err := LoadSources()
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(sources) != 4 {
		t.Fatalf("got %d sources, want 4", len(sources))
	}
	strategies := make(map[string]bool)
	for _, sc := range sources {
		strategies[sc.Strategy] = true
		if !sc.IsEnabled() {
			t.Errorf("source %s disabled by default", sc.ID)
		}
	}
	for _, want := range []string{"announcements", "portal", "sheet", "news"} {
		if !strategies[want] {
			t.Errorf("missing strategy %q", want)
		}
	}
}
