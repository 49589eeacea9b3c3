package harvest

import (
	"context"
	"net/http"
	"time"
)

// Opportunity is the normalized record every harvester emits. Fields that a
// source cannot fill carry "N/A" rather than the empty string so downstream
// display and extraction code never has to special-case missing values.
type Opportunity struct {
	SchemeName         string `json:"scheme_name"`
	FundingAgency      string `json:"funding_agency"`
	LastDateSubmission string `json:"last_date_submission"`
	Description        string `json:"description"`
	SourceURL          string `json:"source_url"`
	FullTextContent    string `json:"full_text_content,omitempty"`

	// DeadlineDateISO is filled by the active-call filter once
	// LastDateSubmission has been parsed to a real date (YYYY-MM-DD).
	DeadlineDateISO string `json:"deadline_date_iso,omitempty"`
}

// FetchedDocument is the raw result of retrieving one URL.
type FetchedDocument struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
	Header      http.Header
}

// Fetcher retrieves a document over the network. Harvesters that need
// custom request shaping (CSV exports, PDF downloads) depend on this
// interface so tests can point them at local servers.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
