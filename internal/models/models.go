package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is a funding opportunity persisted after a discovery run or
// an AI brainstorm. Nullable text columns map to pointers.
type Opportunity struct {
	ID                 uuid.UUID `json:"id"`
	SchemeName         string    `json:"scheme_name"`
	FundingAgency      string    `json:"funding_agency"`
	LastDateSubmission string    `json:"last_date_submission"`
	Description        string    `json:"description"`
	SourceURL          *string   `json:"source_url,omitempty"`
	DeadlineDateISO    *string   `json:"deadline_date_iso,omitempty"`
	ExtractedKeywords  *string   `json:"extracted_keywords,omitempty"`
	FullTextContent    *string   `json:"full_text_content,omitempty"`
	IsProcessed        bool      `json:"is_processed"`
	Embedding          []float32 `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}

// Proposal is one saved proposal draft together with the call fields and
// analysis artifacts it was generated from.
type Proposal struct {
	ID                 uuid.UUID `json:"id"`
	FundingAgency      string    `json:"funding_agency"`
	SchemeType         string    `json:"scheme_type"`
	Duration           string    `json:"duration"`
	Budget             string    `json:"budget"`
	ThrustAreas        string    `json:"thrust_areas"`
	Eligibility        string    `json:"eligibility"`
	SubmissionFormat   string    `json:"submission_format"`
	ResearchBackground string    `json:"user_research_background"`
	TemplateSections   string    `json:"template_sections"`
	FullProposal       string    `json:"full_proposal_content"`
	BrainstormReport   *string   `json:"brainstorm_analysis_report,omitempty"`
	AlignmentScore     *float64  `json:"alignment_score,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Profile is a named research background reused across proposals. Names
// are unique; saving under an existing name replaces the background.
type Profile struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"profile_name"`
	ResearchBackground string    `json:"research_background"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
