package ai

import (
	"strings"
	"testing"
)

func TestParseGeneratedOpportunitiesJSON(t *testing.T) {
	raw := `{
  "opportunities": [
    {"scheme_name": "Quantum Sensing Call", "funding_agency": "DST", "last_date_submission": "2026-03-01", "description": "Build quantum sensors."},
    {"Programme/Scheme Name": "Rural Health Grant", "Funding Agency": "ICMR", "Last Date of Submission": "N/A", "Description": "Community health pilots."}
  ]
}`
	opps := ParseGeneratedOpportunities(raw)
	if len(opps) != 2 {
		t.Fatalf("got %d opportunities, want 2", len(opps))
	}
	if opps[0].SchemeName != "Quantum Sensing Call" || opps[0].LastDateSubmission != "2026-03-01" {
		t.Errorf("first = %+v", opps[0])
	}
	if opps[1].SchemeName != "Rural Health Grant" || opps[1].FundingAgency != "ICMR" {
		t.Errorf("alternate key names not honored: %+v", opps[1])
	}
	if !strings.Contains(opps[0].FullTextContent, "quantum sensors") {
		t.Errorf("full text should carry the raw item: %q", opps[0].FullTextContent)
	}
}

func TestParseGeneratedOpportunitiesFencedJSON(t *testing.T) {
	raw := "```json\n{\"opportunities\": [{\"scheme_name\": \"AI Safety Grant\", \"funding_agency\": \"ANRF\", \"last_date_submission\": \"2026-06-30\", \"description\": \"Safety research.\"}]}\n```"
	opps := ParseGeneratedOpportunities(raw)
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(opps))
	}
	if opps[0].SchemeName != "AI Safety Grant" {
		t.Errorf("scheme = %q", opps[0].SchemeName)
	}
}

func TestParseGeneratedOpportunitiesJSONWithProse(t *testing.T) {
	raw := `Here are some ideas for you:
{"opportunities": [{"scheme_name": "Biotech Call", "funding_agency": "BIRAC", "last_date_submission": "N/A", "description": "Biotech."}]}
Hope this helps!`
	opps := ParseGeneratedOpportunities(raw)
	if len(opps) != 1 || opps[0].SchemeName != "Biotech Call" {
		t.Fatalf("got %+v", opps)
	}
}

func TestParseGeneratedOpportunitiesNumberedFallback(t *testing.T) {
	raw := `1. Programme/Scheme Name: Smart Grid Research
Funding Agency: Ministry of Power
Last Date of Submission: 2026-02-15
Description: Modernize distribution networks.

2. Programme/Scheme Name: Ocean Monitoring Initiative
Funding Agency: MoES
Last Date of Submission: N/A
Description: Coastal sensor arrays.`

	opps := ParseGeneratedOpportunities(raw)
	if len(opps) != 2 {
		t.Fatalf("got %d opportunities, want 2", len(opps))
	}
	if opps[0].SchemeName != "Smart Grid Research" {
		t.Errorf("first scheme = %q", opps[0].SchemeName)
	}
	if opps[1].FundingAgency != "MoES" {
		t.Errorf("second agency = %q", opps[1].FundingAgency)
	}
	if !strings.HasPrefix(opps[0].FullTextContent, "1.") {
		t.Errorf("full text should keep the chunk: %q", opps[0].FullTextContent)
	}
}

func TestParseGeneratedOpportunitiesBlankLineFallback(t *testing.T) {
	raw := "Programme/Scheme Name: Solo Grant\nFunding Agency: DBT\n\nSome unrelated trailing prose."
	opps := ParseGeneratedOpportunities(raw)
	if len(opps) != 2 {
		t.Fatalf("got %d chunks, want 2", len(opps))
	}
	if opps[0].SchemeName != "Solo Grant" {
		t.Errorf("scheme = %q", opps[0].SchemeName)
	}
	if opps[1].SchemeName != "N/A" {
		t.Errorf("prose chunk scheme = %q, want N/A", opps[1].SchemeName)
	}
}

func TestParseGeneratedOpportunitiesEmpty(t *testing.T) {
	if got := ParseGeneratedOpportunities("  \n "); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`},
		{"nested", `x {"a": {"b": 2}} y`, `{"a": {"b": 2}}`},
		{"brace in string", `{"a": "}"}`, `{"a": "}"}`},
		{"escaped quote", `{"a": "\"}"}`, `{"a": "\"}"}`},
		{"unbalanced", `{"a": 1`, ""},
		{"no object", "plain text", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractFirstJSONObject(tt.input); got != tt.want {
				t.Errorf("extractFirstJSONObject(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{"rate", "api status 429: Rate limit reached", true},
		{"quota", "You exceeded your current quota", true},
		{"limit", "token limit exceeded", true},
		{"other", "connection reset by peer", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &testError{tt.msg}
			if got := isRateLimitError(err); got != tt.want {
				t.Errorf("isRateLimitError(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
	if isRateLimitError(nil) {
		t.Error("nil error should not be a rate limit")
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestImprovementLevelInstruction(t *testing.T) {
	if !strings.Contains(ImproveConservative.instruction(), "minimal") {
		t.Error("conservative instruction wrong")
	}
	if !strings.Contains(ImproveAggressive.instruction(), "rewrite") {
		t.Error("aggressive instruction wrong")
	}
	if !strings.Contains(ImprovementLevel("unknown").instruction(), "balanced") {
		t.Error("unknown level should default to moderate")
	}
}
