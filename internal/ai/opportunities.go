package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/idea2impact/grantpilot/internal/harvest"
)

const opportunitiesPromptTemplate = `Generate a list of 5-7 innovative and actionable research opportunities or project ideas based on the following research areas: %s.

Return ONLY valid JSON (no markdown, no code fences) with this exact shape:
{
  "opportunities": [
    {
      "scheme_name": "string",
      "funding_agency": "string",
      "last_date_submission": "YYYY-MM-DD (prefer %s or later if you invent a date, otherwise 'N/A')",
      "description": "2-3 sentences"
    }
  ]
}
`

// GenerateOpportunities asks the model to invent funding opportunities for
// the given research areas, used when live sources come back empty. Dates
// the model fabricates are steered past minSubmissionDate (YYYY-MM-DD) so
// the active-call filter does not immediately drop them.
func (c *Client) GenerateOpportunities(ctx context.Context, areas []string, minSubmissionDate string) ([]harvest.Opportunity, string, error) {
	prompt := fmt.Sprintf(opportunitiesPromptTemplate, strings.Join(areas, ", "), minSubmissionDate)
	raw, err := c.Generate(ctx, prompt)
	if err != nil {
		return nil, "", err
	}
	raw = strings.TrimSpace(raw)
	return ParseGeneratedOpportunities(raw), raw, nil
}

type generatedOpportunity struct {
	SchemeName         string `json:"scheme_name"`
	ProgrammeName      string `json:"Programme/Scheme Name"`
	FundingAgency      string `json:"funding_agency"`
	FundingAgencyAlt   string `json:"Funding Agency"`
	LastDateSubmission string `json:"last_date_submission"`
	LastDateAlt        string `json:"Last Date of Submission"`
	Description        string `json:"description"`
	DescriptionAlt     string `json:"Description"`
}

type generatedOpportunities struct {
	Opportunities []json.RawMessage `json:"opportunities"`
}

var (
	numberedItemPattern = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)

	fallbackSchemePattern   = regexp.MustCompile(`(?im)Program(?:me)?/Scheme Name\s*[:\-]\s*(.+)$`)
	fallbackAgencyPattern   = regexp.MustCompile(`(?im)Funding Agency\s*[:\-]\s*(.+)$`)
	fallbackDeadlinePattern = regexp.MustCompile(`(?im)Last Date of Submission\s*[:\-]\s*(.+)$`)
	fallbackDescPattern     = regexp.MustCompile(`(?is)Description\s*[:\-]\s*(.+)$`)
)

// ParseGeneratedOpportunities converts a model response into opportunity
// records. JSON is tried first, tolerating code fences and surrounding
// prose; free-form numbered lists are parsed field by field as a fallback.
// The parser never fails: unparseable chunks degrade to "N/A" fields.
func ParseGeneratedOpportunities(text string) []harvest.Opportunity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if opps := parseOpportunitiesJSON(text); opps != nil {
		return opps
	}
	return parseOpportunitiesFreeform(text)
}

func parseOpportunitiesJSON(text string) []harvest.Opportunity {
	candidate := stripCodeFences(text)
	var parsed generatedOpportunities
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		obj := extractFirstJSONObject(candidate)
		if obj == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
			return nil
		}
	}
	if parsed.Opportunities == nil {
		return nil
	}

	out := []harvest.Opportunity{}
	for _, raw := range parsed.Opportunities {
		var item generatedOpportunity
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		out = append(out, harvest.Opportunity{
			SchemeName:         orNA(item.SchemeName, item.ProgrammeName),
			FundingAgency:      orNA(item.FundingAgency, item.FundingAgencyAlt),
			LastDateSubmission: orNA(item.LastDateSubmission, item.LastDateAlt),
			Description:        orNA(item.Description, item.DescriptionAlt),
			FullTextContent:    string(raw),
		})
	}
	return out
}

func parseOpportunitiesFreeform(text string) []harvest.Opportunity {
	var chunks []string
	starts := numberedItemPattern.FindAllStringIndex(text, -1)
	if len(starts) > 0 {
		for i, loc := range starts {
			end := len(text)
			if i+1 < len(starts) {
				end = starts[i+1][0]
			}
			if chunk := strings.TrimSpace(text[loc[0]:end]); chunk != "" {
				chunks = append(chunks, chunk)
			}
		}
	} else {
		for _, part := range strings.Split(text, "\n\n") {
			if chunk := strings.TrimSpace(part); chunk != "" {
				chunks = append(chunks, chunk)
			}
		}
	}

	var out []harvest.Opportunity
	for _, chunk := range chunks {
		out = append(out, harvest.Opportunity{
			SchemeName:         orNA(matchGroup(fallbackSchemePattern, chunk)),
			FundingAgency:      orNA(matchGroup(fallbackAgencyPattern, chunk)),
			LastDateSubmission: orNA(matchGroup(fallbackDeadlinePattern, chunk)),
			Description:        orNA(matchGroup(fallbackDescPattern, chunk)),
			FullTextContent:    chunk,
		})
	}
	return out
}

func matchGroup(p *regexp.Regexp, s string) string {
	if m := p.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func orNA(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return "N/A"
}

// stripCodeFences removes a leading ```json or ``` fence and a trailing
// fence. Models add them even when told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractFirstJSONObject scans for the first balanced top-level JSON
// object, ignoring braces inside strings. Returns "" when none is found.
func extractFirstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
