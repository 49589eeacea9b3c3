package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Matches numbered headings ("2. Background", "2.1. Methods") in group 2
// and markdown headings ("## Background") in group 3.
var sectionTitlePattern = regexp.MustCompile(`(?m)^\s*(\d+\.)+\s*([^\n]+)|^(#+\s*[^\n]+)`)

var alignmentScorePattern = regexp.MustCompile(`Alignment Score: (\d+\.?\d*)/10`)

var (
	strategicRecsPattern  = regexp.MustCompile(`(?is)Strategic\s*Recommendations:\s*(.*?)(?:\n\d+\.?\s*Keywords/Themes:|Alignment Score:|\z)`)
	keywordsThemesPattern = regexp.MustCompile(`(?is)Keywords/Themes:\s*(.*?)(?:\n\d+\.?\s*Alignment Score:|\z)`)
)

// SplitProposalIntoSections divides a generated proposal draft by its
// headings. Both numbered and markdown headings delimit sections; each
// section's content runs to the next heading or the end of the draft.
// Later duplicates of a title overwrite earlier ones.
func SplitProposalIntoSections(draft string) map[string]string {
	sections := make(map[string]string)
	matches := sectionTitlePattern.FindAllStringSubmatchIndex(draft, -1)

	for i, m := range matches {
		var title string
		if m[4] >= 0 { // numbered heading, title in group 2
			title = strings.TrimSpace(draft[m[4]:m[5]])
		} else if m[6] >= 0 { // markdown heading in group 3
			title = strings.TrimSpace(strings.TrimLeft(draft[m[6]:m[7]], "# "))
		} else {
			continue
		}

		start := m[1]
		end := len(draft)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections[title] = strings.TrimSpace(draft[start:end])
	}
	return sections
}

// BrainstormReport holds the three parts of a proposal review.
type BrainstormReport struct {
	Strengths       string `json:"strengths"`
	Weaknesses      string `json:"weaknesses"`
	Recommendations string `json:"recommendations"`
}

// ParseBrainstormReport splits a review into its bold-marked sections.
// Lines accumulate under the most recent marker; text before any marker
// is dropped.
func ParseBrainstormReport(report string) BrainstormReport {
	markers := []struct {
		prefix  string
		section *strings.Builder
	}{
		{"**Strengths**", &strings.Builder{}},
		{"**Weaknesses**", &strings.Builder{}},
		{"**Recommendations**", &strings.Builder{}},
	}

	var current *strings.Builder
	for _, line := range strings.Split(report, "\n") {
		stripped := strings.TrimSpace(line)
		matched := false
		for _, m := range markers {
			if strings.HasPrefix(stripped, m.prefix) {
				current = m.section
				if rest := strings.TrimSpace(stripped[len(m.prefix):]); rest != "" {
					current.WriteString(rest)
					current.WriteByte('\n')
				} else {
					current.WriteByte('\n')
				}
				matched = true
				break
			}
		}
		if !matched && current != nil && stripped != "" {
			current.WriteString(stripped)
			current.WriteByte('\n')
		}
	}

	return BrainstormReport{
		Strengths:       strings.TrimSpace(markers[0].section.String()),
		Weaknesses:      strings.TrimSpace(markers[1].section.String()),
		Recommendations: strings.TrimSpace(markers[2].section.String()),
	}
}

// AlignmentScore pulls the numeric score out of an alignment analysis.
// The second result is false when the report carries no score line or the
// number fails to parse.
func AlignmentScore(report string) (float64, bool) {
	m := alignmentScorePattern.FindStringSubmatch(report)
	if m == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// AlignmentInsights are the reusable parts of an alignment analysis that
// feed back into proposal drafting.
type AlignmentInsights struct {
	StrategicRecommendations string `json:"strategic_recommendations"`
	KeywordsThemes           string `json:"keywords_themes"`
}

// ParseAlignmentInsights extracts strategic recommendations and the
// keywords/themes list from an alignment analysis.
func ParseAlignmentInsights(report string) AlignmentInsights {
	var out AlignmentInsights
	if m := strategicRecsPattern.FindStringSubmatch(report); m != nil {
		out.StrategicRecommendations = strings.TrimSpace(m[1])
	}
	if m := keywordsThemesPattern.FindStringSubmatch(report); m != nil {
		out.KeywordsThemes = strings.TrimSpace(m[1])
	}
	return out
}
