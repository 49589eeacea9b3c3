// Package extract pulls structured fields and sections out of call
// documents and model-generated prose with ordered regex tables.
package extract

import (
	"regexp"
	"strings"
)

// fieldPattern binds one output field to its pattern. Several patterns
// carry multiple capture groups for alternative phrasings; the first group
// that matched supplies the value.
type fieldPattern struct {
	Field   string
	Pattern *regexp.Regexp
}

// The table is ordered so extraction output is deterministic. Literal
// phrases (ICMR boilerplate, portal instructions) are matched verbatim
// because call documents from the same agency reuse them across years.
var fieldPatterns = []fieldPattern{
	{"Funding Agency", regexp.MustCompile(`(?i)(Indian Council of Medical Research \(ICMR\)|ICMR)`)},
	{"Scheme Type", regexp.MustCompile(`(?i)Scheme Type[s]?:\s*(.*?)(?:\n|$)`)},
	{"Duration", regexp.MustCompile(`(?i)(?:(?:maximum|minimum|flexible) duration.*?)((?:\d+\s*years)|flexible duration)`)},
	{"Budget", regexp.MustCompile(`(?i)(up to \d+\s*Cr each|funding will be linked to deliverables)`)},
	{"Thrust Areas", regexp.MustCompile(`(?i)(novel, futuristic ideas, new knowledge generation, discovery/ development of breakthrough health technologies)`)},
	{"Eligibility", regexp.MustCompile(`(?i)Eligibility[:\s]*([\s\S]*?)(?:\n\n|Application:|Selection|Timelines|\z)`)},
	{"Submission Format", regexp.MustCompile(`(?i)(Proposal must be submitted only through e-PMS portal of ICMR)`)},
	{"Last Date of Submission", regexp.MustCompile(`(?i)(?:Last Date of Submission|Call is open until|Submission Deadline)[:\s]*(.*?)(?:\n|$)|(Rolling call and received proposals will be evaluated every month\.)`)},
	{"Scheme or Call Name", regexp.MustCompile(`(?i)(Call for R&D project Proposals|Scheme or Call Name[:\s]*(.*?)(?:\n|$))`)},
	{"Scope or Objective of the Programme", regexp.MustCompile(`(?i)(VISHLESHAN I-HUB FOUNDATION, IIT Patna is the nodal centre and a Technology Innovation Hub \(TIH\) for technology development and activities in the core areas of 'Speech, Video, and Text Analytics Technologies' in synergy with 'wireless, sensor, and IoT technologies, material sciences etc\. under National Mission on Interdisciplinary Cyber Physical Systems \(NM-ICPS\)|Problem Statements[\s\S]*?(?:Review:|Multimedia Networking|Multimedia Traffic Management|Image/Video Security and Privacy|Real-time image and video processing|Robust IT connectivity and digitalization for smart cities|Procedure:|We request applicants from the earlier Proposals to align their proposals with the above areas or the Thrust areas given below and resubmit\.|For any query|Terms and Conditions))`)},
}

// FieldNames lists every field Fields produces, in extraction order.
func FieldNames() []string {
	names := make([]string, len(fieldPatterns))
	for i, fp := range fieldPatterns {
		names[i] = fp.Field
	}
	return names
}

// Fields extracts the standard proposal overview fields from call text.
// Every field is present in the result; fields whose pattern found nothing
// hold "N/A".
func Fields(text string) map[string]string {
	fields := make(map[string]string, len(fieldPatterns))
	for _, fp := range fieldPatterns {
		fields[fp.Field] = "N/A"
		m := fp.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := firstNonEmptyGroup(m); v != "" {
			fields[fp.Field] = v
		}
	}
	return fields
}

// firstNonEmptyGroup returns the first capture group that matched,
// trimmed. Unmatched groups surface as empty strings, so a group that
// matched nothing (a bare "Scheme Type:" line) falls through to "N/A".
func firstNonEmptyGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return strings.TrimSpace(g)
		}
	}
	return ""
}
