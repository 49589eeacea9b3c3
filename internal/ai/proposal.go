package ai

import (
	"context"
	"fmt"
	"strings"
)

// CallDetails are the extracted funding call fields that feed every
// drafting and review prompt.
type CallDetails struct {
	FundingAgency    string `json:"funding_agency"`
	SchemeType       string `json:"scheme_type"`
	Duration         string `json:"duration"`
	Budget           string `json:"budget"`
	ThrustAreas      string `json:"thrust_areas"`
	Eligibility      string `json:"eligibility"`
	SubmissionFormat string `json:"submission_format"`
}

// ImprovementLevel selects how far section improvement may stray from the
// original text.
type ImprovementLevel string

const (
	ImproveConservative ImprovementLevel = "conservative"
	ImproveModerate     ImprovementLevel = "moderate"
	ImproveAggressive   ImprovementLevel = "aggressive"
)

func (l ImprovementLevel) instruction() string {
	switch l {
	case ImproveConservative:
		return "Make minimal, targeted improvements. Keep the original structure and most content. Only address critical weaknesses."
	case ImproveAggressive:
		return "Significantly rewrite sections to maximize impact. Address all weaknesses comprehensively and elevate the entire proposal quality."
	default:
		return "Make balanced improvements addressing all identified weaknesses while preserving strong elements. Enhance clarity and impact."
	}
}

const maxAlignmentPromptLen = 25000

// DraftProposal generates a full proposal draft for the call, shaped by the
// template sections (one title per line) and any alignment insights carried
// over from a previous analysis.
func (c *Client) DraftProposal(ctx context.Context, call CallDetails, researchProfile, alignmentInsights, templateSections string) (string, error) {
	prompt := fmt.Sprintf(`Generate a comprehensive research proposal draft based on the following information. Structure the proposal according to the provided template sections. Incorporate insights from the alignment report and the user's research background.

---
Funding Call Details:
Funding Agency: %s
Scheme Type: %s
Duration: %s
Budget (suggested if available): %s
Thrust Areas: %s
Eligibility: %s
Submission Format: %s

---
User Research Background:
%s

---
Alignment Report & Ideas:
%s

---
Proposal Template Sections (write content for each):
%s

---
Instructions for AI:
- Write a detailed and persuasive proposal.
- Ensure logical flow and coherence between sections.
- Use academic and professional language.
- Highlight novelty, feasibility, and potential impact.
- For sections like 'Budget' or 'Timeline', provide realistic placeholders or general statements if specific figures are not derivable from the input, or suggest what should be included.
- If a section like 'Bibliography' is listed, just put a placeholder like "[References/Bibliography to be added]"
- Ensure the content directly addresses the funding call's requirements and aligns with the user's background.
- The full proposal should be at least 1500 words, but ideally around 2000-3000 words for a substantial draft.
`,
		orNA(call.FundingAgency), orNA(call.SchemeType), orNA(call.Duration), orNA(call.Budget),
		orNA(call.ThrustAreas), orNA(call.Eligibility), orNA(call.SubmissionFormat),
		c.SummarizeForPrompt(ctx, researchProfile, 4000), alignmentInsights, templateSections)

	return c.Generate(ctx, prompt)
}

// AnalyzeAlignment produces a critical alignment report between a research
// profile and one funding opportunity. The structured output carries an
// "Alignment Score: X.X/10" line that extract.AlignmentScore reads back.
func (c *Client) AnalyzeAlignment(ctx context.Context, researchProfile, schemeName, fundingAgency, description string) (string, error) {
	prompt := fmt.Sprintf(`As an expert grant evaluator, critically analyze the alignment between the provided Research Profile and Funding Opportunity.

Instructions:
1. Summarize the core expertise and contributions of the research profile (based only on the provided information, assume publications are implicitly part of 'Research Profile' text if not explicitly separated).
2. Map this expertise to the funding call's stated priorities, explicitly distinguishing between:
   - Direct alignment (clear fit with call objectives)
   - Indirect or speculative alignment (possible applications if reframed)
   - Non-alignment (areas with no overlap)
3. Highlight major gaps that reduce alignment (e.g., domain mismatch, lack of collaborations, lack of translational/clinical orientation).
4. Suggest strategies to increase alignment (e.g., reframing expertise, building collaborations, translational roadmaps).
5. Assign a critical **Alignment Score (0-10)**, where:
   - 0-3 = Very weak/no alignment
   - 4-6 = Moderate alignment (requires strong reframing)
   - 7-8 = Strong alignment (with clear fit and collaborations)
   - 9-10 = Excellent alignment (highly competitive)
6. Maintain a professional, analytical tone.

--- Output Structure ---
Research Profile Summary:
[Summary of core expertise and contributions]

Alignment with Call Priorities:
- Direct Alignment: [Points of direct fit]
- Indirect/Speculative Alignment: [Possible applications if reframed]
- Non-Alignment: [Areas with no overlap]

Key Gaps:
[Major gaps reducing alignment]

Strategic Recommendations:
[Strategies to increase alignment]

Alignment Score: X.X/10
---

Research Profile:
%s

Funding Opportunity:
Scheme Name: %s
Funding Agency: %s
Description: %s
`, researchProfile, schemeName, fundingAgency, description)

	if r := []rune(prompt); len(r) > maxAlignmentPromptLen {
		prompt = string(r[:maxAlignmentPromptLen])
	}
	return c.Generate(ctx, prompt)
}

// BrainstormProposal reviews a whole draft against the call in one pass,
// emitting a per-section report with Strengths, Weaknesses and
// Recommendations blocks. Profile and draft are pre-summarized by the
// caller when long.
func (c *Client) BrainstormProposal(ctx context.Context, call CallDetails, researchProfile, proposalDraft string, sectionTitles []string) (string, error) {
	var bullets strings.Builder
	for _, t := range sectionTitles {
		bullets.WriteString("- ")
		bullets.WriteString(t)
		bullets.WriteByte('\n')
	}

	prompt := fmt.Sprintf(`You are a critical grant evaluator. Analyze the following research proposal draft against the funding call and researcher profile.

--- Researcher Profile ---
%s

--- Funding Call Details ---
Funding Agency: %s
Scheme Type: %s
Thrust Areas: %s
Eligibility: %s

--- Proposal Draft (summarized) ---
%s

--- Template Sections ---
%s

For EACH template section, output the following structure exactly:
### [Section Title]
**Strengths**
- ...
- ...
**Weaknesses**
- ...
- ...
**Recommendations**
- ...
- ...

Notes:
- If the section content is missing or vague, state that clearly and recommend precise content to add.
- Be specific and actionable. Avoid generic advice.
`, c.SummarizeForPrompt(ctx, researchProfile, 4000), orNA(call.FundingAgency), orNA(call.SchemeType),
		orNA(call.ThrustAreas), orNA(call.Eligibility), c.SummarizeForPrompt(ctx, proposalDraft, 6000), bullets.String())

	return c.Generate(ctx, prompt)
}

// BrainstormSection reviews one proposal section in depth.
func (c *Client) BrainstormSection(ctx context.Context, call CallDetails, researchProfile, sectionTitle, sectionContent string) (string, error) {
	prompt := fmt.Sprintf(`--- Researcher Profile ---
%s

--- Funding Call Details ---
Funding Agency: %s
Scheme Type: %s
Thrust Areas: %s
Eligibility: %s

--- Specific Proposal Section for Analysis ---
Section Title: %s
Section Content:
%s

--- Instructions for AI ---
For the "%s" section, provide a **highly critical and actionable** analysis. Focus on the following:
**%s**
**Strengths**
- 2-3 strengths linked to call priorities or researcher's contributions
**Weaknesses**
- 2-3 critical weaknesses or gaps
**Recommendations**
- 2-3 specific actions to fix weaknesses and improve competitiveness
If the section content is empty or vague, say so and list exact content to add.
`, researchProfile, orNA(call.FundingAgency), orNA(call.SchemeType), orNA(call.ThrustAreas), orNA(call.Eligibility),
		sectionTitle, sectionContent, sectionTitle, sectionTitle)

	return c.Generate(ctx, prompt)
}

// ImproveSection rewrites one section using the brainstorm report as
// feedback, at the requested improvement level.
func (c *Client) ImproveSection(ctx context.Context, call CallDetails, researchProfile, sectionTitle, sectionContent, brainstormReport string, level ImprovementLevel) (string, error) {
	original := strings.TrimSpace(sectionContent)
	if original == "" {
		original = "[SECTION IS EMPTY OR MISSING]"
	}

	prompt := fmt.Sprintf(`You are an expert grant proposal writer. Your task is to improve the following proposal section based on brainstorming feedback.

CONTEXT
Funding Agency: %s
Scheme Type: %s
Thrust Areas: %s
Eligibility: %s

Researcher Profile (Summarized):
%s

SECTION TO IMPROVE: "%s"
ORIGINAL CONTENT:
%s

BRAINSTORMING FEEDBACK (Full Report):
%s

IMPROVEMENT INSTRUCTIONS
Improvement Level: %s

Your task:
1. Carefully review the original "%s" section
2. Identify relevant weaknesses and recommendations from the brainstorming report for THIS section
3. Generate an IMPROVED version that:
   - Addresses all identified weaknesses
   - Implements the recommendations
   - Maintains alignment with funding agency priorities
   - Preserves the researcher's voice and authentic expertise
   - Uses clear, compelling, professional language
   - Includes specific details, metrics, and evidence where possible

CRITICAL RULES:
- Write ONLY the improved section content (no meta-commentary)
- Do NOT include section headers or labels
- Do NOT write "Here is the improved section" or similar phrases
- If the original section was empty, create comprehensive content based on recommendations
- Maintain appropriate length for this section type
- Ensure coherence with other proposal sections

OUTPUT: Write the improved section content directly below:
`, orNA(call.FundingAgency), orNA(call.SchemeType), orNA(call.ThrustAreas), orNA(call.Eligibility),
		researchProfile, sectionTitle, original, brainstormReport, level.instruction(), sectionTitle)

	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
