package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/idea2impact/grantpilot/internal/ai"
	"github.com/idea2impact/grantpilot/internal/extract"
	"github.com/idea2impact/grantpilot/internal/models"
)

// resolveResearchBackground prefers an inline background, falling back to a
// saved profile looked up by name.
func (s *Server) resolveResearchBackground(ctx context.Context, background, profileName string) (string, error) {
	if strings.TrimSpace(background) != "" {
		return background, nil
	}
	if profileName == "" {
		return "", fmt.Errorf("research_background or profile_name is required")
	}
	profiles, err := s.Store.ListProfiles(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range profiles {
		if p.Name == profileName {
			return p.ResearchBackground, nil
		}
	}
	return "", fmt.Errorf("profile %q not found", profileName)
}

type draftProposalRequest struct {
	Call               ai.CallDetails `json:"call"`
	ResearchBackground string         `json:"research_background"`
	ProfileName        string         `json:"profile_name"`
	AlignmentInsights  string         `json:"alignment_insights"`
	TemplateSections   string         `json:"template_sections"`
	Save               bool           `json:"save"`
}

func (s *Server) handleDraftProposal(c echo.Context) error {
	var req draftProposalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	background, err := s.resolveResearchBackground(c.Request().Context(), req.ResearchBackground, req.ProfileName)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	draft, err := s.AI.DraftProposal(c.Request().Context(), req.Call, background, req.AlignmentInsights, req.TemplateSections)
	if err != nil {
		return s.aiErrorResponse(c, err)
	}

	resp := map[string]interface{}{
		"proposal": draft,
		"sections": extract.SplitProposalIntoSections(draft),
	}

	if req.Save {
		saved, err := s.Store.SaveProposal(c.Request().Context(), models.Proposal{
			FundingAgency:      req.Call.FundingAgency,
			SchemeType:         req.Call.SchemeType,
			Duration:           req.Call.Duration,
			Budget:             req.Call.Budget,
			ThrustAreas:        req.Call.ThrustAreas,
			Eligibility:        req.Call.Eligibility,
			SubmissionFormat:   req.Call.SubmissionFormat,
			ResearchBackground: background,
			TemplateSections:   req.TemplateSections,
			FullProposal:       draft,
		})
		if err != nil {
			c.Logger().Errorf("failed to save proposal: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save proposal"})
		}
		resp["saved"] = saved
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSaveProposal(c echo.Context) error {
	var p models.Proposal
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(p.FullProposal) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "full_proposal_content is required"})
	}

	saved, err := s.Store.SaveProposal(c.Request().Context(), p)
	if err != nil {
		c.Logger().Errorf("failed to save proposal: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save proposal"})
	}
	return c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleListProposals(c echo.Context) error {
	limit := 50
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	proposals, err := s.Store.ListProposals(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	return c.JSON(http.StatusOK, proposals)
}

func (s *Server) handleGetProposal(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid proposal ID"})
	}
	p, err := s.Store.GetProposal(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProposal(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid proposal ID"})
	}
	if err := s.Store.DeleteProposal(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

type alignmentRequest struct {
	ResearchBackground string `json:"research_background"`
	ProfileName        string `json:"profile_name"`
	OpportunityID      string `json:"opportunity_id"`
	SchemeName         string `json:"scheme_name"`
	FundingAgency      string `json:"funding_agency"`
	Description        string `json:"description"`
}

func (s *Server) handleAnalyzeAlignment(c echo.Context) error {
	var req alignmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	background, err := s.resolveResearchBackground(c.Request().Context(), req.ResearchBackground, req.ProfileName)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	scheme, agency, description := req.SchemeName, req.FundingAgency, req.Description
	if req.OpportunityID != "" {
		if _, err := uuid.Parse(req.OpportunityID); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
		}
		opp, err := s.Store.GetOpportunity(c.Request().Context(), req.OpportunityID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Opportunity not found"})
		}
		scheme = opp.SchemeName
		agency = opp.FundingAgency
		description = opp.Description
		if opp.FullTextContent != nil && *opp.FullTextContent != "" {
			description = *opp.FullTextContent
		}
	}
	if strings.TrimSpace(scheme) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "scheme_name or opportunity_id is required"})
	}

	report, err := s.AI.AnalyzeAlignment(c.Request().Context(), background, scheme, agency, description)
	if err != nil {
		return s.aiErrorResponse(c, err)
	}

	resp := map[string]interface{}{
		"report":   report,
		"insights": extract.ParseAlignmentInsights(report),
	}
	if score, ok := extract.AlignmentScore(report); ok {
		resp["score"] = score
	}
	return c.JSON(http.StatusOK, resp)
}

type brainstormRequest struct {
	Call               ai.CallDetails `json:"call"`
	ResearchBackground string         `json:"research_background"`
	ProfileName        string         `json:"profile_name"`
	Proposal           string         `json:"proposal"`
	SectionTitle       string         `json:"section_title"`
	SectionContent     string         `json:"section_content"`
}

func (s *Server) handleBrainstorm(c echo.Context) error {
	var req brainstormRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	background, err := s.resolveResearchBackground(c.Request().Context(), req.ResearchBackground, req.ProfileName)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	var report string
	if req.SectionTitle != "" {
		report, err = s.AI.BrainstormSection(c.Request().Context(), req.Call, background, req.SectionTitle, req.SectionContent)
	} else {
		if strings.TrimSpace(req.Proposal) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "proposal or section_title is required"})
		}
		sections := extract.SplitProposalIntoSections(req.Proposal)
		titles := make([]string, 0, len(sections))
		for title := range sections {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		report, err = s.AI.BrainstormProposal(c.Request().Context(), req.Call, background, req.Proposal, titles)
	}
	if err != nil {
		return s.aiErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"report":   report,
		"analysis": extract.ParseBrainstormReport(report),
	})
}

type improveSectionRequest struct {
	Call               ai.CallDetails `json:"call"`
	ResearchBackground string         `json:"research_background"`
	ProfileName        string         `json:"profile_name"`
	SectionTitle       string         `json:"section_title"`
	SectionContent     string         `json:"section_content"`
	BrainstormReport   string         `json:"brainstorm_report"`
	Level              string         `json:"level"`
}

func (s *Server) handleImproveSection(c echo.Context) error {
	var req improveSectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.SectionTitle) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "section_title is required"})
	}

	level := ai.ImprovementLevel(req.Level)
	switch level {
	case "":
		level = ai.ImproveModerate
	case ai.ImproveConservative, ai.ImproveModerate, ai.ImproveAggressive:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "level must be conservative, moderate or aggressive"})
	}

	background, err := s.resolveResearchBackground(c.Request().Context(), req.ResearchBackground, req.ProfileName)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	improved, err := s.AI.ImproveSection(c.Request().Context(), req.Call, background, req.SectionTitle, req.SectionContent, req.BrainstormReport, level)
	if err != nil {
		return s.aiErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"section_title": req.SectionTitle,
		"content":       improved,
		"level":         level,
	})
}

type saveProfileRequest struct {
	ProfileName        string `json:"profile_name"`
	ResearchBackground string `json:"research_background"`
}

func (s *Server) handleSaveProfile(c echo.Context) error {
	var req saveProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.ProfileName) == "" || strings.TrimSpace(req.ResearchBackground) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "profile_name and research_background are required"})
	}

	profile, err := s.Store.SaveProfile(c.Request().Context(), req.ProfileName, req.ResearchBackground)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleListProfiles(c echo.Context) error {
	profiles, err := s.Store.ListProfiles(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	return c.JSON(http.StatusOK, profiles)
}

func (s *Server) handleDeleteProfile(c echo.Context) error {
	name := c.Param("name")
	if err := s.Store.DeleteProfile(c.Request().Context(), name); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.NoContent(http.StatusNoContent)
}
