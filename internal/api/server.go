package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/idea2impact/grantpilot/internal/ai"
	"github.com/idea2impact/grantpilot/internal/auth"
	"github.com/idea2impact/grantpilot/internal/db"
	"github.com/idea2impact/grantpilot/internal/extract"
	"github.com/idea2impact/grantpilot/internal/harvest"
	"github.com/idea2impact/grantpilot/internal/models"
	"github.com/idea2impact/grantpilot/internal/pipeline"
	"github.com/idea2impact/grantpilot/internal/taxonomy"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Echo        *echo.Echo
	DB          *pgxpool.Pool
	AI          *ai.Client
	Pipeline    *pipeline.Pipeline
	Taxonomy    taxonomy.Taxonomy

	sanitizer *bluemonday.Policy
}

func NewServer(pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	sources, err := harvest.LoadSources()
	if err != nil {
		log.Printf("failed to load harvest sources: %v", err)
	}
	tax, err := taxonomy.Load()
	if err != nil {
		log.Printf("failed to load research taxonomy: %v", err)
	}

	fetcher := harvest.NewHTTPFetcher(20 * time.Second)

	s := &Server{
		DB:          pool,
		Store:       db.NewStore(pool),
		AuthService: auth.NewService(pool),
		Echo:        e,
		AI:          ai.NewClientFromEnv(),
		Pipeline:    pipeline.New(fetcher, sources, nil),
		Taxonomy:    tax,
		sanitizer:   bluemonday.StrictPolicy(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")

	// Discovery and opportunity store
	api.POST("/discover", s.handleDiscover)
	api.GET("/opportunities", s.handleListOpportunities)
	api.POST("/opportunities", s.handleSaveOpportunity)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.PATCH("/opportunities/:id/processed", s.handleMarkProcessed)
	api.DELETE("/opportunities/:id", s.handleDeleteOpportunity)
	api.GET("/sources", s.handleGetSources)
	api.GET("/stats", s.handleGetStats)
	api.GET("/taxonomy", s.handleGetTaxonomy)

	// Call-text field extraction
	api.POST("/extract", s.handleExtractFields)

	// AI-backed opportunity brainstorming
	api.POST("/ai/opportunities", s.handleGenerateOpportunities)

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected Routes (proposal workbench)
	protected := api.Group("")
	protected.Use(auth.Middleware)
	protected.GET("/auth/me", s.handleMe)
	protected.POST("/proposals/draft", s.handleDraftProposal)
	protected.POST("/proposals", s.handleSaveProposal)
	protected.GET("/proposals", s.handleListProposals)
	protected.GET("/proposals/:id", s.handleGetProposal)
	protected.DELETE("/proposals/:id", s.handleDeleteProposal)
	protected.POST("/alignment", s.handleAnalyzeAlignment)
	protected.POST("/brainstorm", s.handleBrainstorm)
	protected.POST("/improve", s.handleImproveSection)
	protected.PUT("/profiles", s.handleSaveProfile)
	protected.GET("/profiles", s.handleListProfiles)
	protected.DELETE("/profiles/:name", s.handleDeleteProfile)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMe(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	return c.JSON(http.StatusOK, map[string]string{"user_id": userID.String()})
}

type discoverRequest struct {
	Keywords          []string `json:"keywords"`
	TopK              int      `json:"top_k"`
	StrictKeywords    bool     `json:"strict_keywords"`
	SkipEnrichment    bool     `json:"skip_enrichment"`
	MaxDeadlineChecks int      `json:"max_deadline_checks"`
	ActiveOnly        bool     `json:"active_only"`
	IncludeNoDeadline *bool    `json:"include_no_deadline"`
	Persist           bool     `json:"persist"`
}

func (s *Server) handleDiscover(c echo.Context) error {
	var req discoverRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	result, err := s.Pipeline.Discover(c.Request().Context(), pipeline.DiscoverOptions{
		Keywords:          req.Keywords,
		TopK:              req.TopK,
		StrictKeywords:    req.StrictKeywords,
		SkipEnrichment:    req.SkipEnrichment,
		MaxDeadlineChecks: req.MaxDeadlineChecks,
		ActiveOnly:        req.ActiveOnly,
		IncludeNoDeadline: req.IncludeNoDeadline,
	})
	if err != nil {
		// Every source failed. Fall back to AI-generated opportunities when
		// keywords give the model something to work with.
		if len(req.Keywords) > 0 {
			opps, raw, genErr := s.AI.GenerateOpportunities(c.Request().Context(), req.Keywords, time.Now().Format("2006-01-02"))
			if genErr == nil {
				saved := 0
				if req.Persist {
					saved = s.persistOpportunities(c.Request().Context(), c, opps, strings.Join(req.Keywords, ", "))
				}
				return c.JSON(http.StatusOK, map[string]interface{}{
					"opportunities": opps,
					"raw":           raw,
					"saved":         saved,
					"fallback":      "ai",
					"harvest_error": err.Error(),
				})
			}
			c.Logger().Errorf("AI fallback failed: %v", genErr)
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	saved := 0
	if req.Persist {
		saved = s.persistOpportunities(c.Request().Context(), c, result.Opportunities, strings.Join(req.Keywords, ", "))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"result": result,
		"saved":  saved,
	})
}

// persistOpportunities sanitizes and stores harvested opportunities,
// attaching an embedding when the AI client is configured. Failures are
// logged per row and do not abort the batch.
func (s *Server) persistOpportunities(ctx context.Context, c echo.Context, opps []harvest.Opportunity, keywords string) int {
	saved := 0
	for _, o := range opps {
		m := models.Opportunity{
			SchemeName:         s.sanitizer.Sanitize(o.SchemeName),
			FundingAgency:      s.sanitizer.Sanitize(o.FundingAgency),
			LastDateSubmission: s.sanitizer.Sanitize(o.LastDateSubmission),
			Description:        s.sanitizer.Sanitize(o.Description),
		}
		if o.SourceURL != "" {
			url := o.SourceURL
			m.SourceURL = &url
		}
		if o.DeadlineDateISO != "" {
			iso := o.DeadlineDateISO
			m.DeadlineDateISO = &iso
		}
		if o.FullTextContent != "" {
			full := s.sanitizer.Sanitize(o.FullTextContent)
			m.FullTextContent = &full
		}
		if keywords != "" {
			kw := keywords
			m.ExtractedKeywords = &kw
		}

		embedCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		vec, err := s.AI.Embed(embedCtx, m.SchemeName+"\n"+m.Description)
		cancel()
		if err == nil {
			m.Embedding = vec
		} else if !errors.Is(err, ai.ErrNoAPIKey) {
			c.Logger().Warnf("embedding failed for %q: %v", m.SchemeName, err)
		}

		if _, err := s.Store.SaveOpportunity(ctx, m); err != nil {
			c.Logger().Errorf("failed to save opportunity %q: %v", m.SchemeName, err)
			continue
		}
		saved++
	}
	return saved
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	q := c.QueryParam("q")
	agency := c.QueryParam("agency")
	activeOnly := c.QueryParam("active") == "true"

	var unprocessed *bool
	if raw := c.QueryParam("unprocessed"); raw != "" {
		val := raw == "true"
		unprocessed = &val
	}

	limit := 50
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	// Generate embedding for semantic ordering; fall back to keyword
	// search when the AI backend is unavailable.
	var queryEmbedding []float32
	if q != "" {
		aiCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		vec, err := s.AI.Embed(aiCtx, q)
		cancel()
		if err != nil {
			if !errors.Is(err, ai.ErrNoAPIKey) {
				c.Logger().Errorf("Failed to generate query embedding: %v", err)
			}
		} else {
			queryEmbedding = vec
		}
	}

	result, err := s.Store.ListOpportunities(c.Request().Context(), db.ListParams{
		Query:          q,
		QueryEmbedding: queryEmbedding,
		Agency:         agency,
		Unprocessed:    unprocessed,
		ActiveOnly:     activeOnly,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		c.Logger().Errorf("Failed to list opportunities: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleSaveOpportunity(c echo.Context) error {
	var opp harvest.Opportunity
	if err := c.Bind(&opp); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(opp.SchemeName) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "scheme_name is required"})
	}

	saved := s.persistOpportunities(c.Request().Context(), c, []harvest.Opportunity{opp}, "")
	if saved == 0 {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save opportunity"})
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "saved"})
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}
	opp, err := s.Store.GetOpportunity(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleMarkProcessed(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}

	var req struct {
		Processed *bool `json:"processed"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	processed := req.Processed == nil || *req.Processed

	if err := s.Store.MarkOpportunityProcessed(c.Request().Context(), id, processed); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"is_processed": processed})
}

func (s *Server) handleDeleteOpportunity(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}
	if err := s.Store.DeleteOpportunity(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetSources(c echo.Context) error {
	sources, err := harvest.LoadSources()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, sources)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetTaxonomy(c echo.Context) error {
	if category := c.QueryParam("category"); category != "" {
		areas := s.Taxonomy.Areas(category)
		if areas == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Unknown category"})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"category": category, "areas": areas})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"categories": s.Taxonomy.Categories(),
		"taxonomy":   s.Taxonomy,
	})
}

func (s *Server) handleExtractFields(c echo.Context) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"fields": extract.Fields(req.Text)})
}

type generateOpportunitiesRequest struct {
	Category          string   `json:"category"`
	Areas             []string `json:"areas"`
	MinSubmissionDate string   `json:"min_submission_date"`
	Persist           bool     `json:"persist"`
}

func (s *Server) handleGenerateOpportunities(c echo.Context) error {
	var req generateOpportunitiesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	areas := req.Areas
	if len(areas) == 0 && req.Category != "" {
		areas = s.Taxonomy.Areas(req.Category)
	}
	if len(areas) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "areas or a taxonomy category is required"})
	}

	minDate := req.MinSubmissionDate
	if minDate == "" {
		minDate = time.Now().Format("2006-01-02")
	}

	opps, raw, err := s.AI.GenerateOpportunities(c.Request().Context(), areas, minDate)
	if err != nil {
		return s.aiErrorResponse(c, err)
	}

	saved := 0
	if req.Persist {
		saved = s.persistOpportunities(c.Request().Context(), c, opps, strings.Join(areas, ", "))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"opportunities": opps,
		"raw":           raw,
		"saved":         saved,
	})
}

// aiErrorResponse maps AI client failures onto HTTP statuses: a missing
// key is a config problem (503), everything else is an upstream failure.
func (s *Server) aiErrorResponse(c echo.Context, err error) error {
	if errors.Is(err, ai.ErrNoAPIKey) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "AI features are not configured"})
	}
	return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}
