package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/idea2impact/grantpilot/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListParams filters and pages the saved opportunity list. QueryEmbedding,
// when present, switches ordering to vector similarity against it.
type ListParams struct {
	Query          string
	QueryEmbedding []float32
	Agency         string
	Unprocessed    *bool
	ActiveOnly     bool
	Limit          int
	Offset         int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

const opportunityCols = `id, scheme_name, funding_agency, last_date_submission, description,
	source_url, deadline_date_iso, extracted_keywords, full_text_content, is_processed, created_at`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	err := scan(
		&o.ID, &o.SchemeName, &o.FundingAgency, &o.LastDateSubmission, &o.Description,
		&o.SourceURL, &o.DeadlineDateISO, &o.ExtractedKeywords, &o.FullTextContent, &o.IsProcessed, &o.CreatedAt,
	)
	return o, err
}

// SaveOpportunity inserts an opportunity and returns it with the generated
// id and timestamp. An embedding is stored when present.
func (s *Store) SaveOpportunity(ctx context.Context, o models.Opportunity) (*models.Opportunity, error) {
	var embedding interface{}
	if len(o.Embedding) > 0 {
		embedding = pgvector.NewVector(o.Embedding)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO opportunities (scheme_name, funding_agency, last_date_submission, description,
			source_url, deadline_date_iso, extracted_keywords, full_text_content, is_processed, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`,
		o.SchemeName, orDefault(o.FundingAgency, "N/A"), orDefault(o.LastDateSubmission, "N/A"), orDefault(o.Description, "N/A"),
		o.SourceURL, o.DeadlineDateISO, o.ExtractedKeywords, o.FullTextContent, o.IsProcessed, embedding,
	)
	if err := row.Scan(&o.ID, &o.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert opportunity: %w", err)
	}
	return &o, nil
}

func (s *Store) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM opportunities WHERE id = $1", opportunityCols), id)
	o, err := scanOpportunity(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("opportunity not found: %w", err)
	}
	return &o, nil
}

// buildListFilter renders the WHERE clause for ListOpportunities together
// with its positional arguments.
func buildListFilter(params ListParams) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (scheme_name ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.Agency != "" {
		where += fmt.Sprintf(" AND funding_agency = $%d", argIdx)
		args = append(args, params.Agency)
		argIdx++
	}
	if params.Unprocessed != nil {
		where += fmt.Sprintf(" AND is_processed = $%d", argIdx)
		args = append(args, !*params.Unprocessed)
	}
	if params.ActiveOnly {
		// Calls whose normalized deadline has passed are hidden; unknown
		// deadlines stay visible.
		where += " AND (deadline_date_iso IS NULL OR deadline_date_iso > to_char(NOW(), 'YYYY-MM-DD'))"
	}
	return where, args
}

func (s *Store) ListOpportunities(ctx context.Context, params ListParams) (*ListResult, error) {
	where, args := buildListFilter(params)
	argIdx := len(args) + 1

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM opportunities %s", opportunityCols, where)
	if len(params.QueryEmbedding) > 0 {
		selectSQL += fmt.Sprintf(`
			ORDER BY
				CASE WHEN embedding IS NULL THEN 1 ELSE 0 END ASC,
				COALESCE(1 - (embedding <=> $%d), -1) DESC,
				created_at DESC
		`, argIdx)
		args = append(args, pgvector.NewVector(params.QueryEmbedding))
		argIdx++
	} else {
		selectSQL += " ORDER BY created_at DESC"
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}

	return &ListResult{Opportunities: opps, Total: total, Limit: limit, Offset: params.Offset}, nil
}

func (s *Store) MarkOpportunityProcessed(ctx context.Context, id string, processed bool) error {
	tag, err := s.pool.Exec(ctx, "UPDATE opportunities SET is_processed = $2 WHERE id = $1", id, processed)
	if err != nil {
		return fmt.Errorf("update opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opportunity %s not found", id)
	}
	return nil
}

func (s *Store) DeleteOpportunity(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM opportunities WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opportunity %s not found", id)
	}
	return nil
}

const proposalCols = `id, funding_agency, scheme_type, duration, budget, thrust_areas,
	eligibility, submission_format, user_research_background, template_sections,
	full_proposal_content, brainstorm_analysis_report, alignment_score, created_at`

func scanProposal(scan func(dest ...interface{}) error) (models.Proposal, error) {
	var p models.Proposal
	var agency, schemeType, duration, budget, thrust, eligibility, format *string
	var background, sections, content *string

	err := scan(
		&p.ID, &agency, &schemeType, &duration, &budget, &thrust,
		&eligibility, &format, &background, &sections,
		&content, &p.BrainstormReport, &p.AlignmentScore, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	p.FundingAgency = deref(agency)
	p.SchemeType = deref(schemeType)
	p.Duration = deref(duration)
	p.Budget = deref(budget)
	p.ThrustAreas = deref(thrust)
	p.Eligibility = deref(eligibility)
	p.SubmissionFormat = deref(format)
	p.ResearchBackground = deref(background)
	p.TemplateSections = deref(sections)
	p.FullProposal = deref(content)
	return p, nil
}

func (s *Store) SaveProposal(ctx context.Context, p models.Proposal) (*models.Proposal, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO proposals (funding_agency, scheme_type, duration, budget, thrust_areas,
			eligibility, submission_format, user_research_background, template_sections,
			full_proposal_content, brainstorm_analysis_report, alignment_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`,
		nilIfEmpty(p.FundingAgency), nilIfEmpty(p.SchemeType), nilIfEmpty(p.Duration), nilIfEmpty(p.Budget),
		nilIfEmpty(p.ThrustAreas), nilIfEmpty(p.Eligibility), nilIfEmpty(p.SubmissionFormat),
		nilIfEmpty(p.ResearchBackground), nilIfEmpty(p.TemplateSections), nilIfEmpty(p.FullProposal),
		p.BrainstormReport, p.AlignmentScore,
	)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert proposal: %w", err)
	}
	return &p, nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM proposals WHERE id = $1", proposalCols), id)
	p, err := scanProposal(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("proposal not found: %w", err)
	}
	return &p, nil
}

func (s *Store) ListProposals(ctx context.Context, limit, offset int) ([]models.Proposal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM proposals ORDER BY created_at DESC LIMIT $1 OFFSET $2", proposalCols),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()

	proposals := []models.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

func (s *Store) DeleteProposal(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM proposals WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proposal %s not found", id)
	}
	return nil
}

// SaveProfile upserts a research profile by name.
func (s *Store) SaveProfile(ctx context.Context, name, background string) (*models.Profile, error) {
	p := models.Profile{Name: name, ResearchBackground: background}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO user_profiles (profile_name, research_background)
		VALUES ($1, $2)
		ON CONFLICT (profile_name)
		DO UPDATE SET research_background = EXCLUDED.research_background, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, name, background)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_name, research_background, created_at, updated_at
		FROM user_profiles ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.ResearchBackground, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM user_profiles WHERE profile_name = $1", name)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %q not found", name)
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities").Scan(&total)
	stats["opportunities"] = total

	var unprocessed int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities WHERE is_processed = false").Scan(&unprocessed)
	stats["unprocessed"] = unprocessed

	var proposals int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM proposals").Scan(&proposals)
	stats["proposals"] = proposals

	var profiles int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM user_profiles").Scan(&profiles)
	stats["profiles"] = profiles

	agencyCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT funding_agency, COUNT(*) FROM opportunities GROUP BY funding_agency ORDER BY COUNT(*) DESC LIMIT 20")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var agency string
			var count int
			if scanErr := rows.Scan(&agency, &count); scanErr == nil {
				agencyCounts[agency] = count
			}
		}
	}
	stats["agency_counts"] = agencyCounts

	return stats, nil
}

func nilIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
