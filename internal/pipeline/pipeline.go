package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/idea2impact/grantpilot/internal/harvest"
)

// DiscoverOptions controls one discovery run. Zero values select the
// defaults used by the API and CLI: top 7 after ranking, enrichment on,
// ten deadline fetches, unknown deadlines kept.
type DiscoverOptions struct {
	Keywords          []string
	TopK              int
	StrictKeywords    bool
	SkipEnrichment    bool
	MaxDeadlineChecks int
	ActiveOnly        bool
	IncludeNoDeadline *bool
	Now               time.Time
}

func (o DiscoverOptions) includeNoDeadline() bool {
	return o.IncludeNoDeadline == nil || *o.IncludeNoDeadline
}

// SourceReport records one source's contribution to a run.
type SourceReport struct {
	SourceID   string        `json:"source_id"`
	SourceName string        `json:"source_name"`
	Count      int           `json:"count"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// DiscoverResult is the outcome of a full discovery run.
type DiscoverResult struct {
	Opportunities []harvest.Opportunity `json:"opportunities"`
	Sources       []SourceReport        `json:"sources"`
	Harvested     int                   `json:"harvested"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
}

// Pipeline runs harvest, ranking, enrichment and the active-call filter as
// one unit. The deadline cache persists across runs of the same Pipeline.
type Pipeline struct {
	fetcher harvest.Fetcher
	sources []harvest.SourceConfig
	cache   *DeadlineCache
	logger  *log.Logger
}

func New(fetcher harvest.Fetcher, sources []harvest.SourceConfig, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		fetcher: fetcher,
		sources: sources,
		cache:   NewDeadlineCache(),
		logger:  logger,
	}
}

// Discover harvests every enabled source and reduces the merged results to
// a ranked shortlist. A failing source is reported and skipped; the run
// fails only when every source fails.
func (p *Pipeline) Discover(ctx context.Context, opts DiscoverOptions) (*DiscoverResult, error) {
	result := &DiscoverResult{StartedAt: time.Now().UTC()}

	var merged []harvest.Opportunity
	failures := 0
	for _, src := range p.sources {
		if !src.IsEnabled() {
			continue
		}
		start := time.Now()
		items, err := p.harvestSource(ctx, src)
		report := SourceReport{
			SourceID:   src.ID,
			SourceName: src.Name,
			Count:      len(items),
			Elapsed:    time.Since(start),
		}
		if err != nil {
			report.Error = err.Error()
			failures++
			p.logger.Printf("harvest %s failed: %v", src.ID, err)
		} else {
			p.logger.Printf("harvest %s: %d items in %s", src.ID, len(items), report.Elapsed.Round(time.Millisecond))
		}
		result.Sources = append(result.Sources, report)
		merged = append(merged, items...)
	}
	if failures > 0 && failures == len(result.Sources) {
		return nil, fmt.Errorf("all %d sources failed", failures)
	}
	result.Harvested = len(merged)

	shortlist := merged
	if opts.StrictKeywords {
		shortlist = FilterByKeywords(shortlist, opts.Keywords)
	}
	shortlist = RankByKeywords(shortlist, opts.Keywords, opts.TopK)

	if !opts.SkipEnrichment {
		shortlist = EnrichDeadlines(ctx, p.fetcher, shortlist, p.cache, opts.MaxDeadlineChecks)
	}

	if opts.ActiveOnly {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		shortlist = FilterActiveOpen(shortlist, now, opts.includeNoDeadline())
	}

	result.Opportunities = shortlist
	result.FinishedAt = time.Now().UTC()
	return result, nil
}

func (p *Pipeline) harvestSource(ctx context.Context, src harvest.SourceConfig) ([]harvest.Opportunity, error) {
	switch src.Strategy {
	case "announcements":
		return harvest.HarvestAnnouncements(ctx, src)
	case "news":
		return harvest.HarvestNews(ctx, src)
	case "portal":
		return harvest.HarvestPortal(ctx, p.fetcher, src)
	case "sheet":
		return harvest.HarvestSheet(ctx, p.fetcher, src)
	default:
		return nil, fmt.Errorf("unknown source strategy %q", src.Strategy)
	}
}
