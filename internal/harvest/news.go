package harvest

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocolly/colly/v2"
)

// Words that mark a news headline as a funding opportunity rather than
// generic coverage. Matched as substrings, so "fellow" also catches
// "fellowships" and "program" catches "programmes".
var newsOpportunityKeywords = []string{
	"call", "proposal", "grant", "fund", "fellow", "fellowship",
	"invited", "invitation", "applications", "apply", "scheme",
	"program", "programme", "announcement", "opportunity",
}

const newsHost = "indiascienceandtechnology.gov.in"

// keepNewsLink keeps on-site links whose title looks like an opportunity.
func keepNewsLink(title, absURL string) bool {
	if title == "" || absURL == "" {
		return false
	}
	if !strings.Contains(strings.ToLower(absURL), newsHost) {
		return false
	}
	if len(title) < minAnnouncementTitleLen {
		return false
	}
	return containsAnyFold(title, newsOpportunityKeywords)
}

// HarvestNews scrapes the India Science & Technology latest-updates page.
// When no link passes the filters the page itself is returned as a single
// entry so a run report never silently shows zero for a live source.
func HarvestNews(ctx context.Context, cfg SourceConfig) ([]Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := newCollector(cfg.Timeout())

	var items []Opportunity
	seen := make(map[linkKey]bool)

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		title := normalizeSpace(e.Text)
		absURL := e.Request.AbsoluteURL(e.Attr("href"))
		if !keepNewsLink(title, absURL) {
			return
		}
		key := linkKey{title: title, url: absURL}
		if seen[key] {
			return
		}
		seen[key] = true
		items = append(items, Opportunity{
			SchemeName:         sanitizeUTF8(title),
			FundingAgency:      cfg.Agency,
			LastDateSubmission: "N/A",
			Description:        "Source: " + absURL,
			SourceURL:          absURL,
			FullTextContent:    sanitizeUTF8(title) + "\n" + absURL,
		})
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: %w", r.Request.URL, err)
	})

	if err := c.Visit(cfg.URL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", cfg.URL, err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, visitErr
	}

	if len(items) == 0 {
		items = append(items, Opportunity{
			SchemeName:         "India Science & Technology - Latest Updates",
			FundingAgency:      cfg.Agency,
			LastDateSubmission: "N/A",
			Description:        "Source: " + cfg.URL,
			SourceURL:          cfg.URL,
			FullTextContent:    cfg.URL,
		})
	}
	return items, nil
}
