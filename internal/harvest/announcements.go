package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

// Substrings that mark navigation and social links on government portals.
// Scheme PDFs and announcement detail pages never contain these.
var announcementDenylist = []string{
	"facebook.com", "twitter.com", "youtube.com", "sitemap", "contact", "feedback",
}

const minAnnouncementTitleLen = 8

// keepAnnouncementLink decides whether a link on the announcements page is a
// plausible funding announcement rather than site chrome.
func keepAnnouncementLink(title, absURL string) bool {
	if title == "" || absURL == "" {
		return false
	}
	if containsAnyFold(absURL, announcementDenylist) {
		return false
	}
	return len(title) >= minAnnouncementTitleLen
}

// HarvestAnnouncements scrapes the DST announcements page. Every link that
// survives the denylist becomes an opportunity with an "N/A" deadline; the
// enrichment stage fills deadlines in later from the linked page or PDF.
func HarvestAnnouncements(ctx context.Context, cfg SourceConfig) ([]Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := newCollector(cfg.Timeout())

	var items []Opportunity
	seen := make(map[linkKey]bool)

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		title := normalizeSpace(e.Text)
		absURL := e.Request.AbsoluteURL(e.Attr("href"))
		if !keepAnnouncementLink(title, absURL) {
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
	return items, nil
}

// newCollector builds a single-page collector with browser headers. Domain
// scoping happens in the per-source link filters, not on the collector, so
// the same setup serves every HTML source.
func newCollector(timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(defaultUserAgent),
		colly.MaxDepth(1),
		colly.DetectCharset(),
	)
	c.SetRequestTimeout(timeout)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       500 * time.Millisecond,
	})
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})
	return c
}
