package harvest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Titles worth keeping on the ANRF portal. The portal is an interactive
// application, so a plain HTML parse only surfaces a handful of links and
// these words separate program links from login and help chrome.
var portalKeywords = []string{
	"call", "proposal", "grant", "fellowship", "program", "scheme", "mission", "fund",
}

const (
	portalHost        = "anrfonline.in"
	minPortalTitleLen = 6
)

func keepPortalLink(title, absURL string) bool {
	if title == "" || absURL == "" {
		return false
	}
	if !strings.Contains(strings.ToLower(absURL), portalHost) {
		return false
	}
	if len(title) < minPortalTitleLen {
		return false
	}
	return containsAnyFold(title, portalKeywords)
}

// HarvestPortal fetches the ANRF portal homepage and extracts program and
// call links. When the parse yields nothing the homepage itself is returned
// as one entry so the portal still shows up in results.
func HarvestPortal(ctx context.Context, f Fetcher, cfg SourceConfig) ([]Opportunity, error) {
	doc, err := f.Fetch(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("portal %s: %w", cfg.URL, err)
	}
	return parsePortalPage(doc.Body, cfg)
}

func parsePortalPage(body []byte, cfg SourceConfig) ([]Opportunity, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse portal page: %w", err)
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse portal url: %w", err)
	}

	var items []Opportunity
	seen := make(map[linkKey]bool)

	page.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		title := normalizeSpace(sel.Text())
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		absURL := base.ResolveReference(ref).String()
		if !keepPortalLink(title, absURL) {
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

	if len(items) == 0 {
		items = append(items, Opportunity{
			SchemeName:         "ANRF Portal - Programs / Calls",
			FundingAgency:      cfg.Agency,
			LastDateSubmission: "N/A",
			Description:        "Source: " + cfg.URL,
			SourceURL:          cfg.URL,
			FullTextContent:    cfg.URL,
		})
	}
	return items, nil
}
