package pipeline

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/idea2impact/grantpilot/internal/harvest"
)

// Lines mentioning one of these phrases anchor the deadline search; the
// date is usually on the same line or within the next few.
var deadlineKeywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`last\s*date\s*(?:of\s*)?(?:submission|submitting|to\s*submit)`),
	regexp.MustCompile(`submission\s*deadline`),
	regexp.MustCompile(`last\s*date`),
	regexp.MustCompile(`deadline`),
	regexp.MustCompile(`due\s*date`),
	regexp.MustCompile(`closing\s*date`),
}

// Date shapes recognized in call text, in preference order.
var deadlineDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
	regexp.MustCompile(`(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`),
	regexp.MustCompile(`(?i)(\d{1,2}\s+(?:` + monthNames + `)\s+\d{2,4})`),
	regexp.MustCompile(`(?i)((?:` + monthNames + `)\s+\d{1,2},\s*\d{4})`),
}

const deadlineScanLineCap = 500

// extractDeadlineFromText finds the most plausible submission deadline in
// arbitrary call text, returning it as found (the date grammar is dealt
// with later by ParseDeadline). Dates near deadline keywords win; failing
// that, the first date anywhere in the capped text is used. Returns ""
// when no date appears.
func extractDeadlineFromText(text string) string {
	if text == "" {
		return ""
	}

	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(ln); t != "" {
			lines = append(lines, t)
		}
	}

	for idx, ln := range lines {
		lower := strings.ToLower(ln)
		matched := false
		for _, kp := range deadlineKeywordPatterns {
			if kp.MatchString(lower) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		end := idx + 4
		if end > len(lines) {
			end = len(lines)
		}
		window := strings.Join(lines[idx:end], " ")
		for _, dp := range deadlineDatePatterns {
			if m := dp.FindStringSubmatch(window); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
	}

	limit := len(lines)
	if limit > deadlineScanLineCap {
		limit = deadlineScanLineCap
	}
	blob := strings.Join(lines[:limit], "\n")
	for _, dp := range deadlineDatePatterns {
		if m := dp.FindStringSubmatch(blob); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// fetchCallText retrieves a call page or PDF and returns its plain text.
func fetchCallText(ctx context.Context, f harvest.Fetcher, url string) (string, error) {
	doc, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if isPDFDocument(doc, url) {
		text, err := extractPDFText(doc.Body)
		if err != nil {
			return "", nil
		}
		return text, nil
	}
	return htmlToText(doc.Body)
}

func isPDFDocument(doc *harvest.FetchedDocument, url string) bool {
	if strings.Contains(strings.ToLower(doc.ContentType), "pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(strings.SplitN(url, "?", 2)[0]), ".pdf")
}

// htmlToText extracts readable text from an HTML page. The main content
// region is preferred when one of the usual containers exists; otherwise
// the whole body is flattened, scripts and styles removed.
func htmlToText(body []byte) (string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	page.Find("script, style, noscript").Remove()

	for _, sel := range []string{"main", "article", "#content", ".content", "#main"} {
		region := page.Find(sel)
		if region.Length() > 0 {
			if text := flattenText(region); strings.TrimSpace(text) != "" {
				return text, nil
			}
		}
	}
	return flattenText(page.Selection), nil
}

func flattenText(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, part := range strings.Split(sel.Text(), "\n") {
		if t := strings.TrimSpace(part); t != "" {
			sb.WriteString(t)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// DeadlineCache remembers deadlines found at a URL across discovery runs.
// Only successful finds are stored, so a page that gets its deadline added
// later is retried on the next run. Safe for concurrent runs sharing one
// Pipeline.
type DeadlineCache struct {
	mu    sync.Mutex
	found map[string]string
}

func NewDeadlineCache() *DeadlineCache {
	return &DeadlineCache{found: make(map[string]string)}
}

func (c *DeadlineCache) get(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.found[url]
	return v, ok
}

func (c *DeadlineCache) put(url, deadline string) {
	if deadline == "" {
		return
	}
	c.mu.Lock()
	c.found[url] = deadline
	c.mu.Unlock()
}

// EnrichDeadlines returns a copy of opportunities with missing deadlines
// filled in from each call's linked page or PDF. At most maxChecks network
// fetches are spent per run; cache hits are free. Entries that already
// carry a deadline, or have no URL, pass through untouched. Fetch and parse
// failures leave the entry as-is rather than failing the run.
func EnrichDeadlines(ctx context.Context, f harvest.Fetcher, opportunities []harvest.Opportunity, cache *DeadlineCache, maxChecks int) []harvest.Opportunity {
	if len(opportunities) == 0 {
		return nil
	}
	if cache == nil {
		cache = NewDeadlineCache()
	}
	if maxChecks <= 0 {
		maxChecks = 10
	}

	out := make([]harvest.Opportunity, len(opportunities))
	copy(out, opportunities)

	checked := 0
	for i := range out {
		if checked >= maxChecks {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}
		url := out[i].SourceURL
		if url == "" {
			continue
		}

		missing := out[i].LastDateSubmission == "" || out[i].LastDateSubmission == "N/A"
		if missing {
			if cached, ok := cache.get(url); ok {
				out[i].LastDateSubmission = cached
				continue
			}
		} else {
			continue
		}

		checked++
		text, err := fetchCallText(ctx, f, url)
		if err != nil {
			continue
		}
		if deadline := extractDeadlineFromText(text); deadline != "" {
			cache.put(url, deadline)
			out[i].LastDateSubmission = deadline
		}
	}
	return out
}
