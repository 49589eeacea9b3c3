package harvest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrSheetNotPublic is returned when the Google Sheet CSV export is not
// reachable anonymously. Google answers with 403/404 or an HTML
// interstitial instead of CSV in that case.
var ErrSheetNotPublic = errors.New("google sheet is not publicly accessible; publish it to the web or share with anyone with the link")

const (
	sheetMaxRows     = 2000
	sheetFullTextCap = 4000
)

var (
	sheetNameColumns     = []string{"Programme/Scheme Name", "Program", "Programme", "Scheme", "Opportunity", "Call", "Title", "Name"}
	sheetAgencyColumns   = []string{"Funding Agency", "Agency", "Sponsor", "Funder"}
	sheetDeadlineColumns = []string{"Last Date of Submission", "Submission Deadline", "Deadline", "Due Date", "Closing Date", "End Date"}
	sheetDescColumns     = []string{"Description", "Summary", "Details", "Notes", "Keywords", "Scope", "Eligibility"}
	sheetURLColumns      = []string{"URL", "Link", "Website", "Web", "Source"}
)

// SheetCSVExportURL builds the anonymous CSV export endpoint for one tab of
// a Google Sheet.
func SheetCSVExportURL(sheetID, gid string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", sheetID, gid)
}

// HarvestSheet downloads the community opportunity sheet as CSV and maps
// its rows to opportunities. Column positions are resolved from the header
// row by name, so contributors may reorder or rename columns within reason.
func HarvestSheet(ctx context.Context, f Fetcher, cfg SourceConfig) ([]Opportunity, error) {
	exportURL := SheetCSVExportURL(cfg.SheetID, cfg.SheetGID)
	doc, err := f.Fetch(ctx, exportURL)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("%w (HTTP %d)", ErrSheetNotPublic, se.Code)
		}
		return nil, fmt.Errorf("sheet export: %w", err)
	}

	text := string(doc.Body)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "<html") && strings.Contains(lower, "google") {
		return nil, fmt.Errorf("%w (got HTML instead of CSV)", ErrSheetNotPublic)
	}

	items, err := parseSheetCSV(strings.NewReader(text), exportURL)
	if err != nil {
		return nil, fmt.Errorf("parse sheet csv: %w", err)
	}
	return items, nil
}

func parseSheetCSV(r io.Reader, fallbackURL string) ([]Opportunity, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for len(rows) <= sheetMaxRows {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	nameIdx := findColumn(header, sheetNameColumns)
	agencyIdx := findColumn(header, sheetAgencyColumns)
	deadlineIdx := findColumn(header, sheetDeadlineColumns)
	descIdx := findColumn(header, sheetDescColumns)
	urlIdx := findColumn(header, sheetURLColumns)

	var items []Opportunity
	for _, row := range rows[1:] {
		if rowIsEmpty(row) {
			continue
		}
		cell := func(i int) string {
			if i < 0 || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		name := cell(nameIdx)
		if name == "" {
			continue
		}

		sourceURL := cell(urlIdx)
		if !strings.Contains(strings.ToLower(sourceURL), "http") {
			sourceURL = ""
			for _, c := range row {
				if strings.Contains(strings.ToLower(c), "http") {
					sourceURL = strings.TrimSpace(c)
					break
				}
			}
		}
		if sourceURL == "" {
			sourceURL = fallbackURL
		}

		var parts []string
		for _, c := range row {
			if t := strings.TrimSpace(c); t != "" {
				parts = append(parts, t)
			}
		}

		items = append(items, Opportunity{
			SchemeName:         sanitizeUTF8(name),
			FundingAgency:      firstNonEmpty(cell(agencyIdx), "N/A"),
			LastDateSubmission: firstNonEmpty(cell(deadlineIdx), "N/A"),
			Description:        firstNonEmpty(cell(descIdx), "N/A"),
			SourceURL:          sourceURL,
			FullTextContent:    truncateRunes(sanitizeUTF8(strings.Join(parts, " | ")), sheetFullTextCap),
		})
	}
	return items, nil
}

// findColumn resolves a header index by exact name first, then by substring,
// so "Programme Title" still resolves through the "Programme" candidate.
// Returns -1 when no candidate matches.
func findColumn(header []string, candidates []string) int {
	for _, cand := range candidates {
		for i, h := range header {
			if strings.EqualFold(h, cand) {
				return i
			}
		}
	}
	for _, cand := range candidates {
		for i, h := range header {
			if strings.Contains(strings.ToLower(h), strings.ToLower(cand)) {
				return i
			}
		}
	}
	return -1
}

func rowIsEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
