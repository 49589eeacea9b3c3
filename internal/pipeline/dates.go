package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/idea2impact/grantpilot/internal/harvest"
)

var (
	numericDatePattern = regexp.MustCompile(`(\d{1,2})([./-])(\d{1,2})[./-](\d{2,4})`)

	monthNames = `Jan|January|Feb|February|Mar|March|Apr|April|May|Jun|June|Jul|July|Aug|August|Sep|Sept|September|Oct|October|Nov|November|Dec|December`

	dayMonthYearPattern = regexp.MustCompile(`(?i)(\d{1,2})\s+(` + monthNames + `)\s+(\d{2,4})`)
	monthDayYearPattern = regexp.MustCompile(`(?i)(` + monthNames + `)\s+(\d{1,2}),\s*(\d{4})`)
)

var monthNumbers = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// makeDate validates day and month against the real calendar. time.Date
// normalizes out-of-range values (Feb 31 becomes Mar 3), so the result is
// checked against the inputs instead of trusted.
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// ParseDeadline converts a free-form deadline string to a date. Formats are
// tried in order: strict ISO, numeric with separator heuristics, "16 Jan
// 2026", "January 16, 2026". Numeric separators disambiguate day and month:
// dots read day-first, slashes month-first with a day-first fallback
// (spreadsheets lean American), hyphens day-first with a month-first
// fallback. Two-digit years land in the 2000s. The second result is false
// when nothing parses.
func ParseDeadline(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return time.Time{}, false
	}

	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, true
	}

	if m := numericDatePattern.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		sep := m[2]
		b, _ := strconv.Atoi(m[3])
		year, _ := strconv.Atoi(m[4])
		if year < 100 {
			year += 2000
		}

		type dayMonth struct {
			day   int
			month int
		}
		var candidates []dayMonth
		switch sep {
		case ".":
			candidates = []dayMonth{{a, b}}
		case "/":
			candidates = []dayMonth{{b, a}, {a, b}}
		default:
			candidates = []dayMonth{{a, b}, {b, a}}
		}
		for _, c := range candidates {
			if d, ok := makeDate(year, time.Month(c.month), c.day); ok {
				return d, true
			}
		}
	}

	if m := dayMonthYearPattern.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := monthNumbers[strings.ToLower(m[2])]
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		if d, ok := makeDate(year, month, day); ok {
			return d, true
		}
	}

	if m := monthDayYearPattern.FindStringSubmatch(s); m != nil {
		month := monthNumbers[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if d, ok := makeDate(year, month, day); ok {
			return d, true
		}
	}

	return time.Time{}, false
}

// FilterActiveOpen keeps calls that are still open as of now. A title
// containing "closed" always drops the call. A parsed deadline must be
// strictly after today's date; deadlines falling today are already shut by
// the time anyone reads the list. Calls whose deadline cannot be parsed are
// kept only when includeNoDeadline is set. Kept entries with a parsed
// deadline get DeadlineDateISO populated.
func FilterActiveOpen(opportunities []harvest.Opportunity, now time.Time, includeNoDeadline bool) []harvest.Opportunity {
	if len(opportunities) == 0 {
		return nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var kept []harvest.Opportunity
	for _, opp := range opportunities {
		if strings.Contains(strings.ToLower(strings.TrimSpace(opp.SchemeName)), "closed") {
			continue
		}
		deadline, ok := ParseDeadline(opp.LastDateSubmission)
		if ok {
			if !deadline.After(today) {
				continue
			}
			opp.DeadlineDateISO = deadline.Format("2006-01-02")
		} else if !includeNoDeadline {
			continue
		}
		kept = append(kept, opp)
	}
	return kept
}
