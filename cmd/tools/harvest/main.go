// Command harvest runs a discovery pass against all configured sources and
// prints a per-source report plus the ranked opportunities. It needs no
// database, which makes it handy for checking source health.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"

	"github.com/idea2impact/grantpilot/internal/harvest"
	"github.com/idea2impact/grantpilot/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env")
	}

	keywordsFlag := flag.String("keywords", "", "comma-separated ranking keywords")
	topK := flag.Int("top", 7, "number of opportunities to keep after ranking")
	strict := flag.Bool("strict", false, "drop opportunities that match no keyword")
	activeOnly := flag.Bool("active", false, "keep only calls with a future deadline")
	skipEnrich := flag.Bool("skip-enrich", false, "skip fetching linked pages for deadlines")
	maxChecks := flag.Int("max-checks", 10, "max pages fetched during deadline enrichment")
	timeout := flag.Duration("timeout", 3*time.Minute, "overall run timeout")
	flag.Parse()

	var keywords []string
	for _, k := range strings.Split(*keywordsFlag, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	sources, err := harvest.LoadSources()
	if err != nil {
		log.Fatalf("Failed to load sources: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p := pipeline.New(harvest.NewHTTPFetcher(20*time.Second), sources, nil)
	result, err := p.Discover(ctx, pipeline.DiscoverOptions{
		Keywords:          keywords,
		TopK:              *topK,
		StrictKeywords:    *strict,
		SkipEnrichment:    *skipEnrich,
		MaxDeadlineChecks: *maxChecks,
		ActiveOnly:        *activeOnly,
	})
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}

	st := table.NewWriter()
	st.SetOutputMirror(os.Stdout)
	st.AppendHeader(table.Row{"Source", "Found", "Elapsed", "Error"})
	for _, r := range result.Sources {
		errText := "-"
		if r.Error != "" {
			errText = r.Error
		}
		st.AppendRow(table.Row{r.SourceName, r.Count, r.Elapsed.Round(time.Millisecond), errText})
	}
	st.AppendFooter(table.Row{"Total harvested", result.Harvested, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond), ""})
	st.Render()

	ot := table.NewWriter()
	ot.SetOutputMirror(os.Stdout)
	ot.AppendHeader(table.Row{"#", "Scheme", "Agency", "Deadline", "URL"})
	ot.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Scheme", WidthMax: 56, WidthMaxEnforcer: text.WrapSoft},
		{Name: "URL", WidthMax: 48, WidthMaxEnforcer: text.WrapText},
	})
	for i, o := range result.Opportunities {
		deadline := o.LastDateSubmission
		if o.DeadlineDateISO != "" {
			deadline = o.DeadlineDateISO
		}
		ot.AppendRow(table.Row{i + 1, o.SchemeName, o.FundingAgency, deadline, o.SourceURL})
	}
	ot.Render()
}
