// Package pipeline turns raw harvested links into a ranked, deadline-aware
// shortlist of active funding calls.
package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/idea2impact/grantpilot/internal/harvest"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// keywordTokens lowercases and tokenizes user keywords, dropping tokens of
// one or two characters so stopword fragments ("of", "ai" typos, "in") do
// not dominate substring counts.
func keywordTokens(keywords []string) []string {
	var tokens []string
	for _, k := range keywords {
		if k == "" {
			continue
		}
		tokens = append(tokens, tokenPattern.FindAllString(strings.ToLower(k), -1)...)
	}
	kept := tokens[:0]
	for _, t := range tokens {
		if len(t) > 2 {
			kept = append(kept, t)
		}
	}
	return kept
}

func keywordScore(opp harvest.Opportunity, tokens []string) int {
	hay := strings.ToLower(opp.SchemeName + " " + opp.Description)
	score := 0
	for _, t := range tokens {
		score += strings.Count(hay, t)
	}
	return score
}

// RankByKeywords orders opportunities by keyword overlap with title and
// description and keeps the top topK. Without keywords the first topK
// survive in harvest order. Ties preserve input order.
func RankByKeywords(opportunities []harvest.Opportunity, keywords []string, topK int) []harvest.Opportunity {
	if topK <= 0 {
		topK = 7
	}
	if len(opportunities) == 0 {
		return nil
	}
	if len(keywords) == 0 {
		if len(opportunities) > topK {
			return opportunities[:topK]
		}
		return opportunities
	}

	tokens := keywordTokens(keywords)
	ranked := make([]harvest.Opportunity, len(opportunities))
	copy(ranked, opportunities)
	sort.SliceStable(ranked, func(i, j int) bool {
		return keywordScore(ranked[i], tokens) > keywordScore(ranked[j], tokens)
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// FilterByKeywords drops opportunities with zero keyword overlap. An empty
// keyword list, or one whose tokens all fall below the length cutoff, leaves
// the input untouched.
func FilterByKeywords(opportunities []harvest.Opportunity, keywords []string) []harvest.Opportunity {
	if len(opportunities) == 0 {
		return nil
	}
	if len(keywords) == 0 {
		return opportunities
	}
	tokens := keywordTokens(keywords)
	if len(tokens) == 0 {
		return opportunities
	}
	var kept []harvest.Opportunity
	for _, opp := range opportunities {
		if keywordScore(opp, tokens) > 0 {
			kept = append(kept, opp)
		}
	}
	return kept
}
