package pipeline

import (
	"reflect"
	"testing"

	"github.com/idea2impact/grantpilot/internal/harvest"
)

func oppNames(opps []harvest.Opportunity) []string {
	var names []string
	for _, o := range opps {
		names = append(names, o.SchemeName)
	}
	return names
}

func TestKeywordTokens(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		want     []string
	}{
		{"splits on punctuation", []string{"machine-learning, AI"}, []string{"machine", "learning"}},
		{"drops short tokens", []string{"AI", "ML", "quantum"}, []string{"quantum"}},
		{"lowercases", []string{"Quantum Computing"}, []string{"quantum", "computing"}},
		{"keeps digits", []string{"web3 research"}, []string{"web3", "research"}},
		{"empty strings ignored", []string{"", "energy"}, []string{"energy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keywordTokens(tt.keywords)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("keywordTokens(%v) = %v, want %v", tt.keywords, got, tt.want)
			}
		})
	}
}

func TestRankByKeywords(t *testing.T) {
	opps := []harvest.Opportunity{
		{SchemeName: "Rural health mission", Description: "Community health workers"},
		{SchemeName: "Quantum computing call", Description: "Quantum hardware and quantum algorithms"},
		{SchemeName: "Sports infrastructure", Description: "Stadium upgrades"},
	}

	t.Run("scores by substring count", func(t *testing.T) {
		ranked := RankByKeywords(opps, []string{"quantum"}, 7)
		if ranked[0].SchemeName != "Quantum computing call" {
			t.Errorf("top = %q", ranked[0].SchemeName)
		}
		if len(ranked) != 3 {
			t.Errorf("len = %d, want 3", len(ranked))
		}
	})

	t.Run("ties keep input order", func(t *testing.T) {
		ranked := RankByKeywords(opps, []string{"unrelatedword"}, 7)
		if !reflect.DeepEqual(oppNames(ranked), oppNames(opps)) {
			t.Errorf("order changed: %v", oppNames(ranked))
		}
	})

	t.Run("no keywords takes first topK", func(t *testing.T) {
		ranked := RankByKeywords(opps, nil, 2)
		if !reflect.DeepEqual(oppNames(ranked), []string{"Rural health mission", "Quantum computing call"}) {
			t.Errorf("got %v", oppNames(ranked))
		}
	})

	t.Run("topK defaults to seven", func(t *testing.T) {
		var many []harvest.Opportunity
		for i := 0; i < 10; i++ {
			many = append(many, harvest.Opportunity{SchemeName: "Call", Description: "grant"})
		}
		if got := RankByKeywords(many, []string{"grant"}, 0); len(got) != 7 {
			t.Errorf("len = %d, want 7", len(got))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := RankByKeywords(nil, []string{"x"}, 5); got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})
}

func TestFilterByKeywords(t *testing.T) {
	opps := []harvest.Opportunity{
		{SchemeName: "Quantum computing call", Description: "hardware"},
		{SchemeName: "Sports infrastructure", Description: "stadium upgrades"},
	}

	t.Run("drops zero overlap", func(t *testing.T) {
		kept := FilterByKeywords(opps, []string{"quantum"})
		if len(kept) != 1 || kept[0].SchemeName != "Quantum computing call" {
			t.Errorf("kept = %v", oppNames(kept))
		}
	})

	t.Run("no keywords is a no-op", func(t *testing.T) {
		if kept := FilterByKeywords(opps, nil); len(kept) != 2 {
			t.Errorf("kept %d, want 2", len(kept))
		}
	})

	t.Run("only short tokens is a no-op", func(t *testing.T) {
		if kept := FilterByKeywords(opps, []string{"ai", "ml"}); len(kept) != 2 {
			t.Errorf("kept %d, want 2", len(kept))
		}
	})
}
