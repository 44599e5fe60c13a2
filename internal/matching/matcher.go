package matching

import (
	"sort"

	"github.com/zombor/invoice-analyzer/internal/registry"
)

const (
	exactMatchBonus      = 10.0
	significantWordBonus = 20.0
)

// DefaultSignificantWords are brand tokens that identify a company on
// their own.
var DefaultSignificantWords = []string{"edenor", "aysa", "metrogas", "telecom", "personal", "claro", "movistar"}

// Candidate is a scored registry record for one candidate name.
type Candidate struct {
	Company            registry.CompanyRecord
	Score              float64
	ExactMatch         bool
	HasSignificantWord bool
	// MatchingWords holds the shared tokens in candidate-name order.
	MatchingWords []string
}

// AliasMatch is the first alias that matched a record.
type AliasMatch struct {
	Alias     string
	Index     int
	Candidate Candidate
}

// Matcher scores registry records against candidate names.
type Matcher struct {
	significant map[string]struct{}
}

// NewMatcher returns a Matcher using words as the significant brand
// tokens. With no words it uses DefaultSignificantWords.
func NewMatcher(words ...string) *Matcher {
	if len(words) == 0 {
		words = DefaultSignificantWords
	}
	m := &Matcher{significant: make(map[string]struct{}, len(words))}
	for _, w := range words {
		m.significant[w] = struct{}{}
	}
	return m
}

// Rank scores every record sharing at least one token with name and
// returns them best first. Records with equal scores keep registry order.
func (m *Matcher) Rank(name string, companies []registry.CompanyRecord) []Candidate {
	nameTokens := Normalize(name)
	if len(nameTokens) == 0 {
		return nil
	}

	var candidates []Candidate
	for _, company := range companies {
		if company.CompanyName == "" || company.CompanyCode == "" {
			continue
		}

		companyTokens := toSet(Normalize(company.CompanyName))
		matching := intersect(nameTokens, companyTokens)
		if len(matching) == 0 {
			continue
		}

		exact := true
		for _, t := range nameTokens {
			if _, ok := companyTokens[t]; !ok {
				exact = false
				break
			}
		}

		significant := false
		for _, t := range matching {
			if _, ok := m.significant[t]; ok {
				significant = true
				break
			}
		}

		score := float64(len(matching))
		if exact {
			score += exactMatchBonus
		}
		if significant {
			score += significantWordBonus
		}

		candidates = append(candidates, Candidate{
			Company:            company,
			Score:              score,
			ExactMatch:         exact,
			HasSignificantWord: significant,
			MatchingWords:      matching,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// FindBestMatch returns the top ranked record for name.
func (m *Matcher) FindBestMatch(name string, companies []registry.CompanyRecord) (Candidate, bool) {
	ranked := m.Rank(name, companies)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// MatchFirstAlias tries aliases in order and stops at the first one that
// matches any record. Later aliases are never scored, even if one of them
// would rank higher.
func (m *Matcher) MatchFirstAlias(aliases []string, companies []registry.CompanyRecord) (AliasMatch, bool) {
	for i, alias := range aliases {
		if c, ok := m.FindBestMatch(alias, companies); ok {
			return AliasMatch{Alias: alias, Index: i, Candidate: c}, true
		}
	}
	return AliasMatch{}, false
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// intersect returns the distinct tokens of ordered that appear in set.
func intersect(ordered []string, set map[string]struct{}) []string {
	var out []string
	seen := make(map[string]struct{}, len(ordered))
	for _, t := range ordered {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
