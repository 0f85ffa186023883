package keyword

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// FuzzyRule is one approximate-match rule: Keyword is the phrase to match
// against, Threshold is the minimum similarity score (inclusive) required
// to report a hit.
type FuzzyRule struct {
	Keyword   string
	RuleID    string
	Threshold float64
}

// FuzzyMatch is one hit produced by FuzzyMatcher.Match.
type FuzzyMatch struct {
	Keyword string
	RuleID  string
	Score   float64
}

// FuzzyMatcher approximates RapidFuzz's token_set_ratio using
// antzucaro/matchr's Jaro-Winkler similarity over normalized token sets:
// both strings are lowercased, split on whitespace, sorted, and
// deduplicated before scoring, so word order and repeated words never
// affect the result — only the distinct vocabulary shared between the two
// strings does.
type FuzzyMatcher struct{}

// NewFuzzyMatcher returns a stateless FuzzyMatcher.
func NewFuzzyMatcher() *FuzzyMatcher {
	return &FuzzyMatcher{}
}

// Match scores text against every rule and returns a FuzzyMatch for each
// whose score meets or exceeds its Threshold. Threshold boundaries are
// inclusive: a threshold of 1.0 still matches an identical string, and a
// threshold of 0.0 matches anything.
func (m *FuzzyMatcher) Match(text string, rules []FuzzyRule) []FuzzyMatch {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	normText := normalizeTokenSet(text)
	var out []FuzzyMatch
	for _, r := range rules {
		score := float64(matchr.JaroWinkler(normText, normalizeTokenSet(r.Keyword), false))
		if score >= r.Threshold {
			out = append(out, FuzzyMatch{Keyword: r.Keyword, RuleID: r.RuleID, Score: score})
		}
	}
	return out
}

// normalizeTokenSet lowercases s, splits it into whitespace-separated
// tokens, sorts them, removes duplicates, and rejoins with single spaces.
func normalizeTokenSet(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	sort.Strings(tokens)

	deduped := tokens[:0]
	var prev string
	for i, t := range tokens {
		if i == 0 || t != prev {
			deduped = append(deduped, t)
		}
		prev = t
	}
	return strings.Join(deduped, " ")
}
