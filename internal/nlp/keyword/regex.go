package keyword

import (
	"fmt"
	"regexp"
)

// RegexRule is one regex-based rule, compiled case-insensitively at load
// time via RegexMatcher.Load.
type RegexRule struct {
	Pattern string
	RuleID  string
}

// RegexMatch is one hit produced by RegexMatcher.Search.
type RegexMatch struct {
	Pattern     string
	RuleID      string
	MatchedText string
	Start       int // byte offset into the searched text, inclusive
	End         int // byte offset into the searched text, exclusive
}

type compiledRegex struct {
	re      *regexp.Regexp
	pattern string
	ruleID  string
}

// RegexMatcher compiles and caches case-insensitive regex patterns.
// Invalid patterns never panic the matcher: Load reports them as errors
// and excludes them from the active pattern set.
type RegexMatcher struct {
	patterns []compiledRegex
}

// NewRegexMatcher returns an empty RegexMatcher.
func NewRegexMatcher() *RegexMatcher {
	return &RegexMatcher{}
}

// Load compiles rules, replacing any previously loaded set, and returns one
// error per rule whose pattern failed to compile.
func (m *RegexMatcher) Load(rules []RegexRule) []error {
	m.patterns = m.patterns[:0]
	var errs []error
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid regex %q (rule %s): %w", r.Pattern, r.RuleID, err))
			continue
		}
		m.patterns = append(m.patterns, compiledRegex{re: re, pattern: r.Pattern, ruleID: r.RuleID})
	}
	return errs
}

// PatternCount returns the number of successfully compiled patterns.
func (m *RegexMatcher) PatternCount() int { return len(m.patterns) }

// Search applies every compiled pattern to text and returns every match
// found anywhere within it.
func (m *RegexMatcher) Search(text string) []RegexMatch {
	if text == "" {
		return nil
	}
	var out []RegexMatch
	for _, cr := range m.patterns {
		for _, loc := range cr.re.FindAllStringIndex(text, -1) {
			out = append(out, RegexMatch{
				Pattern:     cr.pattern,
				RuleID:      cr.ruleID,
				MatchedText: text[loc[0]:loc[1]],
				Start:       loc[0],
				End:         loc[1],
			})
		}
	}
	return out
}
