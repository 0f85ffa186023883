package keyword

import (
	"sync/atomic"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// contextRadius is how many runes of surrounding text are kept on each
// side of an exact/regex match for the alert's SurroundingContext field.
const contextRadius = 40

// ruleIndex is one immutable snapshot of the compiled rule set. Detect
// calls in flight when LoadRules swaps the pointer keep using the
// snapshot they captured at call time — the same pattern as the config
// Watcher's Current() snapshot read, generalized to an atomic pointer so
// Detect never blocks on a mutex.
type ruleIndex struct {
	exact      *ExactMatcher
	fuzzyRules []FuzzyRule
	regex      *RegexMatcher
	severity   map[string]model.Severity
}

// Detector runs the exact, fuzzy, and regex matchers against enriched
// tokens using the current hot-reloadable rule index.
type Detector struct {
	idx   atomic.Pointer[ruleIndex]
	fuzzy *FuzzyMatcher
}

// NewDetector returns a Detector with an empty rule set. Call LoadRules
// before Detect will report any hits.
func NewDetector() *Detector {
	d := &Detector{fuzzy: NewFuzzyMatcher()}
	d.idx.Store(&ruleIndex{exact: NewExactMatcher(), regex: NewRegexMatcher()})
	return d
}

// LoadRules compiles rules into a new snapshot and atomically swaps it in.
// Disabled rules are skipped. Invalid regex patterns are reported as
// errors and excluded rather than failing the whole reload.
func (d *Detector) LoadRules(rules []model.KeywordRule) []error {
	next := &ruleIndex{
		severity: make(map[string]model.Severity, len(rules)),
	}

	var exactRules []ExactRule
	var regexRules []RegexRule

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		next.severity[r.RuleID] = r.Severity

		switch r.MatchType {
		case model.MatchExact:
			exactRules = append(exactRules, ExactRule{Keyword: r.Keyword, RuleID: r.RuleID})
		case model.MatchFuzzy:
			next.fuzzyRules = append(next.fuzzyRules, FuzzyRule{Keyword: r.Keyword, RuleID: r.RuleID, Threshold: r.FuzzyThreshold})
		case model.MatchRegex:
			regexRules = append(regexRules, RegexRule{Pattern: r.Keyword, RuleID: r.RuleID})
		}
	}

	next.exact = NewExactMatcher()
	next.exact.Build(exactRules)

	next.regex = NewRegexMatcher()
	errs := next.regex.Load(regexRules)

	d.idx.Store(next)
	return errs
}

// Detect runs every matcher against tok.Text using the rule snapshot
// current at call time, returning one KeywordMatchEvent per hit.
func (d *Detector) Detect(tok model.EnrichedToken) []model.KeywordMatchEvent {
	idx := d.idx.Load()
	if idx == nil {
		return nil
	}

	runes := []rune(tok.Text)
	var events []model.KeywordMatchEvent

	for _, m := range idx.exact.Search(tok.Text) {
		events = append(events, model.KeywordMatchEvent{
			StreamID:           tok.StreamID,
			SessionID:          tok.SessionID,
			Keyword:            m.Keyword,
			RuleID:             m.RuleID,
			MatchType:          model.MatchExact,
			Severity:           idx.severity[m.RuleID],
			MatchedText:        sliceRunes(runes, m.Start, m.End),
			SurroundingContext: surroundingContext(runes, m.Start, m.End),
			SpeakerLabel:       tok.SpeakerLabel,
		})
	}

	for _, m := range d.fuzzy.Match(tok.Text, idx.fuzzyRules) {
		score := m.Score
		events = append(events, model.KeywordMatchEvent{
			StreamID:           tok.StreamID,
			SessionID:          tok.SessionID,
			Keyword:            m.Keyword,
			RuleID:             m.RuleID,
			MatchType:          model.MatchFuzzy,
			Severity:           idx.severity[m.RuleID],
			SimilarityScore:    &score,
			MatchedText:        tok.Text,
			SurroundingContext: tok.Text,
			SpeakerLabel:       tok.SpeakerLabel,
		})
	}

	for _, m := range idx.regex.Search(tok.Text) {
		events = append(events, model.KeywordMatchEvent{
			StreamID:           tok.StreamID,
			SessionID:          tok.SessionID,
			Keyword:            m.Pattern,
			RuleID:             m.RuleID,
			MatchType:          model.MatchRegex,
			Severity:           idx.severity[m.RuleID],
			MatchedText:        m.MatchedText,
			SurroundingContext: surroundingContextBytes(tok.Text, m.Start, m.End),
			SpeakerLabel:       tok.SpeakerLabel,
		})
	}

	return events
}

func sliceRunes(runes []rune, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

func surroundingContext(runes []rune, start, end int) string {
	lo := start - contextRadius
	hi := end + contextRadius
	return sliceRunes(runes, lo, hi)
}

func surroundingContextBytes(text string, start, end int) string {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	if lo >= hi {
		return ""
	}
	return text[lo:hi]
}
