package keyword

import "testing"

func TestExactMatcher_BuildWithRules(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "gun", RuleID: "r1"}, {Keyword: "fire", RuleID: "r2"}, {Keyword: "help", RuleID: "r3"}})
	if m.PatternCount() != 3 {
		t.Errorf("PatternCount() = %d, want 3", m.PatternCount())
	}
	if !m.IsReady() {
		t.Error("IsReady() = false, want true")
	}
}

func TestExactMatcher_BuildWithEmptyRules(t *testing.T) {
	m := NewExactMatcher()
	m.Build(nil)
	if m.PatternCount() != 0 || m.IsReady() {
		t.Errorf("empty build: count=%d ready=%v", m.PatternCount(), m.IsReady())
	}
}

func TestExactMatcher_RebuildReplacesOldAutomaton(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "gun", RuleID: "r1"}})
	m.Build([]ExactRule{{Keyword: "fire", RuleID: "r2"}, {Keyword: "help", RuleID: "r3"}})
	if m.PatternCount() != 2 {
		t.Errorf("PatternCount() = %d, want 2", m.PatternCount())
	}
}

func TestExactMatcher_InitialStateNotReady(t *testing.T) {
	m := NewExactMatcher()
	if m.IsReady() || m.PatternCount() != 0 {
		t.Error("new matcher should not be ready and have zero patterns")
	}
}

func TestExactMatcher_ExactMatchFindsKeyword(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "gun", RuleID: "r1"}})
	results := m.Search("he has a gun near the entrance")
	if len(results) != 1 || results[0].Keyword != "gun" || results[0].RuleID != "r1" {
		t.Errorf("results = %+v", results)
	}
}

func TestExactMatcher_CaseInsensitiveMatch(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "gun", RuleID: "r1"}})
	results := m.Search("He has a GUN")
	if len(results) != 1 || results[0].Keyword != "gun" {
		t.Errorf("results = %+v", results)
	}
}

func TestExactMatcher_MultipleMatches(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "gun", RuleID: "r1"}, {Keyword: "fire", RuleID: "r2"}})
	results := m.Search("gun and fire everywhere")
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	got := map[string]bool{results[0].Keyword: true, results[1].Keyword: true}
	if !got["gun"] || !got["fire"] {
		t.Errorf("results = %+v", results)
	}
}

func TestExactMatcher_NoMatchReturnsEmpty(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "gun", RuleID: "r1"}})
	if results := m.Search("everything is peaceful"); len(results) != 0 {
		t.Errorf("results = %+v, want empty", results)
	}
}

func TestExactMatcher_EmptyTextReturnsEmpty(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "gun", RuleID: "r1"}})
	if results := m.Search(""); len(results) != 0 {
		t.Errorf("results = %+v, want empty", results)
	}
}

func TestExactMatcher_NoAutomatonReturnsEmpty(t *testing.T) {
	m := NewExactMatcher()
	if results := m.Search("gun is here"); len(results) != 0 {
		t.Errorf("results = %+v, want empty", results)
	}
}

func TestExactMatcher_UnicodeKeyword(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "危険", RuleID: "r1"}})
	results := m.Search("これは危険です")
	if len(results) != 1 || results[0].Keyword != "危険" {
		t.Errorf("results = %+v", results)
	}
}

func TestExactMatcher_OverlappingPatterns(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "he", RuleID: "r1"}, {Keyword: "help", RuleID: "r2"}})
	results := m.Search("help me")
	found := map[string]bool{}
	for _, r := range results {
		found[r.Keyword] = true
	}
	if !found["he"] || !found["help"] {
		t.Errorf("results = %+v, want both 'he' and 'help'", results)
	}
}

func TestExactMatcher_PhraseMatch(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "active shooter", RuleID: "r1"}})
	results := m.Search("there is an active shooter in the building")
	if len(results) != 1 || results[0].Keyword != "active shooter" {
		t.Errorf("results = %+v", results)
	}
}

func TestExactMatcher_DuplicateMatchInText(t *testing.T) {
	m := NewExactMatcher()
	m.Build([]ExactRule{{Keyword: "fire", RuleID: "r1"}})
	if results := m.Search("fire fire fire"); len(results) != 3 {
		t.Errorf("len = %d, want 3", len(results))
	}
}
