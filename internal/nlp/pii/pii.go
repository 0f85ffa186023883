// Package pii implements C7.3, PII redaction over final transcript text.
// Redactor is the pluggable seam: Regex is a deterministic, testable
// reference implementation covering the entity types that have a stable
// lexical shape (email, phone, SSN, credit card, IP address); a real NER
// model can be wired in behind the same interface for entities like
// PERSON and ADDRESS that regex cannot reliably catch.
package pii

import "regexp"

// Entity is one of the supported PII categories. The placeholder each
// maps to matches the teacher pipeline's alert and archive formatting:
// redacted text always carries a typed bracketed placeholder, never a
// generic one, so downstream consumers can tell what was removed.
type Entity string

const (
	EntityPerson     Entity = "PERSON"
	EntityPhone      Entity = "PHONE"
	EntityEmail      Entity = "EMAIL"
	EntityAddress    Entity = "ADDRESS"
	EntityCreditCard Entity = "CREDIT_CARD"
	EntitySSN        Entity = "SSN"
	EntityAccountID  Entity = "ACCOUNT_ID"
	EntityIPAddress  Entity = "IP_ADDRESS"
)

// PlaceholderMap gives the bracketed placeholder text substituted for
// each entity type.
var PlaceholderMap = map[Entity]string{
	EntityPerson:     "[PERSON]",
	EntityPhone:      "[PHONE]",
	EntityEmail:      "[EMAIL]",
	EntityAddress:    "[ADDRESS]",
	EntityCreditCard: "[CREDIT_CARD]",
	EntitySSN:        "[SSN]",
	EntityAccountID:  "[ACCOUNT_ID]",
	EntityIPAddress:  "[IP_ADDRESS]",
}

// Result is the outcome of redacting one piece of text.
type Result struct {
	RedactedText  string
	EntitiesFound []Entity
}

// Redactor finds and replaces PII in free text.
type Redactor interface {
	Redact(text string) Result
	IsReady() bool
}

type rule struct {
	entity Entity
	re     *regexp.Regexp
}

// Regex is a deterministic Redactor built entirely from regular
// expressions. It covers entity types with a stable lexical shape; it
// never recognises PERSON or ADDRESS, which need real language
// understanding and are left to another Redactor implementation.
type Regex struct {
	rules []rule
}

// NewRegex returns a Regex redactor with the default rule set loaded.
func NewRegex() *Regex {
	return &Regex{rules: defaultRules()}
}

func defaultRules() []rule {
	return []rule{
		{entity: EntityEmail, re: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
		{entity: EntitySSN, re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{entity: EntityCreditCard, re: regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
		{entity: EntityPhone, re: regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)},
		{entity: EntityIPAddress, re: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	}
}

// IsReady always reports true: the regex rule set is built in and needs
// no external model load.
func (r *Regex) IsReady() bool { return true }

// Redact replaces every PII match with its typed placeholder and reports
// the distinct entity types found, in the order their rule runs
// (email, SSN, credit card, phone, IP address) so a card number embedded
// in a longer digit run is not first mangled by the phone rule.
func (r *Regex) Redact(text string) Result {
	found := make(map[Entity]bool)
	out := text
	for _, ru := range r.rules {
		if ru.re.MatchString(out) {
			found[ru.entity] = true
			out = ru.re.ReplaceAllString(out, PlaceholderMap[ru.entity])
		}
	}

	var entities []Entity
	for _, ru := range r.rules {
		if found[ru.entity] {
			entities = append(entities, ru.entity)
		}
	}

	return Result{RedactedText: out, EntitiesFound: entities}
}
