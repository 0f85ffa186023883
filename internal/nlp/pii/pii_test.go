package pii

import (
	"strings"
	"testing"
)

func TestRegex_RedactsEmail(t *testing.T) {
	r := NewRegex()
	result := r.Redact("contact me at jane.doe@example.com please")
	if !strings.Contains(result.RedactedText, "[EMAIL]") {
		t.Errorf("RedactedText = %q, want [EMAIL] placeholder", result.RedactedText)
	}
	if !containsEntity(result.EntitiesFound, EntityEmail) {
		t.Errorf("EntitiesFound = %v, want EMAIL", result.EntitiesFound)
	}
}

func TestRegex_RedactsSSN(t *testing.T) {
	r := NewRegex()
	result := r.Redact("my ssn is 123-45-6789 ok")
	if !strings.Contains(result.RedactedText, "[SSN]") {
		t.Errorf("RedactedText = %q, want [SSN] placeholder", result.RedactedText)
	}
}

func TestRegex_RedactsPhone(t *testing.T) {
	r := NewRegex()
	result := r.Redact("call me at 555-123-4567 tomorrow")
	if !strings.Contains(result.RedactedText, "[PHONE]") {
		t.Errorf("RedactedText = %q, want [PHONE] placeholder", result.RedactedText)
	}
}

func TestRegex_RedactsIPAddress(t *testing.T) {
	r := NewRegex()
	result := r.Redact("connect to 10.0.0.1 over vpn")
	if !strings.Contains(result.RedactedText, "[IP_ADDRESS]") {
		t.Errorf("RedactedText = %q, want [IP_ADDRESS] placeholder", result.RedactedText)
	}
}

func TestRegex_RedactsCreditCard(t *testing.T) {
	r := NewRegex()
	result := r.Redact("card number 4111111111111111 expires soon")
	if !strings.Contains(result.RedactedText, "[CREDIT_CARD]") {
		t.Errorf("RedactedText = %q, want [CREDIT_CARD] placeholder", result.RedactedText)
	}
}

func TestRegex_NoPIIReturnsUnchangedTextAndNoEntities(t *testing.T) {
	r := NewRegex()
	result := r.Redact("the weather is nice today")
	if result.RedactedText != "the weather is nice today" {
		t.Errorf("RedactedText = %q, want unchanged", result.RedactedText)
	}
	if len(result.EntitiesFound) != 0 {
		t.Errorf("EntitiesFound = %v, want none", result.EntitiesFound)
	}
}

func TestRegex_MultipleEntitiesInOneText(t *testing.T) {
	r := NewRegex()
	result := r.Redact("email jane@example.com or call 555-987-6543")
	if !containsEntity(result.EntitiesFound, EntityEmail) || !containsEntity(result.EntitiesFound, EntityPhone) {
		t.Errorf("EntitiesFound = %v, want EMAIL and PHONE", result.EntitiesFound)
	}
}

func TestRegex_IsReadyAlwaysTrue(t *testing.T) {
	r := NewRegex()
	if !r.IsReady() {
		t.Errorf("IsReady() = false, want true for built-in regex rules")
	}
}

func TestNoop_PassesTextThroughUnredacted(t *testing.T) {
	n := Noop{}
	result := n.Redact("jane.doe@example.com")
	if result.RedactedText != "jane.doe@example.com" {
		t.Errorf("RedactedText = %q, want unchanged", result.RedactedText)
	}
	if n.IsReady() {
		t.Errorf("IsReady() = true, want false for degraded mode")
	}
}

func containsEntity(entities []Entity, e Entity) bool {
	for _, x := range entities {
		if x == e {
			return true
		}
	}
	return false
}
