package pii

// Noop is a degraded-mode Redactor that passes text through unchanged,
// used when no redaction engine is configured at all.
type Noop struct{}

func (Noop) Redact(text string) Result { return Result{RedactedText: text} }
func (Noop) IsReady() bool             { return false }
