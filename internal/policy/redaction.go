// Package policy holds the data-handling rules applied before user text is
// persisted.
package policy

import "regexp"

type piiRule struct {
	kind   string
	marker string
	re     *regexp.Regexp
}

// Order matters: card numbers must be masked before the phone rule sees
// their digit runs, and SSNs before phones for the same reason.
var piiRules = []piiRule{
	{"email", "[REDACTED_EMAIL]", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{"card", "[REDACTED_CARD]", regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)},
	{"ssn", "[REDACTED_SSN]", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"phone", "[REDACTED_PHONE]", regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)},
}

// Redaction is the outcome of masking one text.
type Redaction struct {
	Text  string
	Kinds []string
}

func (r Redaction) Changed() bool { return len(r.Kinds) > 0 }

// Redact masks emails, card numbers, SSNs and phone numbers.
func Redact(input string) Redaction {
	out := Redaction{Text: input}
	for _, rule := range piiRules {
		next := rule.re.ReplaceAllString(out.Text, rule.marker)
		if next != out.Text {
			out.Kinds = append(out.Kinds, rule.kind)
			out.Text = next
		}
	}
	return out
}

// RedactPII is Redact reduced to the masked text and whether anything changed.
func RedactPII(input string) (string, bool) {
	r := Redact(input)
	return r.Text, r.Changed()
}
