package policy

import (
	"reflect"
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "4242") || strings.Contains(out, "sam@") {
		t.Fatalf("raw pii left in output: %q", out)
	}
}

func TestRedactReportsKinds(t *testing.T) {
	r := Redact("my ssn is 123-45-6789, reach me at a@b.io")
	want := []string{"email", "ssn"}
	if !reflect.DeepEqual(r.Kinds, want) {
		t.Fatalf("Kinds = %v, want %v", r.Kinds, want)
	}
	if strings.Contains(r.Text, "6789") {
		t.Fatalf("ssn not masked: %q", r.Text)
	}
}

func TestRedactLeavesOrdinaryTextAlone(t *testing.T) {
	in := "I slept 6 hours and have 3 exams this week."
	r := Redact(in)
	if r.Changed() || r.Text != in {
		t.Fatalf("Redact(%q) = %+v", in, r)
	}
}
