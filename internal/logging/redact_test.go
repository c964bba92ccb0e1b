package logging

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Relay to ops@example.com or +1 (555) 123-9876, card 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIIKeepsTelemetry(t *testing.T) {
	input := "Batt 78%, reserve 20%, 120m out, heading 90"
	out, changed := RedactPII(input)
	if changed || out != input {
		t.Fatalf("RedactPII(%q) = %q, %v; want unchanged", input, out, changed)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "  hold\n position  ", max: 0, want: "hold position"},
		{in: "return to base now", max: 9, want: "return to..."},
		{in: "mail ops@example.com", max: 0, want: "mail [REDACTED_EMAIL]"},
	}
	for _, tc := range tests {
		if got := Preview(tc.in, tc.max); got != tc.want {
			t.Fatalf("Preview(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
