package voice

import "testing"

func TestSanitizeSpeechText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "drops emoji and markdown markers",
			in:   "Copy 😊 **holding** perimeter / now.",
			want: "Copy holding perimeter now.",
		},
		{
			name: "keeps markdown link label and removes url",
			in:   "See [the grid map](https://example.com/grid) first.",
			want: "See the grid map first.",
		},
		{
			name: "removes code blocks and inline code",
			in:   "```json\n{\"reply\":\"x\"}\n```\nThen hold `loop` ✅",
			want: "Then hold",
		},
		{
			name: "normalizes odd punctuation spacing",
			in:   "Orbit***grid///perimeter",
			want: "Orbit grid perimeter",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := sanitizeSpeechText(tc.in)
			if got != tc.want {
				t.Fatalf("sanitizeSpeechText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSpeechTextExpandsStatusLine(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "status line",
			in:   "Nominal ops.\nStatus - Batt 7% | Dist 120m | Hdg 90deg | Mode Autopilot | Safe Critical",
			want: "Nominal ops. Status. battery 7 percent, distance 120 meters, heading 90 degrees, Mode Autopilot, safety Critical.",
		},
		{
			name: "altitude and route",
			in:   "Status - Batt 64% | Dist 300m | Alt 12m | Hdg 181deg | Mode Perch | Route Grid sweep | Safe Nominal",
			want: "Status. battery 64 percent, distance 300 meters, altitude 12 meters, heading 181 degrees, Mode Perch, Route Grid sweep, safety Nominal.",
		},
		{
			name: "plain reply untouched",
			in:   "Holding at 5m for 10 deg.",
			want: "Holding at 5m for 10 deg.",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := SpeechText(tc.in); got != tc.want {
				t.Fatalf("SpeechText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
