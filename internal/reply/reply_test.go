package reply

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ent0n29/gbird/internal/memory"
	"github.com/ent0n29/gbird/internal/telemetry"
)

func contextWithBattery(battery int) *RequestContext {
	return &RequestContext{
		OpsMode: "Autopilot",
		Telemetry: &telemetry.State{
			BatteryPercent: battery,
			DistanceMeters: 120,
			HeadingDegrees: 90,
		},
	}
}

func TestParseStrictAppendsCriticalStatus(t *testing.T) {
	res := Parse(`{"reply":"ok","sfx":"alarm"}`, contextWithBattery(8))
	if res.Path != PathStrict {
		t.Fatalf("Path = %q, want %q", res.Path, PathStrict)
	}
	if res.Reply.SFX != SFXAlarm {
		t.Fatalf("SFX = %q, want %q", res.Reply.SFX, SFXAlarm)
	}
	lines := strings.Split(res.Reply.Text, "\n")
	if len(lines) != 2 || lines[0] != "ok" {
		t.Fatalf("Text = %q, want reply then status line", res.Reply.Text)
	}
	if !strings.Contains(lines[1], "Critical") {
		t.Fatalf("status line = %q, want it to contain Critical", lines[1])
	}
}

func TestParseFallbackWithoutTelemetryIsVerbatim(t *testing.T) {
	res := Parse("not json at all", nil)
	if res.Path != PathFallback {
		t.Fatalf("Path = %q, want %q", res.Path, PathFallback)
	}
	if res.Reply.SFX != SFXNone {
		t.Fatalf("SFX = %q, want none", res.Reply.SFX)
	}
	if res.Reply.Text != "not json at all" {
		t.Fatalf("Text = %q, want raw input", res.Reply.Text)
	}
}

func TestParseCases(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		rc       *RequestContext
		wantPath Path
		wantSFX  SFX
		wantText string
	}{
		{
			name:     "missing sfx defaults to none",
			raw:      `{"reply":"Holding."}`,
			wantPath: PathStrict,
			wantSFX:  SFXNone,
			wantText: "Holding.",
		},
		{
			name:     "unknown sfx maps to none",
			raw:      `{"reply":"Holding.","sfx":"klaxon"}`,
			wantPath: PathStrict,
			wantSFX:  SFXNone,
			wantText: "Holding.",
		},
		{
			name:     "json without reply falls back",
			raw:      `{"text":"hi"}`,
			wantPath: PathFallback,
			wantSFX:  SFXNone,
			wantText: `{"text":"hi"}`,
		},
		{
			name:     "empty reply falls back",
			raw:      `{"reply":"  ","sfx":"siren"}`,
			wantPath: PathFallback,
			wantSFX:  SFXNone,
			wantText: `{"reply":"  ","sfx":"siren"}`,
		},
		{
			name:     "fenced json is accepted",
			raw:      "```json\n{\"reply\":\"Target tagged.\",\"sfx\":\"alert\"}\n```",
			wantPath: PathStrict,
			wantSFX:  SFXAlert,
			wantText: "Target tagged.",
		},
		{
			name:     "fallback still gets status",
			raw:      "Copy that.",
			rc:       contextWithBattery(50),
			wantPath: PathFallback,
			wantSFX:  SFXNone,
			wantText: "Copy that.\nStatus - Batt 50% | Dist 120m | Hdg 90deg | Mode Autopilot | Safe Nominal",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			res := Parse(tc.raw, tc.rc)
			if res.Path != tc.wantPath {
				t.Fatalf("Path = %q, want %q", res.Path, tc.wantPath)
			}
			if res.Reply.SFX != tc.wantSFX {
				t.Fatalf("SFX = %q, want %q", res.Reply.SFX, tc.wantSFX)
			}
			if res.Reply.Text != tc.wantText {
				t.Fatalf("Text = %q, want %q", res.Reply.Text, tc.wantText)
			}
		})
	}
}

func TestStatusLineFields(t *testing.T) {
	battery := 64
	alt := 12.4
	rc := &RequestContext{
		OpsMode: "Perch",
		Route:   "Grid sweep",
		Telemetry: &telemetry.State{
			BatteryPercent: 9,
			DistanceMeters: 300,
			HeadingDegrees: 181,
		},
		Device: &DeviceReport{BatteryPercent: &battery, AltitudeMeters: &alt},
	}
	want := "Status - Batt 64% | Dist 300m | Alt 12m | Hdg 181deg | Mode Perch | Route Grid sweep | Safe Nominal"
	if got := StatusLine(rc); got != want {
		t.Fatalf("StatusLine() = %q, want %q", got, want)
	}
	if got := StatusLine(&RequestContext{OpsMode: "Perch"}); got != "" {
		t.Fatalf("StatusLine() without telemetry = %q, want empty", got)
	}
}

type fixedTelemetry telemetry.State

func (f fixedTelemetry) State() telemetry.State { return telemetry.State(f) }

func TestAssemblerBuildsBoundedHistory(t *testing.T) {
	store := memory.NewStore(nil)
	for i := 0; i < 20; i++ {
		speaker := memory.SpeakerUser
		if i%2 == 1 {
			speaker = memory.SpeakerAgent
		}
		store.Append(memory.NewTurn(speaker, memory.ChannelVoice, fmt.Sprintf("m%d", i)))
	}

	a := NewAssembler(fixedTelemetry{BatteryPercent: 55, DistanceMeters: 80}, store)
	req := a.Build("status", Ops{Mode: "Autopilot", Route: "Orbit"}, nil)

	if len(req.History) != HistoryLimit {
		t.Fatalf("len(History) = %d, want %d", len(req.History), HistoryLimit)
	}
	if req.History[0].Content != "m8" || req.History[HistoryLimit-1].Content != "m19" {
		t.Fatalf("History bounds = %q..%q, want m8..m19", req.History[0].Content, req.History[HistoryLimit-1].Content)
	}
	if req.History[0].Role != "user" || req.History[1].Role != "assistant" {
		t.Fatalf("roles = %q,%q, want user,assistant", req.History[0].Role, req.History[1].Role)
	}
	if req.Context == nil || req.Context.Telemetry == nil || req.Context.Telemetry.BatteryPercent != 55 {
		t.Fatalf("Context = %+v, want telemetry snapshot", req.Context)
	}
	if req.Context.OpsMode != "Autopilot" || req.Context.Route != "Orbit" {
		t.Fatalf("ops = %q/%q, want Autopilot/Orbit", req.Context.OpsMode, req.Context.Route)
	}
}

func TestAssemblerShortHistory(t *testing.T) {
	store := memory.NewStore(nil)
	store.Append(memory.NewTurn(memory.SpeakerUser, memory.ChannelVoice, "only"))
	req := NewAssembler(nil, store).Build("only", Ops{}, nil)
	if len(req.History) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(req.History))
	}
	if req.Context.Telemetry != nil {
		t.Fatalf("Telemetry = %+v, want nil without a source", req.Context.Telemetry)
	}
}

func TestDevicePrecedence(t *testing.T) {
	lat, lng := 1.5, 2.5
	battery := 33
	rc := &RequestContext{
		Telemetry: &telemetry.State{BatteryPercent: 70, Lat: 10, Lng: 20},
		Device:    &DeviceReport{Lat: &lat, Lng: &lng, BatteryPercent: &battery},
	}
	if b, ok := rc.DisplayBattery(); !ok || b != 33 {
		t.Fatalf("DisplayBattery() = %d,%v, want 33,true", b, ok)
	}
	if la, ln, ok := rc.DisplayPosition(); !ok || la != 1.5 || ln != 2.5 {
		t.Fatalf("DisplayPosition() = %v,%v,%v, want 1.5,2.5,true", la, ln, ok)
	}
	prompt := SystemPrompt(rc)
	if !strings.Contains(prompt, "simulated battery: 70%") || !strings.Contains(prompt, "battery: 33%") {
		t.Fatalf("SystemPrompt() missing simulated or device battery:\n%s", prompt)
	}
}
