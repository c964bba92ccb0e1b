package reply

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ent0n29/gbird/internal/telemetry"
)

// SFX selects the alert tone accompanying a reply.
type SFX string

const (
	SFXNone  SFX = "none"
	SFXAlert SFX = "alert"
	SFXAlarm SFX = "alarm"
	SFXSiren SFX = "siren"
)

// ParseSFX maps unknown or empty values to SFXNone.
func ParseSFX(raw string) SFX {
	switch SFX(strings.ToLower(strings.TrimSpace(raw))) {
	case SFXAlert:
		return SFXAlert
	case SFXAlarm:
		return SFXAlarm
	case SFXSiren:
		return SFXSiren
	default:
		return SFXNone
	}
}

// AgentReply is what the agent will say and which tone goes with it.
type AgentReply struct {
	Text string `json:"reply"`
	SFX  SFX    `json:"sfx"`
}

// Path tags which decoding tier produced a ParseResult.
type Path string

const (
	PathStrict   Path = "strict"
	PathFallback Path = "fallback"
)

type ParseResult struct {
	Reply AgentReply
	Path  Path
	// Status is the appended status line, empty when no telemetry was known.
	Status string
}

type wirePayload struct {
	Reply *string `json:"reply"`
	SFX   *string `json:"sfx"`
}

// Parse interprets raw completion output. A JSON object with a non-empty
// "reply" takes the strict path; anything else is spoken verbatim. Parse
// never fails.
func Parse(raw string, rc *RequestContext) ParseResult {
	res := ParseResult{Path: PathFallback, Reply: AgentReply{Text: strings.TrimSpace(raw), SFX: SFXNone}}

	if p, ok := decodeStrict(raw); ok {
		res.Path = PathStrict
		res.Reply.Text = strings.TrimSpace(*p.Reply)
		if p.SFX != nil {
			res.Reply.SFX = ParseSFX(*p.SFX)
		}
	}

	res.Status = StatusLine(rc)
	if res.Status != "" {
		res.Reply.Text = res.Reply.Text + "\n" + res.Status
	}
	return res
}

func decodeStrict(raw string) (wirePayload, bool) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if !strings.HasPrefix(body, "{") {
		return wirePayload{}, false
	}
	var p wirePayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return wirePayload{}, false
	}
	if p.Reply == nil || strings.TrimSpace(*p.Reply) == "" {
		return wirePayload{}, false
	}
	return p, true
}

// stripCodeFence unwraps ```json ... ``` blocks some models emit around JSON.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// StatusLine renders the telemetry summary appended to every reply, or ""
// when rc carries no telemetry.
//
//	Status - Batt 7% | Dist 120m | Hdg 90deg | Mode Autopilot | Safe Critical
func StatusLine(rc *RequestContext) string {
	if rc == nil {
		return ""
	}
	battery, hasBattery := rc.DisplayBattery()
	var alt *float64
	if rc.Device != nil {
		alt = rc.Device.AltitudeMeters
	}
	if !hasBattery && rc.Telemetry == nil && alt == nil {
		return ""
	}

	parts := make([]string, 0, 7)
	if hasBattery {
		parts = append(parts, fmt.Sprintf("Batt %d%%", battery))
	}
	if rc.Telemetry != nil {
		parts = append(parts, fmt.Sprintf("Dist %dm", rc.Telemetry.DistanceMeters))
	}
	if alt != nil {
		parts = append(parts, fmt.Sprintf("Alt %sm", formatNumber(*alt)))
	}
	if rc.Telemetry != nil {
		parts = append(parts, fmt.Sprintf("Hdg %sdeg", formatNumber(rc.Telemetry.HeadingDegrees)))
	}
	if mode := strings.TrimSpace(rc.OpsMode); mode != "" {
		parts = append(parts, "Mode "+mode)
	}
	if route := strings.TrimSpace(rc.Route); route != "" {
		parts = append(parts, "Route "+route)
	}
	if hasBattery {
		parts = append(parts, "Safe "+telemetry.SafetyFlag(battery))
	}
	return "Status - " + strings.Join(parts, " | ")
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%d", int(math.Round(v)))
}
